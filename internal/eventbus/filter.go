package eventbus

import (
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// matches implements §4.2's event-matching order: path match, then
// extension whitelist, event-kind whitelist, glob whitelist, size filter.
// Debounce is applied separately by the caller, which owns the
// per-(subscription,path) last-delivered clock.
func matches(sub *Subscription, evt *SubscriptionEvent) bool {
	if !pathMatches(sub, evt.Path) {
		return false
	}

	f := sub.Filters

	if len(f.Extensions) > 0 {
		ext := strings.TrimPrefix(path.Ext(evt.Path), ".")
		if _, ok := f.Extensions[ext]; !ok {
			return false
		}
	}

	if len(f.EventKinds) > 0 {
		if _, ok := f.EventKinds[evt.EventKind]; !ok {
			return false
		}
	}

	if len(f.PathPatterns) > 0 {
		matched := false
		for _, pattern := range f.PathPatterns {
			if globMatch(pattern, evt.Path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if evt.Metadata.Size != nil {
		if f.MinSize != nil && *evt.Metadata.Size < *f.MinSize {
			return false
		}
		if f.MaxSize != nil && *evt.Metadata.Size > *f.MaxSize {
			return false
		}
	}

	return true
}

// pathMatches is exact-equal for File subscriptions, prefix-equal for
// Directory subscriptions; any other resource kind matches by exact path
// since it has no filesystem hierarchy.
func pathMatches(sub *Subscription, eventPath string) bool {
	switch sub.ResourceKind {
	case ResourceDirectory:
		return eventPath == sub.ResourcePath || strings.HasPrefix(eventPath, strings.TrimSuffix(sub.ResourcePath, "/")+"/")
	default:
		return eventPath == sub.ResourcePath
	}
}

// globCache memoizes compiled patterns; subscription filters are reused
// across many dispatched events, so compiling per-call would be wasteful.
var globCache sync.Map // pattern string -> glob.Glob

// globMatch supports '*' (any run of characters) and '?' (single
// character), the two wildcards §4.2 names, via github.com/gobwas/glob.
// Patterns are anchored to the whole string.
func globMatch(pattern, s string) bool {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(glob.Glob).Match(s)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	globCache.Store(pattern, g)
	return g.Match(s)
}
