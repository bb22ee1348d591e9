package eventbus

import "testing"

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "main.go.bak", false},
		{"*_test.go", "filter_test.go", true},
		{"main.?o", "main.go", true},
		{"main.?o", "main.goo", false},
		{"*/src/*.go", "proj/src/main.go", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.s); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestPathMatches_FileIsExact(t *testing.T) {
	sub := &Subscription{ResourceKind: ResourceFile, ResourcePath: "/tmp/a.txt"}
	if !pathMatches(sub, "/tmp/a.txt") {
		t.Error("expected exact match")
	}
	if pathMatches(sub, "/tmp/a.txt.bak") {
		t.Error("expected no match for a differently-named file")
	}
}

func TestPathMatches_DirectoryIsPrefix(t *testing.T) {
	sub := &Subscription{ResourceKind: ResourceDirectory, ResourcePath: "/tmp/dir"}
	if !pathMatches(sub, "/tmp/dir/nested/file.txt") {
		t.Error("expected prefix match under directory")
	}
	if pathMatches(sub, "/tmp/dirOther/file.txt") {
		t.Error("expected no match for a sibling directory sharing a prefix")
	}
}

func TestMatches_SizeFilter(t *testing.T) {
	min := int64(10)
	max := int64(100)
	sub := &Subscription{
		ResourceKind: ResourceFile,
		ResourcePath: "/tmp/a.bin",
		Filters:      Filters{MinSize: &min, MaxSize: &max},
	}

	tooSmall := int64(5)
	ok := int64(50)
	tooBig := int64(500)

	if matches(sub, &SubscriptionEvent{Path: "/tmp/a.bin", Metadata: EventMetadata{Size: &tooSmall}}) {
		t.Error("expected size below minimum to be excluded")
	}
	if !matches(sub, &SubscriptionEvent{Path: "/tmp/a.bin", Metadata: EventMetadata{Size: &ok}}) {
		t.Error("expected size within range to match")
	}
	if matches(sub, &SubscriptionEvent{Path: "/tmp/a.bin", Metadata: EventMetadata{Size: &tooBig}}) {
		t.Error("expected size above maximum to be excluded")
	}
}

func TestMatches_EventKindWhitelist(t *testing.T) {
	sub := &Subscription{
		ResourceKind: ResourceFile,
		ResourcePath: "/tmp/a.txt",
		Filters:      Filters{EventKinds: map[EventKind]struct{}{EventFileDeleted: {}}},
	}
	if matches(sub, &SubscriptionEvent{Path: "/tmp/a.txt", EventKind: EventFileModified}) {
		t.Error("expected non-whitelisted kind to be excluded")
	}
	if !matches(sub, &SubscriptionEvent{Path: "/tmp/a.txt", EventKind: EventFileDeleted}) {
		t.Error("expected whitelisted kind to match")
	}
}
