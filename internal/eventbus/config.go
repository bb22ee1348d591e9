package eventbus

// Config holds the Bus construction knobs a deployment profile exposes.
type Config struct {
	// EnableFileWatching turns on the fsnotify-backed production
	// WatchSource. Disabled, File/Directory subscriptions are still
	// accepted but only ever fire via TriggerEvent.
	EnableFileWatching bool
	Backpressure       BackpressurePolicy
}

// DefaultConfig matches §4.2's documented default: preserve every event,
// pausing the slow client's delivery path rather than the watcher.
func DefaultConfig() Config {
	return Config{EnableFileWatching: true, Backpressure: PolicyPauseWatcher}
}

// Build constructs a Bus per cfg. Returns the Bus and, if file watching is
// enabled, the underlying FSNotifyWatchSource (so callers can Close it
// independently of Bus.Close if they need to).
func Build(cfg Config) (*Bus, error) {
	var source WatchSource
	if cfg.EnableFileWatching {
		fs, err := NewFSNotifyWatchSource()
		if err != nil {
			return nil, err
		}
		source = fs
	}
	return New(source, cfg.Backpressure), nil
}
