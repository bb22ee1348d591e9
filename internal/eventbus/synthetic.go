package eventbus

import "sync"

// SyntheticWatchSource is a test double for WatchSource: Emit pushes a raw
// event directly onto whichever channel Watch most recently returned for
// that path, without touching a real filesystem.
type SyntheticWatchSource struct {
	mu       sync.Mutex
	channels map[string]chan rawEvent
	closed   bool
}

// NewSyntheticWatchSource creates an empty synthetic source.
func NewSyntheticWatchSource() *SyntheticWatchSource {
	return &SyntheticWatchSource{channels: make(map[string]chan rawEvent)}
}

func (s *SyntheticWatchSource) Watch(path string, _ bool) (<-chan rawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[path]
	if !ok {
		ch = make(chan rawEvent, 64)
		s.channels[path] = ch
	}
	return ch, nil
}

func (s *SyntheticWatchSource) Unwatch(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[path]; ok {
		close(ch)
		delete(s.channels, path)
	}
	return nil
}

func (s *SyntheticWatchSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for path, ch := range s.channels {
		close(ch)
		delete(s.channels, path)
	}
	return nil
}

// Emit delivers a raw event for path as if the filesystem produced it.
// Returns false if path is not currently watched.
func (s *SyntheticWatchSource) Emit(path string, kind EventKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	ch, ok := s.channels[path]
	if !ok {
		return false
	}
	ch <- rawEvent{Path: path, Kind: kind}
	return true
}
