package eventbus

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// rawEvent is a single filesystem notification before subscription
// filtering, already classified and enriched.
type rawEvent struct {
	Path string
	Kind EventKind
}

// WatchSource is the one-method seam between the bus and whatever produces
// filesystem notifications, so tests can inject a synthetic source instead
// of touching a real filesystem.
type WatchSource interface {
	// Watch adds path to the watch set (recursively for directories). The
	// returned channel carries every classified change until Close.
	Watch(path string, recursive bool) (<-chan rawEvent, error)
	// Unwatch removes path from the watch set.
	Unwatch(path string) error
	Close() error
}

// FSNotifyWatchSource is the production WatchSource, grounded on
// github.com/fsnotify/fsnotify's recursive-add-per-directory idiom (the
// library itself only watches single directories; recursion is walked by
// the caller).
type FSNotifyWatchSource struct {
	watcher *fsnotify.Watcher
	out     chan rawEvent
}

// NewFSNotifyWatchSource starts an fsnotify.Watcher and a single forwarding
// goroutine that classifies raw fsnotify.Events into rawEvents.
func NewFSNotifyWatchSource() (*FSNotifyWatchSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	src := &FSNotifyWatchSource{watcher: w, out: make(chan rawEvent, 256)}
	go src.pump()
	return src, nil
}

func (s *FSNotifyWatchSource) pump() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				close(s.out)
				return
			}
			s.out <- rawEvent{Path: ev.Name, Kind: classifyFSNotify(ev)}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func classifyFSNotify(ev fsnotify.Event) EventKind {
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	switch {
	case ev.Has(fsnotify.Create):
		if isDir {
			return EventDirectoryCreated
		}
		return EventFileCreated
	case ev.Has(fsnotify.Remove):
		if isDir {
			return EventDirectoryDeleted
		}
		return EventFileDeleted
	case ev.Has(fsnotify.Rename):
		return EventFileRenamed
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		return EventFileModified
	default:
		return EventFileModified
	}
}

func (s *FSNotifyWatchSource) Watch(path string, recursive bool) (<-chan rawEvent, error) {
	if !recursive {
		return s.out, s.watcher.Add(path)
	}
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return s.watcher.Add(p)
		}
		return nil
	})
	return s.out, err
}

func (s *FSNotifyWatchSource) Unwatch(path string) error {
	return s.watcher.Remove(path)
}

func (s *FSNotifyWatchSource) Close() error {
	return s.watcher.Close()
}

// checksumFile hashes a file's content with SHA-256, per §4.2's checksum
// policy. Returns "" if the file is unreadable (deleted, permission, etc.)
// rather than erroring — an unreadable file simply carries no checksum.
func checksumFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fileSize(path string) *int64 {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	size := info.Size()
	return &size
}
