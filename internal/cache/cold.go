package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// coldMeta is the JSON sidecar written alongside every cold-level blob,
// mirroring the teacher's <key>.cache/<key>.meta split.
type coldMeta struct {
	Key          string            `json:"key"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int64             `json:"access_count"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
	Version      string            `json:"version,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// ColdLevel is the filesystem-backed "cold" tier (§4.1: remainder of disk
// budget, month TTL, TTL eviction). Blobs are gzip-compressed before
// being written, per §4.1's compression requirement, and stored as a
// <key>.cache / <key>.meta pair under baseDir — grounded on the sidecar
// layout and validatePath traversal/symlink guard of the teacher's
// runtime/storage/local/filestore.go.
type ColdLevel struct {
	baseDir  string
	policy   Policy
	capacity int64

	mu sync.Mutex
}

// NewColdLevel creates the base directory if needed and returns a
// ColdLevel rooted there.
func NewColdLevel(baseDir string, policy Policy, capacity int64) (*ColdLevel, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("cold cache: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("cold cache: create base dir: %w", err)
	}
	return &ColdLevel{baseDir: baseDir, policy: policy, capacity: capacity}, nil
}

func (c *ColdLevel) Name() string    { return "cold" }
func (c *ColdLevel) Policy() Policy  { return c.policy }
func (c *ColdLevel) Capacity() int64 { return c.capacity }

// validatePath rejects any resolved path escaping baseDir, including via
// symlinks, the same two-step check the teacher's FileStore used for
// media blobs.
func (c *ColdLevel) validatePath(path string) error {
	absBase, err := filepath.Abs(c.baseDir)
	if err != nil {
		return fmt.Errorf("resolve base dir: %w", err)
	}
	absBase = filepath.Clean(absBase)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	if !strings.HasPrefix(absPath+string(filepath.Separator), absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path %q is outside base directory %q", path, c.baseDir)
	}

	if _, err := os.Lstat(absPath); err == nil {
		realBase, err := filepath.EvalSymlinks(absBase)
		if err != nil {
			realBase = absBase
		}
		realPath, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			return fmt.Errorf("resolve symlinks: %w", err)
		}
		if !strings.HasPrefix(realPath+string(filepath.Separator), realBase+string(filepath.Separator)) && realPath != realBase {
			return fmt.Errorf("path %q resolves outside base directory (symlink attack)", path)
		}
	}
	return nil
}

func (c *ColdLevel) blobPath(key string) string { return filepath.Join(c.baseDir, sanitizeKey(key)+".cache") }
func (c *ColdLevel) metaPath(key string) string { return filepath.Join(c.baseDir, sanitizeKey(key)+".meta") }

func (c *ColdLevel) Store(ctx context.Context, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blobPath := c.blobPath(entry.Key)
	metaPath := c.metaPath(entry.Key)
	if err := c.validatePath(blobPath); err != nil {
		return err
	}

	compressed, err := compress(entry.Value)
	if err != nil {
		return fmt.Errorf("compress entry: %w", err)
	}

	if err := writeFileAtomic(blobPath, compressed); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}

	meta := coldMeta{
		Key: entry.Key, CreatedAt: entry.CreatedAt, LastAccessed: entry.LastAccessed,
		AccessCount: entry.AccessCount, ExpiresAt: entry.ExpiresAt, Version: entry.Version, Meta: entry.Meta,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	return writeFileAtomic(metaPath, metaBytes)
}

func (c *ColdLevel) Retrieve(ctx context.Context, key string) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blobPath := c.blobPath(key)
	metaPath := c.metaPath(key)
	if err := c.validatePath(blobPath); err != nil {
		return nil, false, err
	}

	meta, err := c.readMeta(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		// A read error invalidates this entry only.
		_ = c.removeFiles(blobPath, metaPath)
		return nil, false, nil
	}

	entry := &Entry{
		Key: meta.Key, CreatedAt: meta.CreatedAt, ExpiresAt: meta.ExpiresAt,
		Version: meta.Version, Meta: meta.Meta,
	}
	if entry.Expired(time.Now()) {
		_ = c.removeFiles(blobPath, metaPath)
		return nil, false, nil
	}

	raw, err := os.ReadFile(blobPath)
	if err != nil {
		_ = c.removeFiles(blobPath, metaPath)
		return nil, false, nil
	}
	value, err := decompress(raw)
	if err != nil {
		_ = c.removeFiles(blobPath, metaPath)
		return nil, false, nil
	}
	entry.Value = value

	meta.LastAccessed = time.Now()
	meta.AccessCount++
	entry.LastAccessed = meta.LastAccessed
	entry.AccessCount = meta.AccessCount
	if metaBytes, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = writeFileAtomic(metaPath, metaBytes)
	}

	return entry, true, nil
}

func (c *ColdLevel) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeFiles(c.blobPath(key), c.metaPath(key))
}

func (c *ColdLevel) removeFiles(blobPath, metaPath string) error {
	if err := os.Remove(blobPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *ColdLevel) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.baseDir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *ColdLevel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	metaFiles, err := c.listMetaFiles()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	now := time.Now()
	var live []*Entry
	for _, metaPath := range metaFiles {
		meta, err := c.readMeta(metaPath)
		if err != nil {
			continue
		}
		key := meta.Key
		blobPath := c.blobPath(key)
		if !meta.ExpiresAt.IsZero() && now.After(meta.ExpiresAt) {
			c.mu.Lock()
			_ = c.removeFiles(blobPath, metaPath)
			c.mu.Unlock()
			continue
		}

		info, err := os.Stat(blobPath)
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		live = append(live, &Entry{
			Key: key, CreatedAt: meta.CreatedAt, LastAccessed: meta.LastAccessed,
			AccessCount: meta.AccessCount, ExpiresAt: meta.ExpiresAt,
			Value: make([]byte, size), // size placeholder; selectVictims only needs len()
		})
	}

	if c.capacity <= 0 {
		return nil
	}

	overBy := totalSize(live) - c.capacity
	for _, victim := range selectVictims(live, c.policy, overBy) {
		c.mu.Lock()
		_ = c.removeFiles(c.blobPath(victim.Key), c.metaPath(victim.Key))
		c.mu.Unlock()
	}
	return nil
}

func (c *ColdLevel) Stats(ctx context.Context) (LevelStats, error) {
	c.mu.Lock()
	metaFiles, err := c.listMetaFiles()
	c.mu.Unlock()
	if err != nil {
		return LevelStats{}, err
	}

	stats := LevelStats{Name: c.Name(), EntryCount: len(metaFiles)}
	for _, metaPath := range metaFiles {
		meta, err := c.readMeta(metaPath)
		if err != nil {
			continue
		}
		if info, err := os.Stat(c.blobPath(meta.Key)); err == nil {
			stats.SizeBytes += info.Size()
		}
	}
	return stats, nil
}

func (c *ColdLevel) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	metaFiles, err := c.listMetaFiles()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(metaFiles))
	for _, metaPath := range metaFiles {
		meta, err := c.readMeta(metaPath)
		if err != nil {
			continue
		}
		keys = append(keys, meta.Key)
	}
	return keys, nil
}

func (c *ColdLevel) listMetaFiles() ([]string, error) {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil, err
	}
	var metaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".meta") {
			metaFiles = append(metaFiles, filepath.Join(c.baseDir, e.Name()))
		}
	}
	return metaFiles, nil
}

func (c *ColdLevel) readMeta(metaPath string) (*coldMeta, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var meta coldMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// sanitizeKey keeps cache keys from escaping the base directory via path
// separators embedded in caller-supplied keys (e.g. "tool/input#1").
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return replacer.Replace(key)
}
