// Package cache implements the tiered, TTL-bound, version-scoped blob
// cache used both for model-response reuse and gateway tool/result
// memoization. Three levels (memory, hot, cold) are scanned in fixed
// order; each level owns its own eviction policy.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hivetechs-collective/Hive-sub013/pkg/errors"
)

// Policy is an eviction strategy for a Level.
type Policy string

const (
	PolicyLRU Policy = "lru"
	PolicyLFU Policy = "lfu"
	PolicyFIFO Policy = "fifo"
	PolicyTTL Policy = "ttl"
)

// Entry is a single cache record: the blob plus the bookkeeping the
// eviction policies need.
type Entry struct {
	Key          string
	Value        []byte
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	ExpiresAt    time.Time // zero means no TTL
	Version      string
	Meta         map[string]string
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Level is a single tier of the cache (memory, hot, cold, ...). All
// methods must be safe for concurrent use.
type Level interface {
	Name() string
	Policy() Policy
	Capacity() int64 // bytes; 0 means unbounded

	Store(ctx context.Context, entry *Entry) error
	Retrieve(ctx context.Context, key string) (*Entry, bool, error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// Cleanup enforces TTL expiry and capacity pressure per the level's
	// policy. Idempotent.
	Cleanup(ctx context.Context) error

	// Stats reports the level's current size/count for Cache.Stats.
	Stats(ctx context.Context) (LevelStats, error)

	// Keys lists all keys currently resident, for maintenance sweeps
	// (e.g. version invalidation) that must walk the whole level.
	Keys(ctx context.Context) ([]string, error)
}

// LevelStats is a point-in-time snapshot of one level's occupancy.
type LevelStats struct {
	Name       string
	EntryCount int
	SizeBytes  int64
	Hits       int64
	Misses     int64
}

// Stats aggregates LevelStats across the whole cache.
type Stats struct {
	Levels []LevelStats
}

// Cache orchestrates a fixed-order stack of Levels. Lock order, per
// SPEC_FULL §5, is Cache.config before any Level's internal locks; Cache
// itself only guards the level list and per-level hit/miss counters, never
// a level's own index/data locks.
type Cache struct {
	mu     sync.RWMutex
	levels []Level
	hits   map[string]int64
	misses map[string]int64
}

// New builds a Cache that scans levels in the order given. Per §4.1 the
// canonical order is memory, hot, cold.
func New(levels ...Level) *Cache {
	c := &Cache{
		levels: levels,
		hits:   make(map[string]int64),
		misses: make(map[string]int64),
	}
	return c
}

// Store writes value under key to the named level. The caller chooses
// the level explicitly (§4.1 `store(key, value, level)`); Store does not
// fan a single write out to multiple levels.
func (c *Cache) Store(ctx context.Context, key string, value []byte, levelName string, ttl time.Duration, version string) error {
	level, err := c.levelNamed(levelName)
	if err != nil {
		return err
	}

	now := time.Now()
	entry := &Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
		Version:      version,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	if err := level.Store(ctx, entry); err != nil {
		return errors.New("cache", "store", err).WithDetails(map[string]any{"key": key, "level": levelName})
	}
	return level.Cleanup(ctx)
}

// Retrieve searches levels in declared order and returns the first hit.
// A miss across all levels returns (nil, false, nil) — absence is not an
// error. An entry past its TTL is treated as absent (the level removes it
// as a side effect of Retrieve).
func (c *Cache) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	for _, level := range c.levels {
		entry, found, err := level.Retrieve(ctx, key)
		if err != nil {
			// A read error invalidates this entry only; continue to the
			// next level rather than failing the whole lookup.
			c.recordMiss(level.Name())
			continue
		}
		if !found {
			c.recordMiss(level.Name())
			continue
		}
		c.recordHit(level.Name())
		return entry.Value, true, nil
	}
	return nil, false, nil
}

// Remove deletes key from every level.
func (c *Cache) Remove(ctx context.Context, key string) error {
	var firstErr error
	for _, level := range c.levels {
		if err := level.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.New("cache", "remove", err).WithDetails(map[string]any{"key": key, "level": level.Name()})
		}
	}
	return firstErr
}

// Clear drops every level's contents.
func (c *Cache) Clear(ctx context.Context) error {
	var firstErr error
	for _, level := range c.levels {
		if err := level.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Cleanup runs each level's Cleanup. Idempotent; safe to call
// periodically from a background ticker.
func (c *Cache) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, level := range c.levels {
		if err := level.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats reports size/count figures for every level plus accumulated
// hit/miss counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Stats{}
	for _, level := range c.levels {
		ls, err := level.Stats(ctx)
		if err != nil {
			return Stats{}, err
		}
		ls.Hits = c.hits[level.Name()]
		ls.Misses = c.misses[level.Name()]
		out.Levels = append(out.Levels, ls)
	}
	return out, nil
}

// Level returns the named level, for callers (VersionedCache, tests) that
// need direct access.
func (c *Cache) Level(name string) (Level, error) {
	return c.levelNamed(name)
}

// Levels returns every configured level in scan order.
func (c *Cache) Levels() []Level {
	return c.levels
}

func (c *Cache) levelNamed(name string) (Level, error) {
	for _, level := range c.levels {
		if level.Name() == name {
			return level, nil
		}
	}
	return nil, errors.New("cache", "level-lookup", nil).WithDetails(map[string]any{"level": name})
}

func (c *Cache) recordHit(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[level]++
}

func (c *Cache) recordMiss(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses[level]++
}
