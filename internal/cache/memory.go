package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLevel is a small in-process cache bucket, typically configured
// with an hour TTL and LRU eviction (§4.1 "memory" level).
type MemoryLevel struct {
	name     string
	policy   Policy
	capacity int64

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryLevel constructs an in-process Level. capacity is a byte
// bound; 0 means unbounded.
func NewMemoryLevel(name string, policy Policy, capacity int64) *MemoryLevel {
	return &MemoryLevel{
		name:     name,
		policy:   policy,
		capacity: capacity,
		entries:  make(map[string]*Entry),
	}
}

func (m *MemoryLevel) Name() string    { return m.name }
func (m *MemoryLevel) Policy() Policy  { return m.policy }
func (m *MemoryLevel) Capacity() int64 { return m.capacity }

func (m *MemoryLevel) Store(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.entries[entry.Key] = &cp
	return nil
}

func (m *MemoryLevel) Retrieve(ctx context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		delete(m.entries, key)
		return nil, false, nil
	}

	entry.LastAccessed = time.Now()
	entry.AccessCount++
	cp := *entry
	return &cp, true, nil
}

func (m *MemoryLevel) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryLevel) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

func (m *MemoryLevel) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var live []*Entry
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			continue
		}
		live = append(live, entry)
	}

	if m.capacity <= 0 {
		return nil
	}

	overBy := totalSize(live) - m.capacity
	for _, victim := range selectVictims(live, m.policy, overBy) {
		delete(m.entries, victim.Key)
	}
	return nil
}

func (m *MemoryLevel) Stats(ctx context.Context) (LevelStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := LevelStats{Name: m.name, EntryCount: len(m.entries)}
	for _, entry := range m.entries {
		stats.SizeBytes += int64(len(entry.Value))
	}
	return stats, nil
}

func (m *MemoryLevel) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys, nil
}
