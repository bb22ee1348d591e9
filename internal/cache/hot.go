package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisEntry is the JSON shape persisted in Redis; Entry.Value travels
// as a base64-ish byte string via json.Marshal's []byte handling.
type redisEntry struct {
	Key          string            `json:"key"`
	Value        []byte            `json:"value"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int64             `json:"access_count"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
	Version      string            `json:"version,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// HotLevel is the Redis-backed "hot" tier (§4.1: half the disk budget,
// week TTL, LFU by default), grounded on github.com/redis/go-redis/v9's
// pipelining and key-prefix conventions.
type HotLevel struct {
	client   *redis.Client
	name     string
	policy   Policy
	capacity int64
	prefix   string
	ttl      time.Duration
}

// NewHotLevel wraps an existing redis.Client. ttl is applied to every
// entry written via Store unless the caller passes a shorter one
// explicitly through Cache.Store.
func NewHotLevel(client *redis.Client, prefix string, policy Policy, capacity int64, ttl time.Duration) *HotLevel {
	return &HotLevel{
		client:   client,
		name:     "hot",
		policy:   policy,
		capacity: capacity,
		prefix:   prefix,
		ttl:      ttl,
	}
}

func (h *HotLevel) Name() string    { return h.name }
func (h *HotLevel) Policy() Policy  { return h.policy }
func (h *HotLevel) Capacity() int64 { return h.capacity }

func (h *HotLevel) dataKey(key string) string { return fmt.Sprintf("%s:entry:%s", h.prefix, key) }
func (h *HotLevel) indexKey() string          { return fmt.Sprintf("%s:index", h.prefix) }

func (h *HotLevel) Store(ctx context.Context, entry *Entry) error {
	re := redisEntry{
		Key:          entry.Key,
		Value:        entry.Value,
		CreatedAt:    entry.CreatedAt,
		LastAccessed: entry.LastAccessed,
		AccessCount:  entry.AccessCount,
		ExpiresAt:    entry.ExpiresAt,
		Version:      entry.Version,
		Meta:         entry.Meta,
	}
	data, err := json.Marshal(re)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	ttl := h.ttl
	if !entry.ExpiresAt.IsZero() {
		if remaining := time.Until(entry.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}

	pipe := h.client.Pipeline()
	pipe.Set(ctx, h.dataKey(entry.Key), data, ttl)
	pipe.SAdd(ctx, h.indexKey(), entry.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (h *HotLevel) Retrieve(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := h.client.Get(ctx, h.dataKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			h.client.SRem(ctx, h.indexKey(), key)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return nil, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	entry := &Entry{
		Key: re.Key, Value: re.Value, CreatedAt: re.CreatedAt,
		LastAccessed: time.Now(), AccessCount: re.AccessCount + 1,
		ExpiresAt: re.ExpiresAt, Version: re.Version, Meta: re.Meta,
	}
	if entry.Expired(time.Now()) {
		_ = h.Remove(ctx, key)
		return nil, false, nil
	}

	// Refresh bookkeeping (touch) without extending an already-set TTL.
	data, _ = json.Marshal(redisEntry{
		Key: entry.Key, Value: entry.Value, CreatedAt: entry.CreatedAt,
		LastAccessed: entry.LastAccessed, AccessCount: entry.AccessCount,
		ExpiresAt: entry.ExpiresAt, Version: entry.Version, Meta: entry.Meta,
	})
	ttl := h.client.TTL(ctx, h.dataKey(key)).Val()
	if ttl > 0 {
		h.client.Set(ctx, h.dataKey(key), data, ttl)
	}

	return entry, true, nil
}

func (h *HotLevel) Remove(ctx context.Context, key string) error {
	pipe := h.client.Pipeline()
	pipe.Del(ctx, h.dataKey(key))
	pipe.SRem(ctx, h.indexKey(), key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (h *HotLevel) Clear(ctx context.Context) error {
	keys, err := h.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := h.Remove(ctx, key); err != nil {
			return err
		}
	}
	return h.client.Del(ctx, h.indexKey()).Err()
}

func (h *HotLevel) Cleanup(ctx context.Context) error {
	keys, err := h.Keys(ctx)
	if err != nil {
		return err
	}

	var live []*Entry
	now := time.Now()
	for _, key := range keys {
		entry, found, err := h.peek(ctx, key)
		if err != nil || !found {
			continue
		}
		if entry.Expired(now) {
			_ = h.Remove(ctx, key)
			continue
		}
		live = append(live, entry)
	}

	if h.capacity <= 0 {
		return nil
	}

	overBy := totalSize(live) - h.capacity
	for _, victim := range selectVictims(live, h.policy, overBy) {
		if err := h.Remove(ctx, victim.Key); err != nil {
			return err
		}
	}
	return nil
}

// peek loads an entry without bumping its access counters, used by
// Cleanup so maintenance scans don't themselves count as hits.
func (h *HotLevel) peek(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := h.client.Get(ctx, h.dataKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return nil, false, err
	}
	return &Entry{
		Key: re.Key, Value: re.Value, CreatedAt: re.CreatedAt,
		LastAccessed: re.LastAccessed, AccessCount: re.AccessCount,
		ExpiresAt: re.ExpiresAt, Version: re.Version, Meta: re.Meta,
	}, true, nil
}

func (h *HotLevel) Stats(ctx context.Context) (LevelStats, error) {
	keys, err := h.Keys(ctx)
	if err != nil {
		return LevelStats{}, err
	}
	stats := LevelStats{Name: h.name, EntryCount: len(keys)}
	for _, key := range keys {
		if entry, found, err := h.peek(ctx, key); err == nil && found {
			stats.SizeBytes += int64(len(entry.Value))
		}
	}
	return stats, nil
}

func (h *HotLevel) Keys(ctx context.Context) ([]string, error) {
	members, err := h.client.SMembers(ctx, h.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	return members, nil
}
