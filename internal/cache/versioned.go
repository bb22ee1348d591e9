package cache

import (
	"context"
	"strings"
	"time"
)

// VersionedCache scopes every key by the running process version, so
// entries written by a previous build never leak into a new one.
// InvalidateOldVersions sweeps every level and drops any key whose
// version suffix does not match the current version.
type VersionedCache struct {
	cache   *Cache
	version string
}

// NewVersionedCache wraps cache, suffixing keys with "_" + version.
func NewVersionedCache(cache *Cache, version string) *VersionedCache {
	return &VersionedCache{cache: cache, version: version}
}

func (v *VersionedCache) versionedKey(key string) string {
	return key + "_" + v.version
}

func (v *VersionedCache) Store(ctx context.Context, key string, value []byte, level string, ttl time.Duration) error {
	return v.cache.Store(ctx, v.versionedKey(key), value, level, ttl, v.version)
}

func (v *VersionedCache) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	return v.cache.Retrieve(ctx, v.versionedKey(key))
}

func (v *VersionedCache) Remove(ctx context.Context, key string) error {
	return v.cache.Remove(ctx, v.versionedKey(key))
}

// Stats reports the underlying Cache's per-level occupancy, unaffected by
// version scoping — a stale entry from a previous build still occupies
// space until InvalidateOldVersions sweeps it.
func (v *VersionedCache) Stats(ctx context.Context) (Stats, error) {
	return v.cache.Stats(ctx)
}

// InvalidateOldVersions removes every entry across every level whose key
// does not end in the current version suffix.
func (v *VersionedCache) InvalidateOldVersions(ctx context.Context) error {
	suffix := "_" + v.version
	for _, level := range v.cache.Levels() {
		keys, err := level.Keys(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if strings.HasSuffix(key, suffix) {
				continue
			}
			if err := level.Remove(ctx, key); err != nil {
				return err
			}
		}
	}
	return nil
}
