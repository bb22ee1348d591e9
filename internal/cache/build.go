package cache

import (
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Build wires a Cache from Config, in the canonical memory → hot → cold
// order. redisClient may be nil, in which case the hot level is skipped
// (falling back to memory + cold only) — useful for tests and for
// deployments without Redis.
func Build(cfg Config, redisClient *redis.Client) (*Cache, error) {
	var levels []Level

	if lvl, ok := cfg.Levels["memory"]; ok {
		levels = append(levels, NewMemoryLevel("memory", Policy(lvl.Policy), lvl.CapacityBytes))
	}

	if redisClient != nil {
		if lvl, ok := cfg.Levels["hot"]; ok {
			levels = append(levels, NewHotLevel(redisClient, "consensuscache", Policy(lvl.Policy), lvl.CapacityBytes, lvl.TTLFor()))
		}
	}

	if lvl, ok := cfg.Levels["cold"]; ok {
		coldDir := filepath.Join(cfg.RootDir, "cold")
		cold, err := NewColdLevel(coldDir, Policy(lvl.Policy), lvl.CapacityBytes)
		if err != nil {
			return nil, err
		}
		levels = append(levels, cold)
	}

	return New(levels...), nil
}
