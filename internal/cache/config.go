package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// LevelConfig is one [levels.<name>] table in cache_config.toml.
type LevelConfig struct {
	CapacityBytes int64  `toml:"capacity_bytes"`
	RetentionDays int    `toml:"retention_days"`
	Policy        string `toml:"policy"`
}

// Config is the root shape of cache_config.toml (§6).
type Config struct {
	RootDir         string                 `toml:"root_dir"`
	AutoCleanup     bool                   `toml:"auto_cleanup"`
	CleanupInterval time.Duration          `toml:"cleanup_interval"`
	Compression     bool                   `toml:"compression"`
	Encryption      bool                   `toml:"encryption"`
	Levels          map[string]LevelConfig `toml:"levels"`
}

// DefaultCacheRoot resolves the platform-specific default cache
// directory per §6: $XDG_CACHE_HOME/hive, ~/Library/Caches/hive, or
// %LOCALAPPDATA%\Hive\cache.
func DefaultCacheRoot() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "hive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "hive")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "Hive", "cache")
		}
		return filepath.Join(home, "AppData", "Local", "Hive", "cache")
	default:
		return filepath.Join(home, ".cache", "hive")
	}
}

// DefaultConfig returns the three canonical levels from §4.1:
// memory (small, hour TTL, LRU), hot (half the disk budget, week TTL,
// LFU), cold (remainder, month TTL, TTL).
func DefaultConfig() Config {
	return Config{
		RootDir:         DefaultCacheRoot(),
		AutoCleanup:     true,
		CleanupInterval: 10 * time.Minute,
		Compression:     true,
		Levels: map[string]LevelConfig{
			"memory": {CapacityBytes: 64 << 20, RetentionDays: 0, Policy: string(PolicyLRU)},
			"hot":    {CapacityBytes: 2 << 30, RetentionDays: 7, Policy: string(PolicyLFU)},
			"cold":   {CapacityBytes: 8 << 30, RetentionDays: 30, Policy: string(PolicyTTL)},
		},
	}
}

// LoadConfig reads cache_config.toml from path, falling back to
// DefaultConfig for any level not present.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var loaded Config
	if _, err := toml.DecodeFile(path, &loaded); err != nil {
		return Config{}, err
	}

	if loaded.RootDir != "" {
		cfg.RootDir = loaded.RootDir
	}
	cfg.AutoCleanup = loaded.AutoCleanup
	if loaded.CleanupInterval > 0 {
		cfg.CleanupInterval = loaded.CleanupInterval
	}
	cfg.Compression = loaded.Compression
	cfg.Encryption = loaded.Encryption
	for name, lvl := range loaded.Levels {
		cfg.Levels[name] = lvl
	}

	return cfg, nil
}

// TTLFor converts a level's RetentionDays into a time.Duration, 0
// meaning no expiry.
func (l LevelConfig) TTLFor() time.Duration {
	if l.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(l.RetentionDays) * 24 * time.Hour
}
