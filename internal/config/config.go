// Package config loads the consensus daemon's own YAML configuration:
// profiles, gateway URL, model endpoint, cache root, and bus settings
// (SPEC_FULL.md's AMBIENT STACK "Configuration" entry). It is a fresh,
// smaller struct — not a copy of the teacher's pkg/config loader, which
// is a test-harness scenario/persona/provider configuration system this
// daemon has no use for — but it follows that loader's conventions:
// struct tags, a YAML decode, field-by-field defaulting, then validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/hivetechs-collective/Hive-sub013/internal/cache"
	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/internal/modeltransport"
)

// ProfileSpec is one profile's YAML shape: four models, in fixed stage
// order, plus optional per-stage overrides.
type ProfileSpec struct {
	Name         string     `yaml:"name"`
	Models       [4]string  `yaml:"models"`
	Temperatures [4]float32 `yaml:"temperatures,omitempty"`
	MaxTokens    [4]int     `yaml:"max_tokens,omitempty"`
}

// ToProfile converts the YAML spec into the consensus.Profile the
// pipeline consumes.
func (p ProfileSpec) ToProfile() consensus.Profile {
	return consensus.Profile{
		Name:         p.Name,
		Models:       p.Models,
		Temperatures: p.Temperatures,
		MaxTokens:    p.MaxTokens,
	}
}

// GatewayConfig configures the Authorization Gateway Client (§4.3).
type GatewayConfig struct {
	BaseURL    string `yaml:"base_url"`
	LicenseKey string `yaml:"license_key"`
}

// ModelConfig configures the Model Transport (§4.4).
type ModelConfig struct {
	BaseURL            string                            `yaml:"base_url"`
	APIKey             string                            `yaml:"api_key"`
	TimeoutSeconds     int                               `yaml:"timeout_seconds"`
	MaxRetries         int                               `yaml:"max_retries"`
	RetryDelayMs       int                               `yaml:"retry_delay_ms"`
	RateLimitPerSecond float64                           `yaml:"rate_limit_per_second"`
	RateLimitBurst     int                               `yaml:"rate_limit_burst"`
	Models             []modeltransport.ModelDescriptor  `yaml:"models"`
}

// ToConfig converts the YAML spec into modeltransport.Config.
func (m ModelConfig) ToConfig() modeltransport.Config {
	return modeltransport.Config{
		BaseURL:            m.BaseURL,
		APIKey:             m.APIKey,
		TimeoutSeconds:     m.TimeoutSeconds,
		MaxRetries:         m.MaxRetries,
		RetryDelayMs:       m.RetryDelayMs,
		RateLimitPerSecond: m.RateLimitPerSecond,
		RateLimitBurst:     m.RateLimitBurst,
		Models:             m.Models,
	}
}

// CacheConfig points at the on-disk cache_config.toml (§6) and, when set,
// a Redis address for the hot level.
type CacheConfig struct {
	ConfigPath string `yaml:"config_path"`
	RedisAddr  string `yaml:"redis_addr"`
}

// BusConfig configures the Event Bus (§4.2).
type BusConfig struct {
	EnableFileWatching bool `yaml:"enable_file_watching"`
}

// KnowledgeConfig configures Conversation Record persistence (§6).
type KnowledgeConfig struct {
	// BasePath, when set, selects the JSON file-backed repository.
	// Left empty, the daemon falls back to an in-memory repository
	// (tests, or a deployment with no durable requirement).
	BasePath string `yaml:"base_path"`
}

// ServerConfig configures the process's own listeners (§6 external
// interfaces): the WebSocket/REST server and the Prometheus exporter.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config is the root shape of the daemon's YAML configuration file.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Gateway    GatewayConfig      `yaml:"gateway"`
	Model      ModelConfig        `yaml:"model"`
	Cache      CacheConfig        `yaml:"cache"`
	Bus        BusConfig          `yaml:"bus"`
	Knowledge  KnowledgeConfig    `yaml:"knowledge"`
	Profiles   []ProfileSpec      `yaml:"profiles"`
	DefaultTag string             `yaml:"default_profile"`
}

// Default returns a Config with the daemon's documented defaults: no
// gateway/model endpoints configured (must come from the file or
// environment), file watching on, an in-process cache root, and a single
// "speed" profile the tests (§8 scenario A) exercise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:  ":8420",
			MetricsAddr: ":9420",
		},
		Cache: CacheConfig{
			ConfigPath: "",
		},
		Bus: BusConfig{
			EnableFileWatching: true,
		},
		DefaultTag: "speed",
		Profiles: []ProfileSpec{
			{
				Name:   "speed",
				Models: [4]string{"mini-fast", "mini-fast", "mini-fast", "mini-fast"},
			},
		},
	}
}

// Load reads a YAML config file at path, applying it on top of Default().
// An empty path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if loaded.Server.ListenAddr != "" {
		cfg.Server.ListenAddr = loaded.Server.ListenAddr
	}
	if loaded.Server.MetricsAddr != "" {
		cfg.Server.MetricsAddr = loaded.Server.MetricsAddr
	}
	cfg.Gateway = loaded.Gateway
	cfg.Model = loaded.Model
	if loaded.Cache.ConfigPath != "" || loaded.Cache.RedisAddr != "" {
		cfg.Cache = loaded.Cache
	}
	cfg.Bus = loaded.Bus
	cfg.Knowledge = loaded.Knowledge
	if loaded.DefaultTag != "" {
		cfg.DefaultTag = loaded.DefaultTag
	}
	if len(loaded.Profiles) > 0 {
		cfg.Profiles = loaded.Profiles
	}

	return cfg, cfg.Validate()
}

// Validate enforces the invariants a running daemon needs: a gateway and
// model endpoint, and at least one well-formed profile (§3 Profile
// invariant: exactly four models).
func (c Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("config: gateway.base_url is required")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config: model.base_url is required")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("config: at least one profile is required")
	}
	for _, p := range c.Profiles {
		if err := p.ToProfile().Validate(); err != nil {
			return fmt.Errorf("config: profile %q: %w", p.Name, err)
		}
	}
	return nil
}

// Profiles returns the configured profiles indexed by name, for
// session.ProfileResolver.
func (c Config) ProfileMap() map[string]consensus.Profile {
	out := make(map[string]consensus.Profile, len(c.Profiles))
	for _, p := range c.Profiles {
		out[p.Name] = p.ToProfile()
	}
	return out
}

// cacheTTLDefault is used by the answer-cache write in cmd/consensusd when
// no level-specific TTL is configured; kept here since it is a config-level
// policy knob, not a cache-package constant.
const cacheTTLDefault = 24 * time.Hour

// CacheTTL returns the default TTL the daemon uses when storing a final
// answer under a versioned cache key (§2 data flow).
func CacheTTL() time.Duration { return cacheTTLDefault }

// LoadCache builds the cache.Cache/cache.VersionedCache pair from a
// cache_config.toml path plus an optional Redis client for the hot level
// (nil skips the hot level, matching cache.Build's own contract).
func LoadCache(tomlPath string, redisClient *redis.Client, version string) (*cache.VersionedCache, error) {
	cacheCfg, err := cache.LoadConfig(tomlPath)
	if err != nil {
		return nil, fmt.Errorf("config: load cache config: %w", err)
	}

	built, err := cache.Build(cacheCfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("config: build cache: %w", err)
	}

	return cache.NewVersionedCache(built, version), nil
}
