package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Cache     CacheConfig   `yaml:"cache"`
	API       APIConfig     `yaml:"api"`
	Resources ResourceTTLs  `yaml:"resources"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Log       LogConfig     `yaml:"log"`
}

type CacheConfig struct {
	Shards        int           `yaml:"shards"`
	Store         string        `yaml:"store"` // sharded, ttlcache
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepTTL      time.Duration `yaml:"sweep_ttl"`
	TTLPolicy     string        `yaml:"ttl_policy"` // per_entry, fixed
	Coalesce      *bool         `yaml:"coalesce"`
}

type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Mock        bool          `yaml:"mock"`
	TokenEnvVar string        `yaml:"token_env_var"` // environment variable holding the bearer token
	Token       string        `yaml:"-"`
}

// ResourceTTLs are the read TTLs of each cached resource.
type ResourceTTLs struct {
	Products       time.Duration `yaml:"products"`
	Scans          time.Duration `yaml:"scans"`
	Certifications time.Duration `yaml:"certifications"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"` // empty disables the metrics server
	Namespace string `yaml:"namespace"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	StoreSharded  = "sharded"
	StoreTTLCache = "ttlcache"

	PolicyPerEntry = "per_entry"
	PolicyFixed    = "fixed"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	coalesce := true
	return &Config{
		Cache: CacheConfig{
			Shards:        8,
			Store:         StoreSharded,
			DefaultTTL:    time.Minute,
			SweepInterval: time.Minute,
			SweepTTL:      5 * time.Minute,
			TTLPolicy:     PolicyPerEntry,
			Coalesce:      &coalesce,
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 10 * time.Second,
			Mock:    true,
		},
		Resources: ResourceTTLs{
			Products:       5 * time.Minute,
			Scans:          time.Minute,
			Certifications: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Namespace: "requestcache",
		},
		Log: LogConfig{
			Level:       "info",
			Development: true,
		},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	if err := cfg.loadSecrets(); err != nil {
		return nil, errors.Wrap(err, "loading secrets")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	return cfg, nil
}

// CoalesceEnabled reports whether concurrent misses share one fetch.
func (c *Config) CoalesceEnabled() bool {
	return c.Cache.Coalesce == nil || *c.Cache.Coalesce
}

func (c *Config) loadSecrets() error {
	if c.API.TokenEnvVar == "" {
		return nil
	}
	token := os.Getenv(c.API.TokenEnvVar)
	if token == "" {
		return errors.Errorf("environment variable %s not set for api token", c.API.TokenEnvVar)
	}
	c.API.Token = token
	return nil
}

func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	for name, ttl := range map[string]time.Duration{
		"products":       c.Resources.Products,
		"scans":          c.Resources.Scans,
		"certifications": c.Resources.Certifications,
	} {
		if ttl <= 0 {
			return errors.Errorf("resources.%s must be positive", name)
		}
	}

	if c.Metrics.Addr != "" && c.Metrics.Namespace == "" {
		return errors.New("metrics.namespace is required when metrics.addr is set")
	}

	if !isValidLevel(c.Log.Level) {
		return errors.Errorf("log.level: invalid level %s", c.Log.Level)
	}

	return nil
}

// Validate checks the cache section on its own, for callers that build a
// cache without a full Config.
func (c CacheConfig) Validate() error {
	if c.Shards <= 0 {
		return errors.New("cache.shards must be positive")
	}
	if !isValidStore(c.Store) {
		return errors.Errorf("cache.store: invalid store %s", c.Store)
	}
	if !isValidPolicy(c.TTLPolicy) {
		return errors.Errorf("cache.ttl_policy: invalid policy %s", c.TTLPolicy)
	}
	if c.DefaultTTL <= 0 {
		return errors.New("cache.default_ttl must be positive")
	}
	if c.SweepInterval < 0 {
		return errors.New("cache.sweep_interval must not be negative")
	}
	if c.SweepTTL <= 0 {
		return errors.New("cache.sweep_ttl must be positive")
	}
	return nil
}

func isValidStore(store string) bool {
	validStores := map[string]bool{
		StoreSharded:  true,
		StoreTTLCache: true,
	}
	return validStores[strings.ToLower(store)]
}

func isValidPolicy(policy string) bool {
	validPolicies := map[string]bool{
		PolicyPerEntry: true,
		PolicyFixed:    true,
	}
	return validPolicies[strings.ToLower(policy)]
}

func isValidLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[strings.ToLower(level)]
}
