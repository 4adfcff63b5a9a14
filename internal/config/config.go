// Package config loads the matchengine YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the matchengine configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matching  MatchingConfig  `yaml:"matching"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// PostgresConfig holds relational store connection settings.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxOpen     int    `yaml:"max_open_conns"`
	MaxIdle     int    `yaml:"max_idle_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// CacheConfig holds cache service settings and TTL classes.
type CacheConfig struct {
	Addrs         []string `yaml:"addrs"`
	Password      string   `yaml:"password"`
	KeyPrefix     string   `yaml:"key_prefix"`
	OpTimeoutMS   int      `yaml:"op_timeout_ms"`
	ShortTTLSec   int      `yaml:"short_ttl_sec"`
	MediumTTLSec  int      `yaml:"medium_ttl_sec"`
	LongTTLSec    int      `yaml:"long_ttl_sec"`
	ReadinessSec  int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Dimensions     int     `yaml:"dimensions"`
	TimeoutSec     int     `yaml:"timeout_sec"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // shared provider rate budget, 0 = unlimited
	Burst          int     `yaml:"burst"`
}

// MatchingConfig holds matching policy values.
type MatchingConfig struct {
	MatchThreshold     float64 `yaml:"match_threshold"`      // 0-100 score at/above which a result is a match
	MaxRecommendations int     `yaml:"max_recommendations"`  // cap on below-threshold results
	MaxCandidates      int     `yaml:"max_candidates"`       // bound on the scored candidate set
}

// HooksConfig holds the mutation hook worker queue settings.
type HooksConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// BackfillConfig holds batch backfill settings.
type BackfillConfig struct {
	PageSize int `yaml:"page_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Postgres.MaxOpen <= 0 {
		c.Postgres.MaxOpen = 20
	}
	if c.Postgres.MaxIdle <= 0 {
		c.Postgres.MaxIdle = 5
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "matchengine:"
	}
	if c.Cache.OpTimeoutMS <= 0 {
		c.Cache.OpTimeoutMS = 250
	}
	if c.Cache.ShortTTLSec <= 0 {
		c.Cache.ShortTTLSec = 60
	}
	if c.Cache.MediumTTLSec <= 0 {
		c.Cache.MediumTTLSec = 300
	}
	if c.Cache.LongTTLSec <= 0 {
		c.Cache.LongTTLSec = 1800
	}
	if c.Cache.ReadinessSec <= 0 {
		c.Cache.ReadinessSec = 10
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 5
	}
	if c.Embedding.Burst <= 0 {
		c.Embedding.Burst = 1
	}
	if c.Matching.MatchThreshold <= 0 {
		c.Matching.MatchThreshold = 70
	}
	if c.Matching.MaxRecommendations <= 0 {
		c.Matching.MaxRecommendations = 10
	}
	if c.Matching.MaxCandidates <= 0 {
		c.Matching.MaxCandidates = 200
	}
	if c.Hooks.QueueSize <= 0 {
		c.Hooks.QueueSize = 256
	}
	if c.Hooks.Workers <= 0 {
		c.Hooks.Workers = 2
	}
	if c.Backfill.PageSize <= 0 {
		c.Backfill.PageSize = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Matching.MatchThreshold > 100 {
		return fmt.Errorf("matching.match_threshold must be at most 100, got %v", c.Matching.MatchThreshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
