package model

import (
	"runtime"
	"time"
)

// Config is the complete run configuration.
// Fields carry mapstructure tags for viper and yaml tags for `config show`.
type Config struct {
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	CacheDir      string `mapstructure:"cache_dir" yaml:"cache_dir"`
	DefaultEngine string `mapstructure:"default_engine" yaml:"default_engine"`

	Log         LogConfig           `mapstructure:"log" yaml:"log"`
	Uncertainty UncertaintySettings `mapstructure:"uncertainty" yaml:"uncertainty"`
	Cache       CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Concurrency ConcurrencyConfig   `mapstructure:"concurrency" yaml:"concurrency"`
	Engines     EngineLimits        `mapstructure:"engines" yaml:"engines"`
	HTTP        HTTPConfig          `mapstructure:"http" yaml:"http"`
	Metrics     MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// UncertaintySettings is the config-file view of bootstrap estimation
type UncertaintySettings struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Iterations int     `mapstructure:"iterations" yaml:"iterations"`
	Confidence float64 `mapstructure:"confidence" yaml:"confidence"`
	Seed       *uint64 `mapstructure:"seed" yaml:"seed,omitempty"`
	Workers    int     `mapstructure:"workers" yaml:"workers"`
}

// CacheConfig controls the result cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// EngineLimits throttles engine invocations. Zero rate disables throttling.
// Overrides replaces the limit for the named engines.
type EngineLimits struct {
	RatePerSecond float64               `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int                   `mapstructure:"burst" yaml:"burst"`
	Overrides     map[string]EngineRate `mapstructure:"overrides" yaml:"overrides,omitempty"`
}

// EngineRate is the limit of a single engine
type EngineRate struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
}

// Throttled reports whether any engine is rate limited
func (l EngineLimits) Throttled() bool {
	if l.RatePerSecond > 0 {
		return true
	}
	for _, o := range l.Overrides {
		if o.RatePerSecond > 0 {
			return true
		}
	}
	return false
}

// HTTPConfig controls fetching datasets from http(s) sources
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	HTTPProxy    string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy   string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// MetricsConfig controls the prometheus textfile export
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		CacheDir:      "./.ugp_cache",
		DefaultEngine: "thermocalc",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Uncertainty: UncertaintySettings{
			Enabled:    true,
			Iterations: 200,
			Confidence: 0.95,
			Workers:    1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Engines: EngineLimits{
			RatePerSecond: 0,
			Burst:         1,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "ugp/0.1 (+https://github.com/ppiankov/ugp)",
			MaxBodyBytes: 10 << 20,
		},
	}
}

// UncertaintyConfig parameterises one bootstrap run
type UncertaintyConfig struct {
	Iterations int
	Confidence float64
	Seed       *uint64 // nil means non-deterministic
	Workers    int     // <= 1 runs sequentially
}

// Validate rejects values the bootstrap cannot run with
func (c UncertaintyConfig) Validate() error {
	if c.Iterations <= 0 {
		return &ConfigError{Field: "bootstrap iterations", Value: c.Iterations, Reason: "must be a positive integer"}
	}
	if !(c.Confidence > 0 && c.Confidence < 1) {
		return &ConfigError{Field: "confidence level", Value: c.Confidence, Reason: "must lie strictly between 0 and 1"}
	}
	return nil
}

// UncertaintyFromSettings converts the config-file view into a run config
func UncertaintyFromSettings(s UncertaintySettings) UncertaintyConfig {
	return UncertaintyConfig{
		Iterations: s.Iterations,
		Confidence: s.Confidence,
		Seed:       s.Seed,
		Workers:    s.Workers,
	}
}
