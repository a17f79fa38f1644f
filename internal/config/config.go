// Package config holds all pharmadoc configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pharmadoc configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace directory for cache, logs and reports
	Workspace string `yaml:"workspace"`

	// Oracle (LLM) configuration
	Oracle OracleConfig `yaml:"oracle"`

	// Consensus extraction configuration
	Extraction ExtractionConfig `yaml:"extraction"`

	// Result cache configuration
	Cache CacheConfig `yaml:"cache"`
}

// OracleConfig configures the language-model backend.
type OracleConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Timeout         string  `yaml:"timeout"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// ExtractionConfig configures the consensus loop.
type ExtractionConfig struct {
	Passes      int    `yaml:"passes"`
	MaxAttempts int    `yaml:"max_attempts"`
	Strategy    string `yaml:"strategy"` // reconcile, judge
}

// CacheConfig configures the extraction cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	TTL     string `yaml:"ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "pharmadoc",
		Version:   "1.0.0",
		Workspace: ".pharmadoc",

		Oracle: OracleConfig{
			Model:           "gemini-2.0-flash",
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Timeout:         "5m",
			Temperature:     0.1,
			MaxOutputTokens: 8192,
		},

		Extraction: ExtractionConfig{
			Passes:      3,
			MaxAttempts: 3,
			Strategy:    "reconcile",
		},

		Cache: CacheConfig{
			Enabled: true,
			Path:    ".pharmadoc/cache.db",
			TTL:     "24h",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if model := os.Getenv("PHARMADOC_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if ws := os.Getenv("PHARMADOC_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if path := os.Getenv("PHARMADOC_CACHE"); path != "" {
		c.Cache.Path = path
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Extraction.Passes < 1 {
		return fmt.Errorf("extraction.passes must be at least 1, got %d", c.Extraction.Passes)
	}
	if c.Extraction.MaxAttempts < 1 {
		return fmt.Errorf("extraction.max_attempts must be at least 1, got %d", c.Extraction.MaxAttempts)
	}
	switch c.Extraction.Strategy {
	case "reconcile", "judge":
	default:
		return fmt.Errorf("extraction.strategy must be 'reconcile' or 'judge', got %q", c.Extraction.Strategy)
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		return fmt.Errorf("oracle.temperature must be within [0, 2], got %v", c.Oracle.Temperature)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when cache is enabled")
	}
	return nil
}

// GetOracleTimeout returns the oracle timeout as a duration.
func (c *Config) GetOracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
