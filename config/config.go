// CLAUDE:SUMMARY Defines mdbatch config structs and parses YAML configuration files with defaults and validation.
// Package config handles mdbatch configuration from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level mdbatch configuration.
type Config struct {
	Batch  BatchConfig  `yaml:"batch"`
	Cache  CacheConfig  `yaml:"cache"`
	Output OutputConfig `yaml:"output"`
	RunLog RunLogConfig `yaml:"runlog"`
	Log    LogConfig    `yaml:"log"`
}

// BatchConfig controls the conversion run.
type BatchConfig struct {
	MaxWorkers    int      `yaml:"max_workers"`
	FailFast      bool     `yaml:"fail_fast"`
	MinConfidence float64  `yaml:"min_confidence"`
	Resume        bool     `yaml:"resume"`
	Restart       bool     `yaml:"restart"`
	Include       []string `yaml:"include"`
	Exclude       []string `yaml:"exclude"`
	Recursive     bool     `yaml:"recursive"`
}

// CacheConfig controls the content-addressed result cache.
type CacheConfig struct {
	// Dir enables caching when set. There is no implicit default location.
	Dir string `yaml:"dir"`
}

// OutputConfig controls where converted Markdown lands.
type OutputConfig struct {
	Dir               string `yaml:"dir"`
	PreserveStructure bool   `yaml:"preserve_structure"`
	Overwrite         bool   `yaml:"overwrite"`
	ManifestPath      string `yaml:"manifest_path"`
}

// RunLogConfig controls the SQLite run ledger.
type RunLogConfig struct {
	// Path enables run recording when set.
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// LoadFile reads a YAML configuration file, applies defaults, and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects configurations that would fail mid-run. All checks happen
// before any conversion starts.
func (c *Config) Validate() error {
	if c.Batch.MaxWorkers < 0 {
		return fmt.Errorf("config: batch.max_workers must be >= 0, got %d", c.Batch.MaxWorkers)
	}
	if c.Batch.MinConfidence < 0 || c.Batch.MinConfidence > 1 {
		return fmt.Errorf("config: batch.min_confidence must be in [0,1], got %g", c.Batch.MinConfidence)
	}
	if c.Batch.Resume && c.Batch.Restart {
		return fmt.Errorf("config: batch.resume and batch.restart are mutually exclusive")
	}
	if c.Batch.Resume && c.Output.Dir == "" {
		return fmt.Errorf("config: batch.resume requires output.dir")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
