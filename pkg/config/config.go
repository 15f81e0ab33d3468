// Package config provides configuration loading and management for voxelspace.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelspace/pkg/affine"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Mapper parameters
	Mapper struct {
		// StrictAffine rejects transforms whose bottom row is not [0 0 0 1]
		StrictAffine bool `yaml:"strictAffine"`

		// CacheInverse keeps one inverse per transform for physical-to-voxel mapping
		CacheInverse bool `yaml:"cacheInverse"`
	} `yaml:"mapper"`

	// Histogram parameters
	Histogram struct {
		// Bins is the number of equal-width bins
		Bins int `yaml:"bins"`

		// Threshold drops samples below this value before binning.
		// Unset keeps every sample.
		Threshold *float64 `yaml:"threshold,omitempty"`
	} `yaml:"histogram"`

	// Output parameters
	Output struct {
		// Dir is where slices and plots are written
		Dir string `yaml:"dir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Mapper.StrictAffine = false
	cfg.Mapper.CacheInverse = true

	cfg.Histogram.Bins = 50

	cfg.Output.Dir = "voxelspace_output"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Histogram.Bins <= 0 {
		return fmt.Errorf("histogram.bins must be positive, got %d", c.Histogram.Bins)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	return nil
}

// NewMapper builds a coordinate mapper from the mapper section
func (c *Config) NewMapper() *affine.Mapper {
	var opts []affine.Option
	if c.Mapper.StrictAffine {
		opts = append(opts, affine.WithStrictAffine())
	}
	if !c.Mapper.CacheInverse {
		opts = append(opts, affine.WithoutCache())
	}
	return affine.NewMapper(opts...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
