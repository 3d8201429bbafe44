// Package config provides configuration loading and management for volmorph.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters shared by all operations
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Iterations is the number of times a morphological pass is applied
		Iterations int `yaml:"iterations"`
	} `yaml:"processing"`

	// Morphology parameters for dilate and erode
	Morphology struct {
		// Mode selects the kernel: "multilabel" or "grey"
		Mode string `yaml:"mode"`

		// BackgroundOnly restricts dilation to background voxels
		BackgroundOnly bool `yaml:"backgroundOnly"`

		// ErodeBorder treats out-of-bounds neighbors as background during erosion
		ErodeBorder bool `yaml:"erodeBorder"`
	} `yaml:"morphology"`

	// FillHoles parameters
	FillHoles struct {
		// MergeThreshold is the minimum boundary-area fraction a single
		// enclosing label must own before a hole group is merged
		MergeThreshold float64 `yaml:"mergeThreshold"`

		// FixBorders resolves holes visible only on the bounding-box faces
		FixBorders bool `yaml:"fixBorders"`

		// Anisotropy is the per-axis voxel resolution in x, y, z
		Anisotropy []float64 `yaml:"anisotropy"`
	} `yaml:"fillHoles"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Iterations = 1

	// Set default morphology parameters
	cfg.Morphology.Mode = "multilabel"
	cfg.Morphology.BackgroundOnly = true
	cfg.Morphology.ErodeBorder = true

	// Set default hole-filling parameters
	cfg.FillHoles.MergeThreshold = 1.0
	cfg.FillHoles.FixBorders = false
	cfg.FillHoles.Anisotropy = []float64{1.0, 1.0, 1.0}

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
