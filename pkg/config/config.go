// Package config provides configuration loading and management for lungseg3d.
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
	// Segmentation parameters
	Segmentation struct {
		// AirThresholdHU is the intensity cutoff separating air from soft
		// tissue. Voxels strictly below it are air candidates. The default
		// of -320 HU follows the DSB 2017 tutorial pipeline.
		AirThresholdHU float64 `yaml:"airThresholdHU"`

		// HoleFillMaxVoxels caps the per-slice size of enclosed non-air
		// pockets (vessels, airway walls) that get folded into the mask
		HoleFillMaxVoxels int `yaml:"holeFillMaxVoxels"`

		// DilationRadius is the number of 6-neighborhood dilation passes
		// applied to smooth the mask boundary
		DilationRadius int `yaml:"dilationRadius"`
	} `yaml:"segmentation"`

	// Mesh extraction parameters
	Mesh struct {
		// StepSize is the marching cubes sampling stride in voxels.
		// Larger values trade surface detail for triangle count.
		StepSize int `yaml:"stepSize"`
	} `yaml:"mesh"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Display parameters for slice-view preparation
	Display struct {
		// WindowLowHU and WindowHighHU bound the intensity window mapped
		// onto [0, 1] for display
		WindowLowHU  float64 `yaml:"windowLowHU"`
		WindowHighHU float64 `yaml:"windowHighHU"`

		// AutoWindow derives the display window from the scan's intensity
		// percentiles instead of the fixed bounds above
		AutoWindow bool `yaml:"autoWindow"`
	} `yaml:"display"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SaveSlices determines whether slice images are exported after
		// segmentation
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is the directory where slice images are written
		SlicesDir string `yaml:"slicesDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default segmentation parameters
	cfg.Segmentation.AirThresholdHU = -320
	cfg.Segmentation.HoleFillMaxVoxels = 512
	cfg.Segmentation.DilationRadius = 1

	// Set default mesh parameters
	cfg.Mesh.StepSize = 1

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default display window: a wide lung window
	cfg.Display.WindowLowHU = -1000
	cfg.Display.WindowHighHU = 400
	cfg.Display.AutoWindow = false

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "slice_previews"

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run with
func (cfg *Config) Validate() error {
	if cfg.Mesh.StepSize < 1 {
		return fmt.Errorf("mesh step size must be a positive integer, got %d", cfg.Mesh.StepSize)
	}
	if cfg.Segmentation.HoleFillMaxVoxels < 0 {
		return fmt.Errorf("hole fill limit must be non-negative, got %d", cfg.Segmentation.HoleFillMaxVoxels)
	}
	if cfg.Segmentation.DilationRadius < 0 {
		return fmt.Errorf("dilation radius must be non-negative, got %d", cfg.Segmentation.DilationRadius)
	}
	if cfg.Processing.NumCores < 1 {
		return fmt.Errorf("number of cores must be positive, got %d", cfg.Processing.NumCores)
	}
	if cfg.Display.WindowHighHU <= cfg.Display.WindowLowHU {
		return fmt.Errorf("display window high (%f) must exceed low (%f)",
			cfg.Display.WindowHighHU, cfg.Display.WindowLowHU)
	}
	return nil
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
