// Package config provides configuration loading and management for iclcontours.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds the number of isophote levels traced concurrently
		NumCores int `yaml:"numCores"`

		// Timeout bounds a whole pipeline run; zero disables it
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"processing"`

	// Background estimation parameters
	Background struct {
		// TileSize is the side of the square tiles the frame is partitioned into
		TileSize int `yaml:"tileSize"`

		// FilterSize is the side of the median filter applied to the tile mesh
		FilterSize int `yaml:"filterSize"`

		// MinValidFraction is the share of finite pixels a tile needs to be fitted
		MinValidFraction float64 `yaml:"minValidFraction"`

		// ClipSigma and ClipIterations control the sigma clipping of tile pixels
		ClipSigma      float64 `yaml:"clipSigma"`
		ClipIterations int     `yaml:"clipIterations"`
	} `yaml:"background"`

	// Source detection parameters
	Detection struct {
		// NSigma is the detection significance in units of background noise
		NSigma float64 `yaml:"nSigma"`

		// MinPixels is the smallest connected group that counts as a source
		MinPixels int `yaml:"minPixels"`

		// Connectivity is 4 or 8
		Connectivity int `yaml:"connectivity"`

		// NoiseModel is "uniform" or "local"
		NoiseModel string `yaml:"noiseModel"`
	} `yaml:"detection"`

	// Residual smoothing parameters
	Smoothing struct {
		// Window is the side of the square median window
		Window int `yaml:"window"`
	} `yaml:"smoothing"`

	// Photometry parameters
	Photometry struct {
		// ZeroPoint converts surface brightness to flux
		ZeroPoint float64 `yaml:"zeroPoint"`
	} `yaml:"photometry"`

	// Isophotes lists the default surface-brightness levels in mag/arcsec^2
	Isophotes []float64 `yaml:"isophotes"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether stage surfaces are written as PNG
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where stage surfaces go
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Preview renders all contour levels onto one PNG
		Preview bool `yaml:"preview"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Timeout = 0

	cfg.Background.TileSize = 128
	cfg.Background.FilterSize = 3
	cfg.Background.MinValidFraction = 0.1
	cfg.Background.ClipSigma = 3.0
	cfg.Background.ClipIterations = 10

	cfg.Detection.NSigma = 2.0
	cfg.Detection.MinPixels = 20
	cfg.Detection.Connectivity = 8
	cfg.Detection.NoiseModel = "uniform"

	cfg.Smoothing.Window = 15

	cfg.Photometry.ZeroPoint = 25.0

	cfg.Isophotes = []float64{27.5, 28.0, 28.5}

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Preview = false
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that every parameter is usable by the pipeline
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Processing.Timeout < 0 {
		return fmt.Errorf("processing.timeout must not be negative, got %s", c.Processing.Timeout)
	}
	if c.Background.TileSize < 1 {
		return fmt.Errorf("background.tileSize must be positive, got %d", c.Background.TileSize)
	}
	if c.Background.FilterSize < 1 || c.Background.FilterSize%2 == 0 {
		return fmt.Errorf("background.filterSize must be a positive odd number, got %d", c.Background.FilterSize)
	}
	if c.Background.MinValidFraction < 0 || c.Background.MinValidFraction > 1 {
		return fmt.Errorf("background.minValidFraction must be in [0, 1], got %g", c.Background.MinValidFraction)
	}
	if c.Background.ClipSigma <= 0 {
		return fmt.Errorf("background.clipSigma must be positive, got %g", c.Background.ClipSigma)
	}
	if c.Detection.NSigma < 0 {
		return fmt.Errorf("detection.nSigma must not be negative, got %g", c.Detection.NSigma)
	}
	if c.Detection.MinPixels < 1 {
		return fmt.Errorf("detection.minPixels must be at least 1, got %d", c.Detection.MinPixels)
	}
	if c.Detection.Connectivity != 4 && c.Detection.Connectivity != 8 {
		return fmt.Errorf("detection.connectivity must be 4 or 8, got %d", c.Detection.Connectivity)
	}
	if c.Detection.NoiseModel != "uniform" && c.Detection.NoiseModel != "local" {
		return fmt.Errorf("detection.noiseModel must be \"uniform\" or \"local\", got %q", c.Detection.NoiseModel)
	}
	if c.Smoothing.Window < 1 {
		return fmt.Errorf("smoothing.window must be positive, got %d", c.Smoothing.Window)
	}
	return nil
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
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
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

// ParseLevels parses a comma or space separated list of isophote levels
func ParseLevels(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	levels := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid isophote level %q: %w", f, err)
		}
		levels = append(levels, v)
	}
	return levels, nil
}
