package config

import (
	"os"
	"reflect"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies the defaults used by the ICL preprocessing scripts
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Background.TileSize != 128 {
		t.Errorf("Expected tileSize=128, got %d", cfg.Background.TileSize)
	}
	if cfg.Background.FilterSize != 3 {
		t.Errorf("Expected filterSize=3, got %d", cfg.Background.FilterSize)
	}
	if cfg.Detection.NSigma != 2.0 {
		t.Errorf("Expected nSigma=2, got %f", cfg.Detection.NSigma)
	}
	if cfg.Detection.MinPixels != 20 {
		t.Errorf("Expected minPixels=20, got %d", cfg.Detection.MinPixels)
	}
	if cfg.Smoothing.Window != 15 {
		t.Errorf("Expected window=15, got %d", cfg.Smoothing.Window)
	}
	if cfg.Photometry.ZeroPoint != 25.0 {
		t.Errorf("Expected zeroPoint=25, got %f", cfg.Photometry.ZeroPoint)
	}
	if len(cfg.Isophotes) != 3 || cfg.Isophotes[0] != 27.5 {
		t.Errorf("Unexpected default isophotes %v", cfg.Isophotes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

// TestLoadConfigMissingFile verifies that a missing file yields defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Smoothing.Window != 15 {
		t.Errorf("Expected default window, got %d", cfg.Smoothing.Window)
	}
}

// TestLoadConfigPartialOverride verifies that omitted keys keep their defaults
func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icl.yaml")
	doc := `
processing:
  numCores: 2
  timeout: 90s
detection:
  nSigma: 3
  connectivity: 4
photometry:
  zeroPoint: 28.9
isophotes: [26.0, 27.0]
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Processing.NumCores != 2 {
		t.Errorf("Expected numCores=2, got %d", cfg.Processing.NumCores)
	}
	if cfg.Processing.Timeout != 90*time.Second {
		t.Errorf("Expected timeout=90s, got %s", cfg.Processing.Timeout)
	}
	if cfg.Detection.NSigma != 3 || cfg.Detection.Connectivity != 4 {
		t.Errorf("Detection overrides not applied: %+v", cfg.Detection)
	}
	if cfg.Detection.MinPixels != 20 {
		t.Errorf("Expected default minPixels to survive, got %d", cfg.Detection.MinPixels)
	}
	if cfg.Photometry.ZeroPoint != 28.9 {
		t.Errorf("Expected zeroPoint=28.9, got %f", cfg.Photometry.ZeroPoint)
	}
	if len(cfg.Isophotes) != 2 || cfg.Isophotes[1] != 27.0 {
		t.Errorf("Unexpected isophotes %v", cfg.Isophotes)
	}
}

// TestLoadConfigRejectsInvalid verifies validation runs on load
func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("detection:\n  connectivity: 6\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for connectivity=6")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"zero tile", func(c *Config) { c.Background.TileSize = 0 }},
		{"even filter", func(c *Config) { c.Background.FilterSize = 4 }},
		{"fraction above one", func(c *Config) { c.Background.MinValidFraction = 1.5 }},
		{"zero min pixels", func(c *Config) { c.Detection.MinPixels = 0 }},
		{"unknown noise model", func(c *Config) { c.Detection.NoiseModel = "poisson" }},
		{"zero window", func(c *Config) { c.Smoothing.Window = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

// TestCreateDefaultConfigFile verifies a written default file loads back unchanged
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "icl.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if cfg.Background.TileSize != 128 || cfg.Detection.NoiseModel != "uniform" {
		t.Errorf("Written config differs from defaults: %+v", cfg)
	}
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels("27.5,28.0, 28.5")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := []float64{27.5, 28, 28.5}; !reflect.DeepEqual(levels, want) {
		t.Errorf("Expected %v, got %v", want, levels)
	}

	levels, err = ParseLevels("")
	if err != nil || len(levels) != 0 {
		t.Errorf("Expected no levels from an empty list, got %v (%v)", levels, err)
	}

	if _, err := ParseLevels("27.5,bright"); err == nil {
		t.Errorf("Expected an error for a non-numeric level")
	}
}
