package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestDefaultConfig verifies the default parameter values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.NumCores != runtime.NumCPU() {
		t.Errorf("Expected NumCores %d, got %d", runtime.NumCPU(), cfg.Processing.NumCores)
	}
	if cfg.Processing.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", cfg.Processing.Iterations)
	}
	if cfg.Morphology.Mode != "multilabel" {
		t.Errorf("Expected multilabel mode, got %s", cfg.Morphology.Mode)
	}
	if !cfg.Morphology.BackgroundOnly {
		t.Error("Expected BackgroundOnly to default to true")
	}
	if !cfg.Morphology.ErodeBorder {
		t.Error("Expected ErodeBorder to default to true")
	}
	if cfg.FillHoles.MergeThreshold != 1.0 {
		t.Errorf("Expected merge threshold 1.0, got %f", cfg.FillHoles.MergeThreshold)
	}
	if len(cfg.FillHoles.Anisotropy) != 3 {
		t.Fatalf("Expected 3 anisotropy components, got %d", len(cfg.FillHoles.Anisotropy))
	}
	for i, a := range cfg.FillHoles.Anisotropy {
		if a != 1.0 {
			t.Errorf("Expected isotropic default, component %d is %f", i, a)
		}
	}
}

// TestLoadConfigMissingFile verifies that a missing file yields defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got error: %v", err)
	}
	if cfg.Processing.Iterations != 1 {
		t.Errorf("Expected default iterations, got %d", cfg.Processing.Iterations)
	}
}

// TestSaveAndLoadConfig verifies the YAML round trip
func TestSaveAndLoadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Morphology.Mode = "grey"
	cfg.FillHoles.MergeThreshold = 0.5
	cfg.FillHoles.Anisotropy = []float64{4, 4, 40}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Processing.NumCores != 3 {
		t.Errorf("Expected NumCores 3, got %d", loaded.Processing.NumCores)
	}
	if loaded.Morphology.Mode != "grey" {
		t.Errorf("Expected grey mode, got %s", loaded.Morphology.Mode)
	}
	if loaded.FillHoles.MergeThreshold != 0.5 {
		t.Errorf("Expected merge threshold 0.5, got %f", loaded.FillHoles.MergeThreshold)
	}
	if loaded.FillHoles.Anisotropy[2] != 40 {
		t.Errorf("Expected z anisotropy 40, got %f", loaded.FillHoles.Anisotropy[2])
	}
}

// TestLoadConfigPartialFile verifies that unspecified fields keep defaults
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	partial := []byte("processing:\n  iterations: 4\n")
	if err := os.WriteFile(path, partial, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Processing.Iterations != 4 {
		t.Errorf("Expected 4 iterations, got %d", cfg.Processing.Iterations)
	}
	if cfg.Morphology.Mode != "multilabel" {
		t.Errorf("Expected the default mode preserved, got %s", cfg.Morphology.Mode)
	}
}

// TestCreateDefaultConfigFile verifies the bootstrap helper
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected the config file to exist: %v", err)
	}
}
