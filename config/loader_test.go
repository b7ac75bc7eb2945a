package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}
	if cfg.Engine.ConfigDir != "/etc/convolvefs/filters" {
		t.Errorf("expected default config dir, got %q", cfg.Engine.ConfigDir)
	}
	if cfg.Engine.SizeEstimateThreshold != 0.4 {
		t.Errorf("expected default threshold 0.4, got %v", cfg.Engine.SizeEstimateThreshold)
	}
}

func TestLoadConfig_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := []byte("engine:\n  config_dir: /srv/filters\n  size_estimate_pad: 8192\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Engine.ConfigDir != "/srv/filters" {
		t.Errorf("expected config dir /srv/filters, got %q", cfg.Engine.ConfigDir)
	}
	if cfg.Engine.SizeEstimatePad != 8192 {
		t.Errorf("expected pad 8192, got %d", cfg.Engine.SizeEstimatePad)
	}
	if cfg.Logging.Level != LogLevelDebug {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestValidateConfig_CorrectsOutOfRangeThreshold(t *testing.T) {
	cfg := &Config{}
	SetDefaultConfig(cfg)
	cfg.Engine.SizeEstimateThreshold = 5
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected validation error describing the correction")
	}
	if cfg.Engine.SizeEstimateThreshold != 0.4 {
		t.Errorf("expected threshold corrected to 0.4, got %v", cfg.Engine.SizeEstimateThreshold)
	}
}

func TestValidateConfig_RejectsPathTraversal(t *testing.T) {
	cfg := &Config{}
	SetDefaultConfig(cfg)
	cfg.Engine.ConfigDir = "/etc/convolvefs/../../etc/passwd"
	_ = ValidateConfig(cfg)
	if cfg.Engine.ConfigDir != "/etc/convolvefs/filters" {
		t.Errorf("expected sanitized config dir, got %q", cfg.Engine.ConfigDir)
	}
}
