package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadscout/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[sources]
names = ["getdisciplined", " DecidingToBeBetter ", ""]
retention_days = 7

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, got exists=%v path=%q", exists, resolved)
	}
	if got := cfg.Sources.RetentionDays; got != 7 {
		t.Fatalf("retention_days = %d, want 7", got)
	}
	want := []string{"getdisciplined", "DecidingToBeBetter"}
	if len(cfg.Sources.Names) != len(want) {
		t.Fatalf("sources = %v, want %v", cfg.Sources.Names, want)
	}
	for i, name := range want {
		if cfg.Sources.Names[i] != name {
			t.Fatalf("sources[%d] = %q, want %q", i, cfg.Sources.Names[i], name)
		}
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[sources]
retention_days = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for zero retention window")
	} else if !strings.Contains(err.Error(), "retention_days") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDatabasePathInsideDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	if got := cfg.DatabasePath(); filepath.Dir(got) != cfg.Paths.DataDir {
		t.Fatalf("database path %q not inside data dir %q", got, cfg.Paths.DataDir)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[sources]") {
		t.Fatal("sample config missing sources section")
	}
}
