package testsupport

import (
	"path/filepath"
	"testing"

	"leadscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Enrichment.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSources overrides the configured feed sources.
func WithSources(names ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sources.Names = names
	}
}

// WithFreshnessDays overrides the ingestion freshness window.
func WithFreshnessDays(days int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sources.FreshnessDays = days
	}
}

// WithRetentionDays overrides the reaper retention window.
func WithRetentionDays(days int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sources.RetentionDays = days
	}
}
