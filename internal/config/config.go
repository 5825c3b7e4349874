package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Sources contains feed source configuration.
type Sources struct {
	Names          []string `toml:"names"`
	FreshnessDays  int      `toml:"freshness_days"`
	RetentionDays  int      `toml:"retention_days"`
	FetchLimit     int      `toml:"fetch_limit"`
	MaxAuthorIDLen int      `toml:"max_author_id_len"`
}

// Feed contains configuration for the upstream feed API.
type Feed struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	HTMLFallback   bool   `toml:"html_fallback"`
}

// Pipeline contains configuration for background pipeline tracking.
type Pipeline struct {
	// Executable overrides the binary spawned for detached pipeline runs.
	// Empty means the current executable.
	Executable string `toml:"executable"`
	// ProcessKeywords are cmdline substrings that identify pipeline-stage
	// processes during liveness checks.
	ProcessKeywords        []string `toml:"process_keywords"`
	StuckAfterHours        int      `toml:"stuck_after_hours"`
	LivenessTimeoutSeconds int      `toml:"liveness_timeout_seconds"`
	ReconcileSeconds       int      `toml:"reconcile_seconds"`
}

// Enrichment contains configuration for the LLM relevance analysis.
type Enrichment struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	BatchSize      int    `toml:"batch_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Email contains configuration for the digest sink.
type Email struct {
	Enabled    bool     `toml:"enabled"`
	SMTPServer string   `toml:"smtp_server"`
	SMTPPort   int      `toml:"smtp_port"`
	Sender     string   `toml:"sender"`
	Password   string   `toml:"password"`
	Recipients []string `toml:"recipients"`
}

// Sheets contains configuration for the spreadsheet export sink.
type Sheets struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsFile string `toml:"credentials_file"`
	SpreadsheetID   string `toml:"spreadsheet_id"`
	WorksheetName   string `toml:"worksheet_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Cache contains configuration for the option cache.
type Cache struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// Config encapsulates all configuration values for leadscout.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Sources: feed sources, freshness and retention windows
//   - Feed: upstream listing API connection settings
//   - Pipeline: detached pipeline tracking and liveness checks
//   - Enrichment: LLM relevance analysis settings
//   - Email / Sheets: export sink settings
//   - Logging: log format and level
//   - Cache: option cache TTL
type Config struct {
	Paths      Paths      `toml:"paths"`
	Sources    Sources    `toml:"sources"`
	Feed       Feed       `toml:"feed"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Enrichment Enrichment `toml:"enrichment"`
	Email      Email      `toml:"email"`
	Sheets     Sheets     `toml:"sheets"`
	Logging    Logging    `toml:"logging"`
	Cache      Cache      `toml:"cache"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/leadscout/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("leadscout.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "leadscout.db")
}

// IngestLockPath returns the file lock taken by ingestion runs.
func (c *Config) IngestLockPath() string {
	return filepath.Join(c.Paths.DataDir, "ingest.lock")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Sheets.CredentialsFile != "" {
		if c.Sheets.CredentialsFile, err = expandPath(c.Sheets.CredentialsFile); err != nil {
			return err
		}
	}
	if c.Pipeline.Executable != "" {
		if c.Pipeline.Executable, err = expandPath(c.Pipeline.Executable); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(c.Sources.Names))
	for _, name := range c.Sources.Names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	c.Sources.Names = names

	if key := strings.TrimSpace(os.Getenv("LEADSCOUT_ENRICHMENT_API_KEY")); key != "" && c.Enrichment.APIKey == "" {
		c.Enrichment.APIKey = key
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
