package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateSinks(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.FreshnessDays <= 0 {
		return errors.New("sources.freshness_days must be positive")
	}
	if c.Sources.RetentionDays <= 0 {
		return errors.New("sources.retention_days must be positive")
	}
	if c.Sources.FetchLimit <= 0 {
		return errors.New("sources.fetch_limit must be positive")
	}
	if c.Sources.MaxAuthorIDLen <= 0 {
		return errors.New("sources.max_author_id_len must be positive")
	}
	return nil
}

func (c *Config) validateFeed() error {
	if strings.TrimSpace(c.Feed.BaseURL) == "" {
		return errors.New("feed.base_url must be set")
	}
	if strings.TrimSpace(c.Feed.UserAgent) == "" {
		return errors.New("feed.user_agent must be set")
	}
	if c.Feed.TimeoutSeconds <= 0 {
		return errors.New("feed.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if len(c.Pipeline.ProcessKeywords) == 0 {
		return errors.New("pipeline.process_keywords must include at least one keyword")
	}
	if c.Pipeline.StuckAfterHours <= 0 {
		return errors.New("pipeline.stuck_after_hours must be positive")
	}
	if c.Pipeline.LivenessTimeoutSeconds <= 0 {
		return errors.New("pipeline.liveness_timeout_seconds must be positive")
	}
	if c.Pipeline.ReconcileSeconds <= 0 {
		return errors.New("pipeline.reconcile_seconds must be positive")
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.BatchSize <= 0 {
		return errors.New("enrichment.batch_size must be positive")
	}
	if c.Enrichment.MaxAttempts <= 0 {
		return errors.New("enrichment.max_attempts must be positive")
	}
	if c.Enrichment.TimeoutSeconds <= 0 {
		return errors.New("enrichment.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSinks() error {
	if c.Email.Enabled {
		if strings.TrimSpace(c.Email.Sender) == "" {
			return errors.New("email.sender must be set when email.enabled is true")
		}
		if len(c.Email.Recipients) == 0 {
			return errors.New("email.recipients must include at least one address when email.enabled is true")
		}
		if c.Email.SMTPPort <= 0 {
			return errors.New("email.smtp_port must be positive")
		}
	}
	if c.Sheets.Enabled {
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			return errors.New("sheets.spreadsheet_id must be set when sheets.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Cache.TTLSeconds <= 0 {
		return errors.New("cache.ttl_seconds must be positive")
	}
	return nil
}
