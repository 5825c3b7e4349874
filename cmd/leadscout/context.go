package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"leadscout/internal/config"
	"leadscout/internal/enrich"
	"leadscout/internal/feed"
	"leadscout/internal/health"
	"leadscout/internal/ingest"
	"leadscout/internal/liveness"
	"leadscout/internal/logging"
	"leadscout/internal/notify"
	"leadscout/internal/optioncache"
	"leadscout/internal/pipeline"
	"leadscout/internal/review"
	"leadscout/internal/store"
)

// commandContext lazily loads configuration and wires subsystems for
// commands. Config loading happens at most once per process.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withStore opens the database, runs fn, and closes the database afterwards.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

func (c *commandContext) reconciler(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Reconciler {
	checker := liveness.NewChecker(
		cfg.Pipeline.ProcessKeywords,
		time.Duration(cfg.Pipeline.LivenessTimeoutSeconds)*time.Second,
		logger,
	)
	stuckAfter := time.Duration(cfg.Pipeline.StuckAfterHours) * time.Hour
	return pipeline.NewReconciler(st, checker, stuckAfter, logger)
}

// feedClient builds the candidate source plus the listing client used for
// author profile lookups.
func (c *commandContext) feedClient(cfg *config.Config, logger *slog.Logger) (feed.Client, *feed.ListingClient) {
	feedCfg := feed.Config{
		BaseURL:        cfg.Feed.BaseURL,
		UserAgent:      cfg.Feed.UserAgent,
		TimeoutSeconds: cfg.Feed.TimeoutSeconds,
	}
	primary := feed.NewListingClient(feedCfg)
	if !cfg.Feed.HTMLFallback {
		return primary, primary
	}
	return feed.NewFallbackClient(primary, feed.NewHTMLClient(feed.Config{
		UserAgent:      cfg.Feed.UserAgent,
		TimeoutSeconds: cfg.Feed.TimeoutSeconds,
	}), logger), primary
}

func (c *commandContext) orchestrator(cfg *config.Config, st *store.Store, cache *optioncache.Cache, logger *slog.Logger) *ingest.Orchestrator {
	client, profiles := c.feedClient(cfg, logger)
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, profiles, logger)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, cache, logger)
	var extractor ingest.TextExtractor
	if cfg.Enrichment.APIKey != "" {
		extractor = c.enrichClient(cfg)
	}
	return ingest.NewOrchestrator(cfg, client, engine, reaper, extractor, cache, logger)
}

func (c *commandContext) enrichClient(cfg *config.Config) *enrich.Client {
	return enrich.NewClient(enrich.ClientConfig{
		APIKey:         cfg.Enrichment.APIKey,
		BaseURL:        cfg.Enrichment.BaseURL,
		Model:          cfg.Enrichment.Model,
		TimeoutSeconds: cfg.Enrichment.TimeoutSeconds,
		MaxAttempts:    cfg.Enrichment.MaxAttempts,
	})
}

func (c *commandContext) analyzer(cfg *config.Config, st *store.Store, logger *slog.Logger) *enrich.Analyzer {
	return enrich.NewAnalyzer(st, c.enrichClient(cfg), cfg.Enrichment.BatchSize, logger)
}

func (c *commandContext) optionCache(cfg *config.Config, st *store.Store) *optioncache.Cache {
	return optioncache.New(st, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
}

func (c *commandContext) reviewService(cfg *config.Config, st *store.Store, logger *slog.Logger) *review.Service {
	return review.NewService(st, notify.NewSinks(cfg, logger), c.optionCache(cfg, st), logger)
}

func (c *commandContext) healthChecker(cfg *config.Config, st *store.Store, logger *slog.Logger) *health.Checker {
	return health.NewChecker(st, c.reconciler(cfg, st, logger), logger)
}
