package config

const (
	defaultDataDir            = "~/.local/share/leadscout"
	defaultLogDir             = "~/.local/share/leadscout/logs"
	defaultFreshnessDays      = 3
	defaultRetentionDays      = 5
	defaultFetchLimit         = 2000
	defaultMaxAuthorIDLen     = 50
	defaultFeedBaseURL        = "https://www.reddit.com"
	defaultFeedUserAgent      = "leadscout/0.1 (research digest)"
	defaultFeedTimeout        = 30
	defaultStuckAfterHours    = 2
	defaultLivenessTimeout    = 5
	defaultReconcileSeconds   = 15
	defaultEnrichmentBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultEnrichmentModel    = "google/gemini-3-flash-preview"
	defaultEnrichmentBatch    = 10
	defaultEnrichmentTimeout  = 60
	defaultEnrichmentAttempts = 3
	defaultSMTPServer         = "smtp.gmail.com"
	defaultSMTPPort           = 587
	defaultWorksheetName      = "Main"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultCacheTTLSeconds    = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Sources: Sources{
			FreshnessDays:  defaultFreshnessDays,
			RetentionDays:  defaultRetentionDays,
			FetchLimit:     defaultFetchLimit,
			MaxAuthorIDLen: defaultMaxAuthorIDLen,
		},
		Feed: Feed{
			BaseURL:        defaultFeedBaseURL,
			UserAgent:      defaultFeedUserAgent,
			TimeoutSeconds: defaultFeedTimeout,
		},
		Pipeline: Pipeline{
			ProcessKeywords:        []string{"leadscout pipeline", "leadscout ingest", "leadscout analyze"},
			StuckAfterHours:        defaultStuckAfterHours,
			LivenessTimeoutSeconds: defaultLivenessTimeout,
			ReconcileSeconds:       defaultReconcileSeconds,
		},
		Enrichment: Enrichment{
			BaseURL:        defaultEnrichmentBaseURL,
			Model:          defaultEnrichmentModel,
			BatchSize:      defaultEnrichmentBatch,
			TimeoutSeconds: defaultEnrichmentTimeout,
			MaxAttempts:    defaultEnrichmentAttempts,
		},
		Email: Email{
			SMTPServer: defaultSMTPServer,
			SMTPPort:   defaultSMTPPort,
		},
		Sheets: Sheets{
			WorksheetName: defaultWorksheetName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cache: Cache{
			TTLSeconds: defaultCacheTTLSeconds,
		},
	}
}
