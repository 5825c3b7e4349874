package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"leadscout/internal/config"
	"leadscout/internal/feed"
	"leadscout/internal/logging"
	"leadscout/internal/services"
)

// ErrIngestLocked indicates another ingestion run holds the file lock.
var ErrIngestLocked = errors.New("ingest already in progress")

// Summary aggregates the outcome counts of one ingestion run.
type Summary struct {
	RunID            string
	Fetched          int
	Discarded        int
	Inserted         int
	Replaced         int
	SkippedProtected int
	SkippedDuplicate int
	Errors           int
	Reaped           int64
	Elapsed          time.Duration
}

// TextExtractor transcribes text found in linked images. Satisfied by
// *enrich.Client.
type TextExtractor interface {
	ExtractImageText(ctx context.Context, imageURL string) (string, error)
}

// Orchestrator drives a full ingestion run across the configured sources.
type Orchestrator struct {
	cfg         *config.Config
	client      feed.Client
	engine      *Engine
	reaper      *Reaper
	extractor   TextExtractor
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewOrchestrator wires an ingestion run. A nil extractor disables image
// transcription; a nil logger disables logging; a nil invalidator disables
// cache notification.
func NewOrchestrator(cfg *config.Config, client feed.Client, engine *Engine, reaper *Reaper, extractor TextExtractor, invalidator Invalidator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:         cfg,
		client:      client,
		engine:      engine,
		reaper:      reaper,
		extractor:   extractor,
		invalidator: invalidator,
		logger:      logging.NewComponentLogger(logger, "ingest"),
		now:         time.Now,
	}
}

// Name implements the pipeline stage contract.
func (o *Orchestrator) Name() string { return "ingest" }

// Run implements the pipeline stage contract.
func (o *Orchestrator) Run(ctx context.Context) error {
	_, err := o.Ingest(ctx)
	return err
}

// Ingest acquires the run lock, processes every configured source in order,
// reaps stale items, and reports a summary. One candidate failing never
// aborts the run; failures are counted and logged.
func (o *Orchestrator) Ingest(ctx context.Context) (Summary, error) {
	lock := flock.New(o.cfg.IngestLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "ingest", "run", "acquire run lock", err)
	}
	if !locked {
		return Summary{}, services.Wrap(ErrIngestLocked, "ingest", "run", "run lock held by another process", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	start := o.now()
	summary := Summary{RunID: runID}
	freshness := time.Duration(o.cfg.Sources.FreshnessDays) * 24 * time.Hour
	cutoff := start.UTC().Add(-freshness)

	logger.Info("ingestion run started",
		logging.Int("sources", len(o.cfg.Sources.Names)))

	for _, source := range o.cfg.Sources.Names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := o.ingestSource(ctx, source, cutoff, &summary); err != nil {
			// A source-level failure (fetch error) moves on to the next
			// source; partial runs are still useful.
			summary.Errors++
			logger.Error("source ingestion failed",
				logging.String(logging.FieldSource, source),
				logging.Error(err))
		}
	}

	if o.reaper != nil {
		reaped, err := o.reaper.Reap(ctx)
		if err != nil {
			summary.Errors++
			logger.Error("reap failed", logging.Error(err))
		} else {
			summary.Reaped = reaped
		}
	}

	if o.invalidator != nil && (summary.Inserted > 0 || summary.Replaced > 0) {
		o.invalidator.Invalidate()
	}

	summary.Elapsed = o.now().Sub(start)
	logger.Info("ingestion run finished",
		logging.Int("fetched", summary.Fetched),
		logging.Int("discarded", summary.Discarded),
		logging.Int("inserted", summary.Inserted),
		logging.Int("replaced", summary.Replaced),
		logging.Int("skipped_protected", summary.SkippedProtected),
		logging.Int("skipped_duplicate", summary.SkippedDuplicate),
		logging.Int("errors", summary.Errors),
		logging.Int64("reaped", summary.Reaped),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// ingestSource walks one source newest first. Processing stops early at the
// first candidate older than the freshness window: everything after it in a
// newest-first listing is older still.
func (o *Orchestrator) ingestSource(ctx context.Context, source string, cutoff time.Time, summary *Summary) error {
	ctx = services.WithSource(ctx, source)
	logger := logging.WithContext(ctx, o.logger)

	candidates, err := o.client.FetchNew(ctx, source, o.cfg.Sources.FetchLimit)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "ingest", "fetch", "fetch source listing", err)
	}
	summary.Fetched += len(candidates)

	admitted := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !candidate.CreatedUTC.IsZero() && candidate.CreatedUTC.Before(cutoff) {
			logger.Debug("freshness cutoff reached",
				logging.String(logging.FieldItemID, candidate.ID),
				logging.Time("created", candidate.CreatedUTC))
			break
		}

		// A newest-first listing that reaches an already-stored id has
		// caught up with the previous run; everything beyond it was
		// processed before.
		seen, err := o.engine.Seen(ctx, candidate.ID)
		if err != nil {
			summary.Errors++
			logger.Error("candidate lookup failed",
				logging.String(logging.FieldItemID, candidate.ID),
				logging.Error(err))
			continue
		}
		if seen {
			summary.SkippedDuplicate++
			logger.Debug("caught up with previous run",
				logging.String(logging.FieldItemID, candidate.ID))
			break
		}

		// Deleted accounts and malformed ids cannot satisfy the
		// one-item-per-author policy; those candidates never reach storage.
		if _, ok := o.engine.ResolveAuthorID(candidate.AuthorID); !ok {
			summary.Discarded++
			logger.Debug("discarding candidate without resolvable author",
				logging.String(logging.FieldItemID, candidate.ID))
			continue
		}

		if o.extractor != nil {
			if imageURL, ok := candidate.ImageURL(); ok {
				// Transcription is best effort; the candidate is admitted
				// without it when the extractor fails.
				text, err := o.extractor.ExtractImageText(ctx, imageURL)
				if err != nil {
					logger.Warn("image transcription failed",
						logging.String(logging.FieldItemID, candidate.ID),
						logging.Error(err))
				} else {
					candidate.OCRText = text
				}
			}
		}

		outcome, err := o.engine.Admit(ctx, candidate)
		if err != nil {
			summary.Errors++
			logger.Error("candidate admission failed",
				logging.String(logging.FieldItemID, candidate.ID),
				logging.Error(err))
			continue
		}
		switch outcome {
		case OutcomeInserted:
			summary.Inserted++
			admitted++
		case OutcomeReplaced:
			summary.Replaced++
			admitted++
		case OutcomeSkippedProtected:
			summary.SkippedProtected++
		case OutcomeSkippedDuplicate:
			summary.SkippedDuplicate++
		}
	}

	logger.Info("source ingested",
		logging.Int("candidates", len(candidates)),
		logging.Int("admitted", admitted))
	return nil
}
