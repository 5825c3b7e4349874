package ingest

import (
	"context"
	"log/slog"
	"time"

	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Invalidator is notified after writes that change stored item sets.
type Invalidator interface {
	Invalidate()
}

// Reaper deletes unprotected items that have aged past the retention window.
type Reaper struct {
	store       *store.Store
	retention   time.Duration
	logger      *slog.Logger
	invalidator Invalidator
	now         func() time.Time
}

// NewReaper builds a reaper with the given retention window. A nil logger
// disables logging; a nil invalidator disables cache notification.
func NewReaper(st *store.Store, retentionDays int, invalidator Invalidator, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 5
	}
	return &Reaper{
		store:       st,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		logger:      logging.NewComponentLogger(logger, "reaper"),
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Reap removes unprotected items created before the retention cutoff and
// returns the number removed.
func (r *Reaper) Reap(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.retention)
	reaped, err := r.store.ReapOlderThan(ctx, cutoff)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "reaper", "reap", "delete stale items", err)
	}
	if reaped > 0 {
		r.logger.Info("reaped stale items",
			logging.Int64("reaped", reaped),
			logging.Time("cutoff", cutoff))
		if r.invalidator != nil {
			r.invalidator.Invalidate()
		}
	}
	return reaped, nil
}
