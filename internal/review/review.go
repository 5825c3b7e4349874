// Package review applies status transitions to ingested items and notifies
// export sinks when an item is marked as sent.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"leadscout/internal/logging"
	"leadscout/internal/notify"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Invalidator drops cached listing options after a mutation.
type Invalidator interface {
	Invalidate()
}

// Service coordinates manual review actions against the item store.
type Service struct {
	store       *store.Store
	sinks       []notify.Sink
	invalidator Invalidator
	logger      *slog.Logger
}

func NewService(st *store.Store, sinks []notify.Sink, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:       st,
		sinks:       sinks,
		invalidator: invalidator,
		logger:      logging.NewComponentLogger(logger, "review"),
	}
}

// SetStatus moves an item to the given status. Unknown statuses and missing
// items are rejected. A transition to sent delivers the item through every
// configured sink; delivery failures are logged, not returned, because the
// status change has already been committed.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*store.Item, error) {
	parsed, ok := store.ParseStatus(status)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "review", "set-status", fmt.Sprintf("unknown status %q", status), nil)
	}

	updated, err := s.store.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, services.Wrap(services.ErrValidation, "review", "set-status", fmt.Sprintf("item %s not found", id), nil)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("status updated",
		logging.String(logging.FieldItemID, id),
		logging.String("status", string(parsed)))

	if parsed == store.StatusSent && item != nil {
		notify.DeliverAll(ctx, s.sinks, []*store.Item{item}, s.logger)
	}
	return item, nil
}

// Leads returns analyzed items currently marked as leads, best first.
func (s *Service) Leads(ctx context.Context, limit int) ([]*store.Item, error) {
	return s.store.ListItems(ctx, store.ListFilter{
		Statuses: []store.Status{store.StatusLead},
		Limit:    limit,
	})
}
