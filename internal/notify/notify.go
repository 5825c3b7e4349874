package notify

import (
	"context"
	"log/slog"

	"leadscout/internal/config"
	"leadscout/internal/logging"
	"leadscout/internal/store"
)

// Sink delivers a set of items to an external destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, items []*store.Item) error
}

// NewSinks builds every sink enabled in the configuration.
func NewSinks(cfg *config.Config, logger *slog.Logger) []Sink {
	var sinks []Sink
	if cfg.Email.Enabled {
		sinks = append(sinks, NewEmailSink(cfg.Email))
	}
	if cfg.Sheets.Enabled {
		sinks = append(sinks, NewSheetsSink(cfg.Sheets))
	}
	return sinks
}

// DeliverAll sends items through every sink, logging failures instead of
// aborting: one broken destination never blocks the others.
func DeliverAll(ctx context.Context, sinks []Sink, items []*store.Item, logger *slog.Logger) {
	if len(items) == 0 || len(sinks) == 0 {
		return
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notify")

	for _, sink := range sinks {
		if err := sink.Deliver(ctx, items); err != nil {
			logger.Error("sink delivery failed",
				logging.String("sink", sink.Name()),
				logging.Int("items", len(items)),
				logging.Error(err))
			continue
		}
		logger.Info("sink delivery complete",
			logging.String("sink", sink.Name()),
			logging.Int("items", len(items)))
	}
}
