package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Stage is a unit of pipeline work executed in order by the Runner.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes pipeline stages inside the spawned pipeline process and
// keeps the singleton run record in sync with the outcome.
type Runner struct {
	store  *store.Store
	stages []Stage
	logger *slog.Logger
}

// NewRunner builds a runner over the given stages. A nil logger disables
// logging.
func NewRunner(st *store.Store, logger *slog.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:  st,
		stages: stages,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run claims the run record for this process, executes every stage in order,
// and records completion or failure. A stage error stops the run; later
// stages do not execute.
func (r *Runner) Run(ctx context.Context) error {
	startedAt := time.Now().UTC()
	pid := int64(os.Getpid())
	if err := r.store.MarkPipelineStarted(ctx, pid, startedAt); err != nil {
		return services.Wrap(services.ErrStorage, "pipeline", "run", "claim run record", err)
	}
	r.logger.Info("pipeline run started", logging.Int64(logging.FieldPID, pid))

	for _, stage := range r.stages {
		stageStart := time.Now()
		r.logger.Info("stage started", logging.String("stage", stage.Name()))
		if err := stage.Run(ctx); err != nil {
			r.logger.Error("stage failed",
				logging.String("stage", stage.Name()),
				logging.Error(err))
			if markErr := r.store.MarkPipelineFailed(ctx); markErr != nil {
				r.logger.Error("failed to record pipeline failure", logging.Error(markErr))
			}
			return err
		}
		r.logger.Info("stage completed",
			logging.String("stage", stage.Name()),
			logging.Duration("elapsed", time.Since(stageStart)))
	}

	completedAt := time.Now().UTC()
	if err := r.store.MarkPipelineCompleted(ctx, completedAt); err != nil {
		return services.Wrap(services.ErrStorage, "pipeline", "run", "record completion", err)
	}
	r.logger.Info("pipeline run completed",
		logging.Duration("elapsed", completedAt.Sub(startedAt)))
	return nil
}
