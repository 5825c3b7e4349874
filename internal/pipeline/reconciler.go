package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadscout/internal/liveness"
	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Reconciler compares the recorded pipeline state against the OS process
// table and repairs records left behind by crashed runs.
type Reconciler struct {
	store      *store.Store
	checker    liveness.Checker
	logger     *slog.Logger
	stuckAfter time.Duration
	now        func() time.Time
}

// NewReconciler builds a reconciler. A nil logger disables logging.
func NewReconciler(st *store.Store, checker liveness.Checker, stuckAfter time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		store:      st,
		checker:    checker,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		stuckAfter: stuckAfter,
		now:        time.Now,
	}
}

// Reconcile inspects the singleton run record, probes the owner process when
// the record claims a live run, and downgrades stale records. It is
// idempotent: reconciling an already consistent record changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context) (Snapshot, error) {
	status, err := r.store.PipelineStatus(ctx)
	if err != nil {
		return Snapshot{}, services.Wrap(services.ErrStorage, "pipeline", "reconcile", "read pipeline status", err)
	}
	if status == nil {
		return Snapshot{State: StateIdle}, nil
	}

	snapshot := Snapshot{
		StartedAt:   status.StartedAt,
		CompletedAt: status.CompletedAt,
		OwnerPID:    status.OwnerPID,
	}

	if !status.IsRunning {
		switch {
		case status.CompletedAt != nil:
			snapshot.State = StateCompleted
		case status.StartedAt != nil:
			snapshot.State = StateFailed
		default:
			snapshot.State = StateIdle
		}
		return snapshot, nil
	}

	if status.OwnerPID <= 0 {
		// A running record without an owner cannot be verified; the
		// recording process died before the PID landed.
		return r.downgrade(ctx, snapshot, "running record has no owner pid")
	}

	result, err := r.checker.Check(ctx, int(status.OwnerPID))
	if err != nil {
		return Snapshot{}, services.Wrap(services.ErrValidation, "pipeline", "reconcile", "probe owner process", err)
	}

	switch result.State {
	case liveness.StateNotFound, liveness.StateZombie:
		return r.downgrade(ctx, snapshot, fmt.Sprintf("owner process %d is %s", status.OwnerPID, result.State))
	case liveness.StateForeign:
		// The PID was recycled by an unrelated process. The probe cannot
		// prove our process died, so warn without forcing a failure.
		warning := fmt.Sprintf("pid %d now belongs to an unrelated process (%s)", status.OwnerPID, result.Cmdline)
		snapshot.Warnings = append(snapshot.Warnings, warning)
		r.logger.Warn("recorded pipeline pid appears recycled",
			logging.Int64(logging.FieldPID, status.OwnerPID),
			logging.String("cmdline", result.Cmdline))
	}

	snapshot.State = StateRunning
	if status.StartedAt != nil && r.stuckAfter > 0 {
		if elapsed := r.now().UTC().Sub(*status.StartedAt); elapsed > r.stuckAfter {
			snapshot.Stuck = true
			warning := fmt.Sprintf("pipeline has been running for %s (threshold %s)", elapsed.Round(time.Minute), r.stuckAfter)
			snapshot.Warnings = append(snapshot.Warnings, warning)
			r.logger.Warn("pipeline run exceeds duration threshold",
				logging.Duration("elapsed", elapsed),
				logging.Duration("threshold", r.stuckAfter))
		}
	}
	return snapshot, nil
}

// downgrade repairs a running record whose owner is gone. When items were
// ingested after the recorded start, the run evidently finished its work and
// is recorded as completed; otherwise it is recorded as failed. Both paths
// clear the recorded owner pid.
func (r *Reconciler) downgrade(ctx context.Context, snapshot Snapshot, reason string) (Snapshot, error) {
	snapshot.OwnerPID = 0
	if snapshot.StartedAt != nil {
		count, err := r.store.CountItemsIngestedAfter(ctx, *snapshot.StartedAt)
		if err != nil {
			return Snapshot{}, services.Wrap(services.ErrStorage, "pipeline", "reconcile", "count recent items", err)
		}
		if count > 0 {
			completed := r.now().UTC()
			if err := r.store.MarkPipelineCompleted(ctx, completed); err != nil {
				return Snapshot{}, services.Wrap(services.ErrStorage, "pipeline", "reconcile", "mark completed", err)
			}
			r.logger.Info("downgraded dead run to completed",
				logging.String("reason", reason),
				logging.Int("items_after_start", count))
			snapshot.State = StateCompleted
			snapshot.CompletedAt = &completed
			return snapshot, nil
		}
	}

	if err := r.store.MarkPipelineFailed(ctx); err != nil {
		return Snapshot{}, services.Wrap(services.ErrStorage, "pipeline", "reconcile", "mark failed", err)
	}
	r.logger.Warn("downgraded dead run to failed", logging.String("reason", reason))
	snapshot.State = StateFailed
	return snapshot, nil
}

// FindOrphans scans the process table for pipeline-stage processes that are
// not the recorded owner.
func (r *Reconciler) FindOrphans(ctx context.Context) ([]liveness.ProcessInfo, error) {
	status, err := r.store.PipelineStatus(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "pipeline", "orphan scan", "read pipeline status", err)
	}

	procs, err := r.checker.ScanMatching(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "orphan scan", "scan process table", err)
	}

	ownerPID := 0
	if status != nil {
		ownerPID = int(status.OwnerPID)
	}
	var orphans []liveness.ProcessInfo
	for _, proc := range procs {
		if proc.PID == ownerPID {
			continue
		}
		orphans = append(orphans, proc)
	}
	return orphans, nil
}
