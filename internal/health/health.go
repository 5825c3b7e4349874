// Package health aggregates database, pipeline, and process diagnostics into
// a single pass/fail report for the health command.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadscout/internal/logging"
	"leadscout/internal/pipeline"
	"leadscout/internal/store"
)

// Report is the outcome of a full health check. Healthy is false whenever any
// issue was found; fixes describe repairs the check applied on its own.
type Report struct {
	Healthy  bool
	Pipeline pipeline.Snapshot
	Database store.DatabaseHealth
	Issues   []string
	Fixes    []string
}

// Checker runs the combined health check.
type Checker struct {
	store      *store.Store
	reconciler *pipeline.Reconciler
	logger     *slog.Logger
	now        func() time.Time
}

func NewChecker(st *store.Store, reconciler *pipeline.Reconciler, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		store:      st,
		reconciler: reconciler,
		logger:     logging.NewComponentLogger(logger, "health"),
		now:        time.Now,
	}
}

// Check reconciles pipeline state, scans for orphaned stage processes, and
// inspects the database. Reconciliation repairs stale records as a side
// effect; those repairs are reported as fixes, not issues.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	report := Report{Healthy: true}

	before, err := c.store.PipelineStatus(ctx)
	if err != nil {
		return report, err
	}

	snapshot, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		report.Healthy = false
		report.Issues = append(report.Issues, fmt.Sprintf("pipeline reconciliation failed: %v", err))
	} else {
		report.Pipeline = snapshot
		if before != nil && before.IsRunning && !snapshot.Running() {
			report.Fixes = append(report.Fixes, fmt.Sprintf("repaired stale run record: marked %s", snapshot.State))
		}
		for _, warning := range snapshot.Warnings {
			report.Issues = append(report.Issues, warning)
			report.Healthy = false
		}
	}

	orphans, err := c.reconciler.FindOrphans(ctx)
	if err != nil {
		c.logger.Warn("orphan scan failed", logging.Error(err))
	}
	for _, orphan := range orphans {
		report.Issues = append(report.Issues, fmt.Sprintf("orphaned stage process pid %d: %s", orphan.PID, orphan.Cmdline))
		report.Healthy = false
	}

	dbHealth, err := c.store.CheckHealth(ctx)
	report.Database = dbHealth
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("database check failed: %v", err))
		report.Healthy = false
	} else {
		for _, issue := range databaseIssues(dbHealth) {
			report.Issues = append(report.Issues, issue)
			report.Healthy = false
		}
	}

	c.logger.Info("health check complete",
		logging.Bool("healthy", report.Healthy),
		logging.Int("issues", len(report.Issues)),
		logging.Int("fixes", len(report.Fixes)))
	return report, nil
}

func databaseIssues(h store.DatabaseHealth) []string {
	var issues []string
	if !h.DatabaseExists {
		return append(issues, fmt.Sprintf("database file missing at %s", h.DBPath))
	}
	if !h.DatabaseReadable {
		issues = append(issues, "database is not readable")
	}
	if !h.TableExists {
		issues = append(issues, "items table is missing")
	}
	for _, col := range h.MissingColumns {
		issues = append(issues, fmt.Sprintf("items table is missing column %q", col))
	}
	if !h.IntegrityCheck {
		issues = append(issues, "integrity check failed")
	}
	return issues
}
