package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PipelineStatus returns the singleton run-state row. Returns nil when no
// pipeline run has ever been recorded.
func (s *Store) PipelineStatus(ctx context.Context) (*PipelineStatus, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT started_at, is_running, completed_at, owner_pid FROM pipeline_status WHERE id = 1`,
	)
	var (
		startedRaw   sql.NullString
		isRunning    sql.NullInt64
		completedRaw sql.NullString
		ownerPID     sql.NullInt64
	)
	if err := row.Scan(&startedRaw, &isRunning, &completedRaw, &ownerPID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pipeline status: %w", err)
	}

	status := &PipelineStatus{
		IsRunning: isRunning.Int64 != 0,
		OwnerPID:  ownerPID.Int64,
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			status.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			status.CompletedAt = &completed
		}
	}
	return status, nil
}

// MarkPipelineStarted records a fresh pipeline run owned by the given process.
// The singleton row is replaced in a single statement so concurrent readers
// never observe a partially updated state.
func (s *Store) MarkPipelineStarted(ctx context.Context, pid int64, startedAt time.Time) error {
	_, err := s.execRetry(
		ctx,
		`INSERT INTO pipeline_status (id, started_at, is_running, completed_at, owner_pid)
         VALUES (1, ?, 1, NULL, ?)
         ON CONFLICT(id) DO UPDATE SET
            started_at = excluded.started_at,
            is_running = 1,
            completed_at = NULL,
            owner_pid = excluded.owner_pid`,
		formatTime(startedAt),
		pid,
	)
	if err != nil {
		return fmt.Errorf("mark pipeline started: %w", err)
	}
	return nil
}

// MarkPipelineCompleted records a successful run completion.
func (s *Store) MarkPipelineCompleted(ctx context.Context, completedAt time.Time) error {
	_, err := s.execRetry(
		ctx,
		`INSERT INTO pipeline_status (id, started_at, is_running, completed_at, owner_pid)
         VALUES (1, NULL, 0, ?, NULL)
         ON CONFLICT(id) DO UPDATE SET
            is_running = 0,
            completed_at = excluded.completed_at,
            owner_pid = NULL`,
		formatTime(completedAt),
	)
	if err != nil {
		return fmt.Errorf("mark pipeline completed: %w", err)
	}
	return nil
}

// MarkPipelineFailed clears the running flag and owner pid without recording
// a completion.
func (s *Store) MarkPipelineFailed(ctx context.Context) error {
	_, err := s.execRetry(
		ctx,
		`INSERT INTO pipeline_status (id, started_at, is_running, completed_at, owner_pid)
         VALUES (1, NULL, 0, NULL, NULL)
         ON CONFLICT(id) DO UPDATE SET
            is_running = 0,
            owner_pid = NULL`,
	)
	if err != nil {
		return fmt.Errorf("mark pipeline failed: %w", err)
	}
	return nil
}
