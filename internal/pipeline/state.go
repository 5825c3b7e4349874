package pipeline

import "time"

// State summarizes the pipeline run lifecycle after reconciliation.
type State string

const (
	// StateIdle means no run has been recorded or the last record carries
	// no useful history.
	StateIdle State = "idle"
	// StateRunning means the recorded owner process is alive.
	StateRunning State = "running"
	// StateCompleted means the last run finished and recorded a completion.
	StateCompleted State = "completed"
	// StateFailed means the last run ended without completing.
	StateFailed State = "failed"
)

// Snapshot is the reconciled view of pipeline run state.
type Snapshot struct {
	State       State
	StartedAt   *time.Time
	CompletedAt *time.Time
	OwnerPID    int64
	// Stuck is set when a live run has exceeded the configured duration
	// warning threshold.
	Stuck bool
	// Warnings carries non-fatal findings such as recycled PIDs or stuck
	// runs. Warnings never force a state transition.
	Warnings []string
}

// Running reports whether the snapshot describes a live pipeline run.
func (s Snapshot) Running() bool {
	return s.State == StateRunning
}

// Duration returns how long the run has been (or was) active.
func (s Snapshot) Duration(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	if end.Before(*s.StartedAt) {
		return 0
	}
	return end.Sub(*s.StartedAt)
}
