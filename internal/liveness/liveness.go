package liveness

import (
	"context"
	"strings"
)

// State classifies the outcome of a process liveness probe.
type State string

const (
	// StateAlive means the PID exists and its command line matches a known
	// pipeline process.
	StateAlive State = "alive"
	// StateForeign means the PID exists but belongs to an unrelated process.
	// The PID was likely recycled by the OS after a crash.
	StateForeign State = "foreign"
	// StateZombie means the process has exited but has not been reaped.
	StateZombie State = "zombie"
	// StateNotFound means no process with the PID exists.
	StateNotFound State = "not_found"
)

// Result describes a completed liveness probe.
type Result struct {
	State   State
	Cmdline string
}

// Running reports whether the probe found a live matching process.
func (r Result) Running() bool {
	return r.State == StateAlive
}

// ProcessInfo identifies a pipeline-stage process found during an orphan scan.
type ProcessInfo struct {
	PID     int
	Cmdline string
}

// Checker probes the OS process table.
//
// Check never returns an error for probe infrastructure failures: when the
// probe itself cannot complete (timeouts, restricted /proc), it reports
// StateAlive so that a flaky host never kills a healthy pipeline record.
// Errors are reserved for invalid input.
type Checker interface {
	Check(ctx context.Context, pid int) (Result, error)
	ScanMatching(ctx context.Context) ([]ProcessInfo, error)
}

func matchesKeywords(cmdline string, keywords []string) bool {
	if cmdline == "" {
		return false
	}
	lowered := strings.ToLower(cmdline)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
