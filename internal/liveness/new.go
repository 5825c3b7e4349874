package liveness

import (
	"log/slog"
	"os"
	"time"
)

const procRoot = "/proc"

// NewChecker returns the best checker for the current host. Hosts with a
// readable /proc get the procfs implementation; everything else falls back
// to signal probes resolved through ps.
func NewChecker(keywords []string, timeout time.Duration, logger *slog.Logger) Checker {
	if info, err := os.Stat(procRoot); err == nil && info.IsDir() {
		return newProcfsChecker(procRoot, keywords, logger)
	}
	return newSignalChecker(keywords, timeout, logger)
}
