package liveness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"leadscout/internal/logging"
)

// signalChecker probes with kill(pid, 0), detects zombies through the ps
// stat column, and resolves command lines through ps. Used where /proc is
// unavailable.
type signalChecker struct {
	keywords []string
	timeout  time.Duration
	logger   *slog.Logger
}

func newSignalChecker(keywords []string, timeout time.Duration, logger *slog.Logger) *signalChecker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &signalChecker{keywords: keywords, timeout: timeout, logger: logger}
}

func (c *signalChecker) Check(ctx context.Context, pid int) (Result, error) {
	if pid <= 0 {
		return Result{}, fmt.Errorf("invalid pid %d", pid)
	}

	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
	case errors.Is(err, unix.ESRCH):
		return Result{State: StateNotFound}, nil
	case errors.Is(err, unix.EPERM):
		// Process exists but belongs to another user. It cannot be one of
		// ours; treat as a recycled PID.
		return Result{State: StateForeign}, nil
	default:
		c.logger.Warn("liveness signal probe failed",
			logging.Int(logging.FieldPID, pid),
			logging.Error(err))
		return Result{State: StateAlive}, nil
	}

	// A zombie still answers kill(0) and its ps args read "<defunct>", so
	// the stat column must be consulted before the cmdline match.
	if stat, statErr := c.statViaPS(ctx, pid); statErr == nil && strings.HasPrefix(stat, "Z") {
		return Result{State: StateZombie}, nil
	}

	cmdline, psErr := c.cmdlineViaPS(ctx, pid)
	if psErr != nil {
		// ps unavailable or slow. Fail open: the signal probe already
		// confirmed a live process.
		c.logger.Warn("liveness ps lookup failed",
			logging.Int(logging.FieldPID, pid),
			logging.Error(psErr))
		return Result{State: StateAlive}, nil
	}
	if !matchesKeywords(cmdline, c.keywords) {
		return Result{State: StateForeign, Cmdline: cmdline}, nil
	}
	return Result{State: StateAlive, Cmdline: cmdline}, nil
}

func (c *signalChecker) ScanMatching(ctx context.Context) ([]ProcessInfo, error) {
	psCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(psCtx, "ps", "-eo", "pid=,args=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps scan: %w", err)
	}

	var found []ProcessInfo
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid <= 0 {
			continue
		}
		cmdline := strings.Join(fields[1:], " ")
		if matchesKeywords(cmdline, c.keywords) {
			found = append(found, ProcessInfo{PID: pid, Cmdline: cmdline})
		}
	}
	return found, nil
}

func (c *signalChecker) statViaPS(ctx context.Context, pid int) (string, error) {
	psCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(psCtx, "ps", "-p", strconv.Itoa(pid), "-o", "stat=").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *signalChecker) cmdlineViaPS(ctx context.Context, pid int) (string, error) {
	psCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(psCtx, "ps", "-p", strconv.Itoa(pid), "-o", "args=").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
