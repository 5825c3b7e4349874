package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"leadscout/internal/logging"
)

// procfsChecker probes /proc directly. Preferred on Linux hosts.
type procfsChecker struct {
	root     string
	keywords []string
	logger   *slog.Logger
}

func newProcfsChecker(root string, keywords []string, logger *slog.Logger) *procfsChecker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &procfsChecker{root: root, keywords: keywords, logger: logger}
}

func (c *procfsChecker) Check(ctx context.Context, pid int) (Result, error) {
	if pid <= 0 {
		return Result{}, fmt.Errorf("invalid pid %d", pid)
	}
	if err := ctx.Err(); err != nil {
		return Result{State: StateAlive}, nil
	}

	statPath := filepath.Join(c.root, strconv.Itoa(pid), "stat")
	statData, err := os.ReadFile(statPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{State: StateNotFound}, nil
		}
		// Restricted proc entry. Treat the process as alive rather than
		// risk failing a healthy run.
		c.logger.Warn("liveness probe could not read proc stat",
			logging.Int(logging.FieldPID, pid),
			logging.Error(err))
		return Result{State: StateAlive}, nil
	}

	if stateChar := parseStatState(string(statData)); stateChar == "Z" {
		return Result{State: StateZombie}, nil
	}

	cmdline := c.readCmdline(pid)
	if cmdline == "" {
		// Kernel threads and restricted entries expose no cmdline. Fail
		// open: the stat read already confirmed a live process.
		c.logger.Warn("liveness probe could not inspect cmdline",
			logging.Int(logging.FieldPID, pid))
		return Result{State: StateAlive}, nil
	}
	if !matchesKeywords(cmdline, c.keywords) {
		return Result{State: StateForeign, Cmdline: cmdline}, nil
	}
	return Result{State: StateAlive, Cmdline: cmdline}, nil
}

func (c *procfsChecker) ScanMatching(ctx context.Context) ([]ProcessInfo, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read proc root: %w", err)
	}

	self := os.Getpid()
	var found []ProcessInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 || pid == self {
			continue
		}
		cmdline := c.readCmdline(pid)
		if matchesKeywords(cmdline, c.keywords) {
			found = append(found, ProcessInfo{PID: pid, Cmdline: cmdline})
		}
	}
	return found, nil
}

func (c *procfsChecker) readCmdline(pid int) string {
	data, err := os.ReadFile(filepath.Join(c.root, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " "))
}

// parseStatState extracts the process state character from /proc/<pid>/stat.
// The comm field may contain spaces and parentheses, so the state is the
// first field after the last closing paren.
func parseStatState(stat string) string {
	end := strings.LastIndex(stat, ")")
	if end < 0 || end+2 >= len(stat) {
		return ""
	}
	rest := strings.Fields(stat[end+1:])
	if len(rest) == 0 {
		return ""
	}
	return rest[0]
}
