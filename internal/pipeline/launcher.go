package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"leadscout/internal/config"
	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// ErrAlreadyRunning indicates a live pipeline run owns the state record.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Launcher starts detached pipeline processes and records their ownership.
type Launcher struct {
	cfg        *config.Config
	store      *store.Store
	reconciler *Reconciler
	logger     *slog.Logger
}

// LaunchResult describes a successful detached launch.
type LaunchResult struct {
	PID       int
	StartedAt time.Time
}

// NewLauncher builds a launcher. A nil logger disables logging.
func NewLauncher(cfg *config.Config, st *store.Store, reconciler *Reconciler, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{
		cfg:        cfg,
		store:      st,
		reconciler: reconciler,
		logger:     logging.NewComponentLogger(logger, "launcher"),
	}
}

// Launch reconciles current state, refuses to double-start a live run, then
// spawns a detached pipeline process and records it as the owner.
func (l *Launcher) Launch(ctx context.Context, configPath string) (*LaunchResult, error) {
	snapshot, err := l.reconciler.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.Running() {
		return nil, services.Wrap(ErrAlreadyRunning, "launcher", "launch", "refusing duplicate run", nil)
	}

	executable := strings.TrimSpace(l.cfg.Pipeline.Executable)
	if executable == "" {
		executable, err = os.Executable()
		if err != nil {
			return nil, services.Wrap(services.ErrLaunch, "launcher", "launch", "resolve executable", err)
		}
	}

	args := []string{"pipeline", "run"}
	if cfgPath := strings.TrimSpace(configPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executable, args...)
	if err := proc.Start(); err != nil {
		return nil, services.Wrap(services.ErrLaunch, "launcher", "launch", "start pipeline process", err)
	}
	pid := proc.Process.Pid
	startedAt := time.Now().UTC()

	if err := l.store.MarkPipelineStarted(ctx, int64(pid), startedAt); err != nil {
		// The process is already running; killing it here could discard
		// work. Leave it to the orphan scan and surface the record failure.
		l.logger.Warn("pipeline process launched but ownership record failed",
			logging.Int(logging.FieldPID, pid),
			logging.Error(err))
		_ = proc.Process.Release()
		return nil, services.Wrap(services.ErrStorage, "launcher", "launch", "record pipeline start", err)
	}

	if err := proc.Process.Release(); err != nil {
		return nil, services.Wrap(services.ErrLaunch, "launcher", "launch", "release pipeline process", err)
	}

	l.logger.Info("pipeline launched",
		logging.Int(logging.FieldPID, pid),
		logging.String("executable", executable))
	return &LaunchResult{PID: pid, StartedAt: startedAt}, nil
}
