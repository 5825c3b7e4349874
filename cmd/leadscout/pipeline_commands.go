package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/pipeline"
	"leadscout/internal/store"
)

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage background pipeline runs",
	}

	pipelineCmd.AddCommand(newPipelineStartCommand(ctx))
	pipelineCmd.AddCommand(newPipelineStatusCommand(ctx))
	pipelineCmd.AddCommand(newPipelineRunCommand(ctx))

	return pipelineCmd
}

func newPipelineStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch a detached pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger := ctx.logger()
				launcher := pipeline.NewLauncher(cfg, st, ctx.reconciler(cfg, st, logger), logger)
				result, err := launcher.Launch(cmd.Context(), ctx.configPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline started (pid %d)\n", result.PID)
				return nil
			})
		},
	}
}

func newPipelineStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show reconciled pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				reconciler := ctx.reconciler(cfg, st, ctx.logger())
				interval := time.Duration(cfg.Pipeline.ReconcileSeconds) * time.Second
				for {
					snapshot, err := reconciler.Reconcile(cmd.Context())
					if err != nil {
						return err
					}
					printSnapshot(cmd, snapshot)
					if !watch {
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(interval):
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-read state on the configured reconcile interval")
	return cmd
}

func printSnapshot(cmd *cobra.Command, snapshot pipeline.Snapshot) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	kind := statusOK
	switch snapshot.State {
	case pipeline.StateFailed:
		kind = statusError
	case pipeline.StateRunning:
		if snapshot.Stuck {
			kind = statusWarn
		}
	}
	fmt.Fprintln(out, renderStatusLine("State", kind, string(snapshot.State), colorize))

	if snapshot.StartedAt != nil {
		fmt.Fprintf(out, "  %-16s %s\n", "Started:", snapshot.StartedAt.Local().Format(time.RFC1123))
	}
	if snapshot.CompletedAt != nil {
		fmt.Fprintf(out, "  %-16s %s\n", "Completed:", snapshot.CompletedAt.Local().Format(time.RFC1123))
	}
	if snapshot.OwnerPID > 0 && snapshot.Running() {
		fmt.Fprintf(out, "  %-16s %d\n", "Owner PID:", snapshot.OwnerPID)
	}
	if duration := snapshot.Duration(time.Now().UTC()); duration > 0 {
		fmt.Fprintf(out, "  %-16s %s\n", "Duration:", duration.Round(time.Second))
	}
	for _, warning := range snapshot.Warnings {
		fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, warning, colorize))
	}
}

func newPipelineRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger := ctx.logger()
				cache := ctx.optionCache(cfg, st)
				runner := pipeline.NewRunner(st, logger,
					ctx.orchestrator(cfg, st, cache, logger),
					ctx.analyzer(cfg, st, logger),
				)
				if err := runner.Run(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pipeline run complete")
				return nil
			})
		},
	}
}
