package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

// errUnhealthy signals a failing health check. main converts it into exit
// code 1 without printing; the command has already reported the issues.
var errUnhealthy = errors.New("health check failed")

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database and pipeline health",
		Long:  "Exits 0 when healthy and 1 otherwise. Stale run records are repaired as part of the check.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				report, err := ctx.healthChecker(cfg, st, ctx.logger()).Check(cmd.Context())
				if err != nil {
					return err
				}

				if !quiet {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)

					kind := statusOK
					message := "system healthy"
					if !report.Healthy {
						kind = statusError
						message = fmt.Sprintf("%d issue(s) found", len(report.Issues))
					}
					fmt.Fprintln(out, renderStatusLine("Health", kind, message, colorize))
					fmt.Fprintln(out, renderStatusLine("Pipeline", statusOK, string(report.Pipeline.State), colorize))
					fmt.Fprintln(out, renderStatusLine("Database", databaseKind(report.Database.IntegrityCheck), fmt.Sprintf("%d items", report.Database.TotalItems), colorize))

					for _, fix := range report.Fixes {
						fmt.Fprintln(out, renderStatusLine("Fixed", statusWarn, fix, colorize))
					}
					for _, issue := range report.Issues {
						fmt.Fprintln(out, renderStatusLine("Issue", statusError, issue, colorize))
					}
				}

				if !report.Healthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress output; report via exit code only")
	return cmd
}

func databaseKind(integrityOK bool) statusKind {
	if integrityOK {
		return statusOK
	}
	return statusError
}
