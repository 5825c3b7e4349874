package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and admit new items from the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger := ctx.logger()
				orchestrator := ctx.orchestrator(cfg, st, ctx.optionCache(cfg, st), logger)
				summary, err := orchestrator.Ingest(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Ingestion complete in %s\n", summary.Elapsed.Round(time.Millisecond))
				fmt.Fprintln(out, renderTable(
					[]string{"Fetched", "Inserted", "Replaced", "Protected", "Duplicate", "Discarded", "Errors", "Reaped"},
					[][]string{{
						fmt.Sprint(summary.Fetched),
						fmt.Sprint(summary.Inserted),
						fmt.Sprint(summary.Replaced),
						fmt.Sprint(summary.SkippedProtected),
						fmt.Sprint(summary.SkippedDuplicate),
						fmt.Sprint(summary.Discarded),
						fmt.Sprint(summary.Errors),
						fmt.Sprint(summary.Reaped),
					}},
					1, 2, 3, 4, 5, 6, 7, 8,
				))
				return nil
			})
		},
	}
}
