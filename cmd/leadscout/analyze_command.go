package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Score unanalyzed items for relevance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				result, err := ctx.analyzer(cfg, st, ctx.logger()).AnalyzePending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d items in %d batches (%d scored, %d unscored)\n",
					result.Analyzed, result.Batches, result.Scored, result.Zeroed)
				return nil
			})
		},
	}
}
