package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline state and item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				snapshot, err := ctx.reconciler(cfg, st, ctx.logger()).Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				printSnapshot(cmd, snapshot)

				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				total := 0
				rows := make([][]string, 0, len(store.AllStatuses()))
				for _, status := range store.AllStatuses() {
					if stats[status] == 0 {
						continue
					}
					rows = append(rows, []string{string(status), fmt.Sprint(stats[status])})
					total += stats[status]
				}
				if total == 0 {
					fmt.Fprintln(out, "No items stored yet")
					return nil
				}
				rows = append(rows, []string{"total", fmt.Sprint(total)})
				fmt.Fprintln(out, renderTable([]string{"Status", "Items"}, rows, 2))
				return nil
			})
		},
	}
}
