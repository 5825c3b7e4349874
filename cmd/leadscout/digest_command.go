package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/notify"
	"leadscout/internal/store"
)

func newDigestCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send current leads through the configured export sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger := ctx.logger()
				sinks := notify.NewSinks(cfg, logger)
				if len(sinks) == 0 {
					return fmt.Errorf("no export sinks enabled; configure [email] or [sheets] first")
				}

				leads, err := ctx.reviewService(cfg, st, logger).Leads(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(leads) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No leads to send")
					return nil
				}

				notify.DeliverAll(cmd.Context(), sinks, leads, logger)
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d leads through %d sink(s)\n", len(leads), len(sinks))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum leads to include")
	return cmd
}
