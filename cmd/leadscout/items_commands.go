package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and review ingested items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsSetStatusCommand(ctx))
	itemsCmd.AddCommand(newItemsStatsCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlags  []string
		sourceFlag   string
		minScoreFlag float64
		analyzedFlag bool
		limitFlag    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				filter := store.ListFilter{
					Source: strings.TrimSpace(sourceFlag),
					Limit:  limitFlag,
				}
				for _, raw := range statusFlags {
					status, ok := store.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q (valid: %s)", raw, statusNames())
					}
					filter.Statuses = append(filter.Statuses, status)
				}
				if cmd.Flags().Changed("min-score") {
					filter.MinScore = &minScoreFlag
				}
				if cmd.Flags().Changed("analyzed") {
					filter.Analyzed = &analyzedFlag
				}

				items, err := st.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No items match the given filters")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.Source,
						truncate(item.Title, 48),
						string(item.Status),
						formatScore(item.RelevanceScore),
						item.Theme,
						item.CreatedUTC.Local().Format(time.DateOnly),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Title", "Status", "Score", "Theme", "Created"},
					rows, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Filter by source")
	cmd.Flags().Float64Var(&minScoreFlag, "min-score", 0, "Minimum relevance score")
	cmd.Flags().BoolVar(&analyzedFlag, "analyzed", false, "Filter by analysis state")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum rows to print")
	return cmd
}

func newItemsSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <item-id> <status>",
		Short: "Move an item to a new review status",
		Long:  "Valid statuses: " + statusNames() + ". Marking an item sent delivers it through the configured export sinks.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				svc := ctx.reviewService(cfg, st, ctx.logger())
				item, err := svc.SetStatus(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s is now %s\n", item.ID, item.Status)
				return nil
			})
		},
	}
}

func newItemsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(store.AllStatuses()))
				total := 0
				for _, status := range store.AllStatuses() {
					rows = append(rows, []string{string(status), fmt.Sprint(stats[status])})
					total += stats[status]
				}
				rows = append(rows, []string{"total", fmt.Sprint(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Items"}, rows, 2))
				return nil
			})
		},
	}
}

func statusNames() string {
	names := make([]string, 0, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *score)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
