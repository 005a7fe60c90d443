package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/yontaro/kakeibo/internal/cli"
	"github.com/yontaro/kakeibo/internal/summary"
)

func summariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summaries",
		Short: "Force-rebuild the derived summary sheets",
		Long: `Rebuild every derived view from the period sheets: the per-month
income/expense/balance sheet, the per-category rollup, and the all-items
ledger with recurring expenses expanded across their future charge months.`,
		RunE: runSummaries,
	}
}

func runSummaries(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, _, err := buildStore(ctx)
	if err != nil {
		return err
	}

	slog.Info(cli.FormatTitle("Rebuilding summary sheets"))

	builder := summary.NewBuilder(store, slog.Default())
	if err := builder.Rebuild(ctx); err != nil {
		return err
	}

	slog.Info(cli.FormatSuccess("Summaries rebuilt!"))
	return nil
}
