package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yontaro/kakeibo/internal/cli"
	"github.com/yontaro/kakeibo/internal/importer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CSV exports from the source Drive folder",
		Long: `Import bank and expense CSV exports from the configured Drive folder.

Each file is routed to its per-month period sheet and reconciled by the
rows' stable IDs: re-importing an unchanged file is a no-op, and rows you
annotated in the extension columns are never touched. Files whose previous
import did not finish are retried automatically.`,
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Show what would be imported without writing")

	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, cfg, err := buildStore(ctx)
	if err != nil {
		return err
	}

	source, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}

	imp := importer.New(store, source, slog.Default())

	if viper.GetBool("import.dry_run") {
		return runImportDryRun(cmd, imp)
	}

	slog.Info(cli.FormatTitle("Importing from source folder"))

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	imp.Progress = func(filename string, outcome importer.Outcome) {
		bar.Describe(fmt.Sprintf("%s (%s)", filename, outcome))
		_ = bar.Add(1)
	}

	stats, err := imp.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	content := fmt.Sprintf(`Files imported: %d
Files skipped:  %d
Files failed:   %d
Rows appended:  %d`,
		stats.Imported, stats.Skipped, stats.Failed, stats.RowsAppended)
	slog.Info(cli.RenderBox("Import Summary", content))

	if stats.Failed > 0 {
		slog.Warn(cli.FormatWarning(fmt.Sprintf("%d file(s) were rejected; fix them and re-run", stats.Failed)))
	} else {
		slog.Info(cli.FormatSuccess("Import complete!"))
	}

	return nil
}

func runImportDryRun(cmd *cobra.Command, imp *importer.Importer) error {
	decisions, err := imp.Plan(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info(cli.FormatWarning("Dry run mode - not writing to the spreadsheet"))

	content := ""
	pending := 0
	for _, d := range decisions {
		action := "skip"
		if d.Import {
			action = "import"
			pending++
		}
		content += fmt.Sprintf("%-7s %s (%s)\n", action, d.File.Name, d.Reason)
	}
	content += fmt.Sprintf("\n%d of %d file(s) would be imported", pending, len(decisions))

	slog.Info(cli.RenderBox("Import Plan", content))
	return nil
}
