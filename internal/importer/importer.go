package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
)

// Importer runs the incremental import: for each stale or unseen source
// file, it upserts rows into the matching period sheet by unique ID.
type Importer struct {
	store    service.TableStore
	source   service.SourceListing
	states   *StateTracker
	registry *CategoryRegistry
	logger   *slog.Logger

	// Progress, if set, is called once per listed file with the outcome.
	Progress func(filename string, outcome Outcome)
}

// Outcome classifies what happened to one source file during a run.
type Outcome string

// Per-file outcomes.
const (
	OutcomeImported Outcome = "imported"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// RunStats summarizes one import run.
type RunStats struct {
	Imported     int
	Skipped      int
	Failed       int
	RowsAppended int
}

// New creates an importer over the given store and source listing.
func New(store service.TableStore, source service.SourceListing, logger *slog.Logger) *Importer {
	return &Importer{
		store:    store,
		source:   source,
		states:   NewStateTracker(store),
		registry: NewCategoryRegistry(store),
		logger:   logger,
	}
}

// Decision describes what a run would do with one source file.
type Decision struct {
	File   service.SourceFile
	Reason string
	Import bool
}

// Plan lists the per-file decisions a run would make, without writing
// anything. Used by dry runs.
func (im *Importer) Plan(ctx context.Context) ([]Decision, error) {
	files, err := im.source.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := im.states.LoadReadOnly(ctx); err != nil {
		return nil, err
	}

	decisions := make([]Decision, 0, len(files))
	for _, file := range files {
		d := Decision{File: file}
		switch entry, ok := im.states.entries[file.Name]; {
		case !ok:
			d.Import, d.Reason = true, "new file"
		case entry.Status != model.StatusFinished:
			d.Import, d.Reason = true, fmt.Sprintf("previous import %s", entry.Status)
		case file.ModifiedAt.After(entry.ModifiedAt):
			d.Import, d.Reason = true, "source modified since last import"
		default:
			d.Reason = "up to date"
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Run performs the full incremental import, then reorders the period
// sheets by name. Files are processed sequentially; a format failure in
// one file does not stop the others, but a schema failure aborts the run.
func (im *Importer) Run(ctx context.Context) (*RunStats, error) {
	files, err := im.source.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := im.states.Load(ctx); err != nil {
		return nil, err
	}

	stats := &RunStats{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !im.states.NeedsImport(file) {
			stats.Skipped++
			im.logger.Debug("source up to date", "file", file.Name)
			im.progress(file.Name, OutcomeSkipped)
			continue
		}

		appended, err := im.importFile(ctx, file)
		if err != nil {
			var schemaErr *model.SchemaError
			if errors.As(err, &schemaErr) {
				// The spreadsheet no longer matches the fixed schema;
				// continuing could corrupt every remaining sheet.
				return stats, err
			}
			if common.IsFormatError(err) {
				stats.Failed++
				im.logger.Error("source file rejected", "file", file.Name, "error", err)
				im.markError(ctx, file.Name)
				im.progress(file.Name, OutcomeFailed)
				continue
			}
			// Store or network failure: the entry stays at "processing"
			// and the next run retries the file.
			return stats, fmt.Errorf("import of %s failed: %w", file.Name, err)
		}

		stats.Imported++
		stats.RowsAppended += appended
		im.progress(file.Name, OutcomeImported)
	}

	if err := im.store.OrderSheetsByName(ctx, PeriodSheetPrefix); err != nil {
		return stats, fmt.Errorf("failed to reorder period sheets: %w", err)
	}

	im.logger.Info("import run finished",
		"imported", stats.Imported,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"rows_appended", stats.RowsAppended)

	return stats, nil
}

// importFile reconciles one source file into its period sheet. Existing
// rows are matched by ID and left untouched; only unseen IDs are
// appended, so user edits to the extension columns survive re-imports.
func (im *Importer) importFile(ctx context.Context, file service.SourceFile) (int, error) {
	sheet, err := PeriodSheet(file.Name)
	if err != nil {
		return 0, err
	}

	entry := im.states.Entry(file.Name)
	entry.Status = model.StatusProcessing
	if err := im.states.Save(ctx, entry); err != nil {
		return 0, err
	}

	rows, err := im.source.Download(ctx, file)
	if err != nil {
		return 0, err
	}

	header := append(append([]string{}, model.FixedHeaders...), model.ExtensionHeaders...)
	if err := im.store.EnsureSheet(ctx, sheet, header); err != nil {
		return 0, err
	}

	existing, err := im.store.ReadTable(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if err := model.CheckHeader(existing[0]); err != nil {
			return 0, err
		}
	}

	// Index current rows by ID. Row 1 is the header. An empty ID is
	// indexed like any other so an ID-less source row is appended at
	// most once, no matter how often the file is re-imported.
	index := make(map[string]int, len(existing))
	for i, row := range existing {
		if i == 0 {
			continue
		}
		index[cellAt(row, model.ColID)] = i + 1
	}

	// Validate the whole file before the first append so a malformed row
	// never commits a partial import.
	var appends [][]string
	for i, row := range rows {
		if i == 0 {
			continue // source header row
		}
		rec, parseErr := model.ParseRow(row)
		if parseErr != nil {
			return 0, common.NewFormatError(file.Name, i+1, parseErr)
		}
		if _, ok := index[rec.ID]; ok {
			continue
		}
		appends = append(appends, rec.FixedCells())
		index[rec.ID] = len(existing) + len(appends)
	}

	if err := im.store.AppendRows(ctx, sheet, appends); err != nil {
		return 0, err
	}

	if err := im.store.FormatImported(ctx, sheet, model.FixedColumnCount); err != nil {
		return 0, err
	}

	if err := im.registry.Upsert(ctx, sheet); err != nil {
		return 0, err
	}

	entry.Status = model.StatusFinished
	entry.ModifiedAt = file.ModifiedAt
	if err := im.states.Save(ctx, entry); err != nil {
		return 0, err
	}

	im.logger.Info("imported source file",
		"file", file.Name,
		"sheet", sheet,
		"rows_appended", len(appends))

	return len(appends), nil
}

// markError records a rejected file so the operator can tell "rejected"
// from "interrupted". The entry still counts as stale next run.
func (im *Importer) markError(ctx context.Context, filename string) {
	entry := im.states.Entry(filename)
	entry.Status = model.StatusError
	if err := im.states.Save(ctx, entry); err != nil {
		im.logger.Warn("failed to record error state", "file", filename, "error", err)
	}
}

func (im *Importer) progress(filename string, outcome Outcome) {
	if im.Progress != nil {
		im.Progress(filename, outcome)
	}
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}
