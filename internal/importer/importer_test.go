package importer

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yontaro/kakeibo/internal/drive"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
	"github.com/yontaro/kakeibo/internal/sheets"
)

func srcRow(id, date, amount, category, subcategory string) []string {
	return []string{"1", date, "content " + id, amount, "Bank A", category, subcategory, "", "0", id}
}

func sourceContent(rows ...[]string) [][]string {
	return append([][]string{model.FixedHeaders}, rows...)
}

func newTestImporter(t *testing.T) (*Importer, *sheets.MemStore, *drive.MockListing) {
	t.Helper()
	store := sheets.NewMemStore()
	source := drive.NewMockListing()
	return New(store, source, slog.Default()), store, source
}

func addSource(source *drive.MockListing, name string, modified time.Time, rows [][]string) service.SourceFile {
	file := service.SourceFile{ID: "id-" + name, Name: name, ModifiedAt: modified}
	source.Files = append(source.Files, file)
	source.Contents[file.ID] = rows
	return file
}

func dataRows(store *sheets.MemStore, sheet string) [][]string {
	rows := store.Rows(sheet)
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func TestRunImportsNewFile(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-2", "2021/01/12", "52000", "Income", "Salary"),
	))

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 2, stats.RowsAppended)

	rows := store.Rows("Import_2021_01")
	require.Len(t, rows, 3)
	assert.Equal(t, append(append([]string{}, model.FixedHeaders...), model.ExtensionHeaders...), rows[0])
	assert.Equal(t, "txn-1", rows[1][model.ColID])
	assert.Equal(t, "txn-2", rows[2][model.ColID])
	// Only the fixed columns are written; extension cells belong to the user.
	assert.Len(t, rows[1], model.FixedColumnCount)

	// State finished with the source's timestamp.
	state := store.Rows(StateSheet)
	require.Len(t, state, 2)
	assert.Equal(t, string(model.StatusFinished), state[1][2])
	assert.Equal(t, modified.Format(model.StateTimeLayout), state[1][1])

	// Category registry picked up both pairs, sorted by key.
	assert.Equal(t, [][]string{
		{"Food", "Lunch", "Food/Lunch"},
		{"Income", "Salary", "Income/Salary"},
	}, dataRows(store, CategorySheet))

	// Presentation pass ran for the period sheet.
	assert.Contains(t, store.FormatCalls, "Import_2021_01")
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))

	_, err := imp.Run(ctx)
	require.NoError(t, err)
	first := store.Rows("Import_2021_01")

	// Unchanged file: skipped entirely.
	imp2 := New(store, source, slog.Default())
	stats, err := imp2.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, first, store.Rows("Import_2021_01"))

	// Touched but identical file: re-imported, no new rows.
	source.Files[0].ModifiedAt = modified.Add(time.Hour)
	imp3 := New(store, source, slog.Default())
	stats, err = imp3.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 0, stats.RowsAppended)
	assert.Equal(t, first, store.Rows("Import_2021_01"))
}

func TestRunAppendsOnlyNewRowsAndPreservesExtensions(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-2", "2021/01/12", "-800", "Food", "Dinner"),
	))
	_, err := imp.Run(ctx)
	require.NoError(t, err)

	// The user annotates txn-1 with a 3-way split.
	rows := store.Rows("Import_2021_01")
	rows[1] = append(rows[1], "3", "1", "0.5")
	store.Seed("Import_2021_01", rows)

	// The source grows by two rows and keeps the old ones.
	source.Contents["id-X_2021-01-05_2021-01-31.csv"] = sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-2", "2021/01/12", "-800", "Food", "Dinner"),
		srcRow("txn-3", "2021/01/20", "-300", "Transport", "Train"),
		srcRow("txn-4", "2021/01/21", "-500", "Transport", "Taxi"),
	)
	source.Files[0].ModifiedAt = modified.Add(time.Hour)

	imp2 := New(store, source, slog.Default())
	stats, err := imp2.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsAppended)

	got := store.Rows("Import_2021_01")
	require.Len(t, got, 5)
	// Extension cells on the existing row survive the re-import.
	assert.Equal(t, []string{"3", "1", "0.5"}, got[1][model.FixedColumnCount:])
	assert.Equal(t, "txn-3", got[3][model.ColID])
	assert.Equal(t, "txn-4", got[4][model.ColID])
}

func TestRunDoesNotReappendEmptyIDRows(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-1", "2021/01/12", "-800", "Food", "Dinner"),
	))

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsAppended)

	// The source is touched but unchanged: the ID-less row must not
	// accumulate across re-imports.
	source.Files[0].ModifiedAt = modified.Add(time.Hour)
	imp2 := New(store, source, slog.Default())
	stats, err = imp2.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RowsAppended)
	assert.Len(t, dataRows(store, "Import_2021_01"), 2)
}

func TestRunSkipsDuplicateIDsWithinFile(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	addSource(source, "X_2021-01-05_2021-01-31.csv", time.Now(), sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RowsAppended)
	assert.Len(t, dataRows(store, "Import_2021_01"), 1)
}

func TestRunRejectsMalformedRowWithoutPartialCommit(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	addSource(source, "X_2021-01-05_2021-01-31.csv", time.Now(), sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
		srcRow("txn-2", "2021/01/12", "not-a-number", "Food", "Dinner"),
	))
	addSource(source, "Y_2021-02-01_2021-02-28.csv", time.Now(), sourceContent(
		srcRow("txn-3", "2021/02/05", "-400", "Food", "Lunch"),
	))

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Imported)

	// The malformed file committed nothing, not even its good first row.
	assert.Empty(t, dataRows(store, "Import_2021_01"))
	assert.Len(t, dataRows(store, "Import_2021_02"), 1)

	// The rejected file is recorded as an error and stays retryable.
	state := store.Rows(StateSheet)
	require.Len(t, state, 3)
	assert.Equal(t, string(model.StatusError), state[1][2])
	assert.Equal(t, string(model.StatusFinished), state[2][2])
}

func TestRunRejectsBadFilenameAndContinues(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	addSource(source, "X_2021-01-15_2021-02-15.csv", time.Now(), sourceContent())
	addSource(source, "Y_2021-02-01_2021-02-28.csv", time.Now(), sourceContent(
		srcRow("txn-1", "2021/02/05", "-400", "Food", "Lunch"),
	))

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Imported)

	state := store.Rows(StateSheet)
	require.Len(t, state, 3)
	assert.Equal(t, "X_2021-01-15_2021-02-15.csv", state[1][0])
	assert.Equal(t, string(model.StatusError), state[1][2])
}

func TestRunRetriesInterruptedImport(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	file := addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))

	// A previous run died mid-import: entry stuck at processing with the
	// same timestamp the source still has.
	store.Seed(StateSheet, [][]string{
		stateHeaders,
		{file.Name, modified.Format(model.StateTimeLayout), string(model.StatusProcessing)},
	})

	stats, err := imp.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, string(model.StatusFinished), store.Rows(StateSheet)[1][2])
}

func TestRunReordersPeriodSheets(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	addSource(source, "B_2021-02-01_2021-02-28.csv", time.Now(), sourceContent(
		srcRow("txn-2", "2021/02/05", "-400", "Food", "Lunch"),
	))
	addSource(source, "A_2021-01-05_2021-01-31.csv", time.Now(), sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))

	_, err := imp.Run(ctx)
	require.NoError(t, err)

	names, err := store.SheetNames(ctx)
	require.NoError(t, err)

	var periods []string
	for _, name := range names {
		if strings.HasPrefix(name, PeriodSheetPrefix) {
			periods = append(periods, name)
		}
	}
	assert.Equal(t, []string{"Import_2021_01", "Import_2021_02"}, periods)
}

func TestPlanReportsDecisionsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	modified := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	file := addSource(source, "X_2021-01-05_2021-01-31.csv", modified, sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))
	store.Seed(StateSheet, [][]string{
		stateHeaders,
		{file.Name, modified.Format(model.StateTimeLayout), string(model.StatusFinished)},
	})

	decisions, err := imp.Plan(ctx)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Import)
	assert.Equal(t, "up to date", decisions[0].Reason)

	// Nothing was downloaded or written.
	assert.Empty(t, source.DownloadCalls)
	names, err := store.SheetNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{StateSheet}, names)
}

func TestPlanOnFreshSpreadsheetCreatesNoSheets(t *testing.T) {
	ctx := context.Background()
	imp, store, source := newTestImporter(t)

	addSource(source, "X_2021-01-05_2021-01-31.csv", time.Now(), sourceContent(
		srcRow("txn-1", "2021/01/10", "-1200", "Food", "Lunch"),
	))

	decisions, err := imp.Plan(ctx)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Import)
	assert.Equal(t, "new file", decisions[0].Reason)

	// Planning against an empty spreadsheet must not even create the
	// state sheet.
	names, err := store.SheetNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}
