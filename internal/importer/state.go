package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
)

// StateSheet holds one row per source file ever seen.
const StateSheet = "ImportState"

var stateHeaders = []string{"Filename", "ModifiedAt", "Status"}

// StateTracker persists per-file import state in the state sheet and
// drives the incremental re-import decision. It is the only writer of
// that sheet; entries are never deleted.
type StateTracker struct {
	store   service.TableStore
	entries map[string]*model.ImportState
	rows    int // used rows in the state sheet, header included
}

// NewStateTracker creates a tracker over the given store.
func NewStateTracker(store service.TableStore) *StateTracker {
	return &StateTracker{store: store}
}

// Load reads the state sheet into memory, creating it if absent.
func (t *StateTracker) Load(ctx context.Context) error {
	if err := t.store.EnsureSheet(ctx, StateSheet, stateHeaders); err != nil {
		return fmt.Errorf("failed to ensure state sheet: %w", err)
	}
	return t.read(ctx)
}

// LoadReadOnly reads the state sheet without creating it. A missing
// sheet means no file was ever imported. Dry runs use this so planning
// never writes to the spreadsheet.
func (t *StateTracker) LoadReadOnly(ctx context.Context) error {
	err := t.read(ctx)
	if errors.Is(err, common.ErrSheetNotFound) {
		t.entries = map[string]*model.ImportState{}
		t.rows = 0
		return nil
	}
	return err
}

func (t *StateTracker) read(ctx context.Context) error {
	rows, err := t.store.ReadTable(ctx, StateSheet)
	if err != nil {
		return fmt.Errorf("failed to load import state: %w", err)
	}

	entries := make(map[string]*model.ImportState, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 3 || row[0] == "" {
			continue
		}
		modified, parseErr := time.Parse(model.StateTimeLayout, row[1])
		if parseErr != nil {
			return fmt.Errorf("state row %d has unparseable timestamp %q: %w", i+1, row[1], parseErr)
		}
		entries[row[0]] = &model.ImportState{
			Filename:   row[0],
			ModifiedAt: modified,
			Status:     model.ImportStatus(row[2]),
			Row:        i + 1,
		}
	}

	t.entries = entries
	t.rows = len(rows)
	return nil
}

// Entry returns the tracked state for a filename, creating an in-memory
// entry if the file has never been seen. New entries are not persisted
// until Save.
func (t *StateTracker) Entry(filename string) *model.ImportState {
	if entry, ok := t.entries[filename]; ok {
		return entry
	}
	entry := &model.ImportState{Filename: filename}
	t.entries[filename] = entry
	return entry
}

// NeedsImport reports whether a source file must be (re-)imported: it is
// new, its last import did not finish, or the source changed since.
func (t *StateTracker) NeedsImport(file service.SourceFile) bool {
	entry, ok := t.entries[file.Name]
	if !ok {
		return true
	}
	if entry.Status != model.StatusFinished {
		return true
	}
	return file.ModifiedAt.After(entry.ModifiedAt)
}

// Save writes the entry to its recorded row, or appends it if new.
func (t *StateTracker) Save(ctx context.Context, entry *model.ImportState) error {
	cells := []string{
		entry.Filename,
		entry.ModifiedAt.Format(model.StateTimeLayout),
		string(entry.Status),
	}

	if entry.Row > 0 {
		if err := t.store.UpdateRow(ctx, StateSheet, entry.Row, cells); err != nil {
			return fmt.Errorf("failed to update state for %s: %w", entry.Filename, err)
		}
		return nil
	}

	if err := t.store.AppendRows(ctx, StateSheet, [][]string{cells}); err != nil {
		return fmt.Errorf("failed to append state for %s: %w", entry.Filename, err)
	}
	t.rows++
	entry.Row = t.rows
	return nil
}
