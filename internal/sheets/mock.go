package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yontaro/kakeibo/internal/common"
)

// MemStore is an in-memory implementation of service.TableStore for
// testing. It keeps sheets as string grids and records formatting calls.
type MemStore struct {
	tables      map[string][][]string
	order       []string
	FormatCalls []string
	mu          sync.Mutex
}

// NewMemStore creates an empty in-memory table store.
func NewMemStore() *MemStore {
	return &MemStore{
		tables: make(map[string][][]string),
	}
}

// Seed replaces the named sheet's contents wholesale. Test setup only.
func (m *MemStore) Seed(name string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[name]; !ok {
		m.order = append(m.order, name)
	}
	m.tables[name] = cloneRows(rows)
}

// Rows returns a copy of the named sheet's contents. Test assertions only.
func (m *MemStore) Rows(name string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.tables[name])
}

// EnsureSheet implements service.TableStore.
func (m *MemStore) EnsureSheet(_ context.Context, name string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; ok {
		return nil
	}
	m.order = append(m.order, name)
	if len(header) > 0 {
		m.tables[name] = [][]string{append([]string(nil), header...)}
	} else {
		m.tables[name] = [][]string{}
	}
	return nil
}

// SheetNames implements service.TableStore.
func (m *MemStore) SheetNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

// ReadTable implements service.TableStore.
func (m *MemStore) ReadTable(_ context.Context, name string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	return cloneRows(rows), nil
}

// AppendRows implements service.TableStore.
func (m *MemStore) AppendRows(_ context.Context, name string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	m.tables[name] = append(existing, cloneRows(rows)...)
	return nil
}

// UpdateRow implements service.TableStore.
func (m *MemStore) UpdateRow(_ context.Context, name string, row int, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	if row < 1 {
		return fmt.Errorf("%w: row %d", common.ErrRowNotFound, row)
	}
	for len(rows) < row {
		rows = append(rows, []string{})
	}
	rows[row-1] = append([]string(nil), cells...)
	m.tables[name] = rows
	return nil
}

// ClearSheet implements service.TableStore.
func (m *MemStore) ClearSheet(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	if len(rows) > 1 {
		m.tables[name] = rows[:1]
	}
	return nil
}

// SortRange implements service.TableStore.
func (m *MemStore) SortRange(_ context.Context, name string, column int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	if len(rows) <= 2 {
		return nil
	}
	data := rows[1:]
	sort.SliceStable(data, func(i, j int) bool {
		return cellAt(data[i], column) < cellAt(data[j], column)
	})
	return nil
}

// OrderSheetsByName implements service.TableStore.
func (m *MemStore) OrderSheetsByName(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rest, matched []string
	for _, name := range m.order {
		if strings.HasPrefix(name, prefix) {
			matched = append(matched, name)
		} else {
			rest = append(rest, name)
		}
	}
	sort.Strings(matched)
	m.order = append(rest, matched...)
	return nil
}

// FormatImported implements service.TableStore. Formatting has no
// observable effect in memory beyond the call record.
func (m *MemStore) FormatImported(_ context.Context, name string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; !ok {
		return fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	m.FormatCalls = append(m.FormatCalls, name)
	return nil
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}
