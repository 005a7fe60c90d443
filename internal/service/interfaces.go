// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"
)

// TableStore is the spreadsheet collaborator: a set of named tables
// offering cell read/write, row append, and sort operations. All
// application state lives behind this interface, which keeps the
// importer testable against an in-memory fake.
type TableStore interface {
	// EnsureSheet creates the named sheet with the given header row if it
	// does not exist yet. Existing sheets are left untouched.
	EnsureSheet(ctx context.Context, name string, header []string) error

	// SheetNames returns the names of all sheets in spreadsheet order.
	SheetNames(ctx context.Context) ([]string, error)

	// ReadTable returns every row of the named sheet, header included.
	ReadTable(ctx context.Context, name string) ([][]string, error)

	// AppendRows appends rows after the sheet's last used row.
	AppendRows(ctx context.Context, name string, rows [][]string) error

	// UpdateRow overwrites the cells of one 1-based row.
	UpdateRow(ctx context.Context, name string, row int, cells []string) error

	// ClearSheet removes all data rows, keeping the header.
	ClearSheet(ctx context.Context, name string) error

	// SortRange sorts the data rows (row 2 and below) of the named sheet
	// by the given 0-based column, ascending.
	SortRange(ctx context.Context, name string, column int) error

	// OrderSheetsByName reorders sheets whose names match the prefix so
	// they appear in ascending name order.
	OrderSheetsByName(ctx context.Context, prefix string) error

	// FormatImported applies presentation to a period sheet: recreates
	// the filter over the used range, fits column widths, and protects
	// the fixed-schema columns.
	FormatImported(ctx context.Context, name string, fixedColumns int) error
}

// SourceFile describes one file in the source folder.
type SourceFile struct {
	ModifiedAt time.Time
	ID         string
	Name       string
}

// SourceListing is the drive collaborator: lists source files and
// downloads their decoded CSV rows.
type SourceListing interface {
	List(ctx context.Context) ([]SourceFile, error)
	Download(ctx context.Context, file SourceFile) ([][]string, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
