package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/service"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// Column width clamp for FormatImported, in pixels.
const (
	minColumnWidth = 40
	maxColumnWidth = 300
)

// Store implements service.TableStore against one Google Spreadsheet.
type Store struct {
	service  *sheets.Service
	logger   *slog.Logger
	sheetIDs map[string]int64
	config   Config
}

// NewStore creates a Google Sheets backed table store.
func NewStore(ctx context.Context, svc *sheets.Service, config Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Store{
		service: svc,
		config:  config,
		logger:  logger,
	}

	if err := s.refreshMeta(ctx); err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", config.SpreadsheetID, err)
	}

	return s, nil
}

func (s *Store) retryOpts() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  s.config.RetryAttempts,
		InitialDelay: s.config.RetryDelay,
	}
}

// refreshMeta reloads the title→sheetID index.
func (s *Store) refreshMeta(ctx context.Context) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.config.SpreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return wrapAPIError(err)
	}

	ids := make(map[string]int64, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		ids[sheet.Properties.Title] = sheet.Properties.SheetId
	}
	s.sheetIDs = ids
	return nil
}

func (s *Store) sheetID(name string) (int64, error) {
	id, ok := s.sheetIDs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", common.ErrSheetNotFound, name)
	}
	return id, nil
}

// EnsureSheet creates the named sheet with a header row if absent.
func (s *Store) EnsureSheet(ctx context.Context, name string, header []string) error {
	if _, ok := s.sheetIDs[name]; ok {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}

	err := common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.BatchUpdate(s.config.SpreadsheetID, req).Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	if err := s.refreshMeta(ctx); err != nil {
		return err
	}

	if len(header) > 0 {
		if err := s.UpdateRow(ctx, name, 1, header); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", name, err)
		}
	}

	s.logger.Info("created sheet", "name", name)
	return nil
}

// SheetNames returns all sheet titles in spreadsheet order.
func (s *Store) SheetNames(ctx context.Context) ([]string, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.config.SpreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	names := make([]string, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		names = append(names, sheet.Properties.Title)
	}
	return names, nil
}

// ReadTable returns every used row of the named sheet, header included.
func (s *Store) ReadTable(ctx context.Context, name string) ([][]string, error) {
	if _, err := s.sheetID(name); err != nil {
		return nil, err
	}

	var resp *sheets.ValueRange
	err := common.WithRetry(ctx, func() error {
		var doErr error
		resp, doErr = s.service.Spreadsheets.Values.Get(s.config.SpreadsheetID, quoteRange(name)).
			Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// AppendRows appends rows after the sheet's last used row.
func (s *Store) AppendRows(ctx context.Context, name string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.sheetID(name); err != nil {
		return err
	}

	// Write in batches to avoid API limits
	for i := 0; i < len(rows); i += s.config.BatchSize {
		end := i + s.config.BatchSize
		if end > len(rows) {
			end = len(rows)
		}

		valueRange := &sheets.ValueRange{Values: toCellValues(rows[i:end])}

		err := common.WithRetry(ctx, func() error {
			_, doErr := s.service.Spreadsheets.Values.Append(s.config.SpreadsheetID, quoteRange(name), valueRange).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return wrapAPIError(doErr)
		}, s.retryOpts())
		if err != nil {
			return fmt.Errorf("failed to append rows to %s: %w", name, err)
		}

		s.logger.Debug("appended batch", "sheet", name, "rows", end-i)
	}

	return nil
}

// UpdateRow overwrites the cells of one 1-based row.
func (s *Store) UpdateRow(ctx context.Context, name string, row int, cells []string) error {
	if _, err := s.sheetID(name); err != nil {
		return err
	}
	if row < 1 {
		return fmt.Errorf("%w: row %d", common.ErrRowNotFound, row)
	}

	valueRange := &sheets.ValueRange{Values: toCellValues([][]string{cells})}
	rangeStr := fmt.Sprintf("%s!A%d", quoteRange(name), row)

	err := common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.Values.Update(s.config.SpreadsheetID, rangeStr, valueRange).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to update %s row %d: %w", name, row, err)
	}
	return nil
}

// ClearSheet removes all data rows, keeping the header.
func (s *Store) ClearSheet(ctx context.Context, name string) error {
	if _, err := s.sheetID(name); err != nil {
		return err
	}

	rangeStr := fmt.Sprintf("%s!A2:ZZ", quoteRange(name))
	err := common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.Values.Clear(s.config.SpreadsheetID, rangeStr, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", name, err)
	}
	return nil
}

// SortRange sorts the data rows of the named sheet by one column, ascending.
func (s *Store) SortRange(ctx context.Context, name string, column int) error {
	id, err := s.sheetID(name)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			SortRange: &sheets.SortRangeRequest{
				Range: &sheets.GridRange{
					SheetId:       id,
					StartRowIndex: 1, // row 1 is the header
				},
				SortSpecs: []*sheets.SortSpec{{
					DimensionIndex: int64(column),
					SortOrder:      "ASCENDING",
				}},
			},
		}},
	}

	err = common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.BatchUpdate(s.config.SpreadsheetID, req).Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to sort %s: %w", name, err)
	}
	return nil
}

// OrderSheetsByName moves sheets matching the prefix so they appear in
// ascending name order, after all non-matching sheets.
func (s *Store) OrderSheetsByName(ctx context.Context, prefix string) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.config.SpreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return wrapAPIError(err)
	}

	var matched []*sheets.SheetProperties
	base := 0
	for _, sheet := range spreadsheet.Sheets {
		if strings.HasPrefix(sheet.Properties.Title, prefix) {
			matched = append(matched, sheet.Properties)
		} else {
			base++
		}
	}
	if len(matched) < 2 {
		return nil
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Title < matched[j].Title
	})

	requests := make([]*sheets.Request, 0, len(matched))
	for i, props := range matched {
		requests = append(requests, &sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: props.SheetId,
					Index:   int64(base + i),
				},
				Fields: "index",
			},
		})
	}

	err = common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.BatchUpdate(s.config.SpreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to reorder sheets: %w", err)
	}
	return nil
}

// FormatImported applies presentation to a period sheet: recreates the
// basic filter over the used range, fits column widths within a clamp,
// and protects the fixed-schema columns against accidental edits.
func (s *Store) FormatImported(ctx context.Context, name string, fixedColumns int) error {
	id, err := s.sheetID(name)
	if err != nil {
		return err
	}

	rows, err := s.ReadTable(ctx, name)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	columns := 0
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}

	requests := []*sheets.Request{
		{ClearBasicFilter: &sheets.ClearBasicFilterRequest{SheetId: id}},
		{SetBasicFilter: &sheets.SetBasicFilterRequest{
			Filter: &sheets.BasicFilter{
				Range: &sheets.GridRange{
					SheetId:          id,
					StartRowIndex:    0,
					EndRowIndex:      int64(len(rows)),
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
			},
		}},
	}

	// Fit each column to its longest cell, clamped to the width floor
	// and ceiling.
	for col := 0; col < columns; col++ {
		width := int64(columnWidth(rows, col))
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "COLUMNS",
					StartIndex: int64(col),
					EndIndex:   int64(col + 1),
				},
				Properties: &sheets.DimensionProperties{PixelSize: width},
				Fields:     "pixelSize",
			},
		})
	}

	// Warn on edits to the fixed-schema columns. Existing protections on
	// this sheet are replaced so repeated imports do not stack them.
	deleteRequests, err := s.protectedRangeDeletes(ctx, id)
	if err != nil {
		return err
	}
	requests = append(requests, deleteRequests...)
	requests = append(requests, &sheets.Request{
		AddProtectedRange: &sheets.AddProtectedRangeRequest{
			ProtectedRange: &sheets.ProtectedRange{
				Range: &sheets.GridRange{
					SheetId:          id,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(fixedColumns),
				},
				Description: "Imported columns; edit the extension columns instead",
				WarningOnly: true,
			},
		},
	})

	err = common.WithRetry(ctx, func() error {
		_, doErr := s.service.Spreadsheets.BatchUpdate(s.config.SpreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
		return wrapAPIError(doErr)
	}, s.retryOpts())
	if err != nil {
		return fmt.Errorf("failed to format %s: %w", name, err)
	}
	return nil
}

func (s *Store) protectedRangeDeletes(ctx context.Context, sheetID int64) ([]*sheets.Request, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.config.SpreadsheetID).
		Fields("sheets.properties.sheetId", "sheets.protectedRanges").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var requests []*sheets.Request
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.SheetId != sheetID {
			continue
		}
		for _, pr := range sheet.ProtectedRanges {
			requests = append(requests, &sheets.Request{
				DeleteProtectedRange: &sheets.DeleteProtectedRangeRequest{
					ProtectedRangeId: pr.ProtectedRangeId,
				},
			})
		}
	}
	return requests, nil
}

// columnWidth estimates a pixel width for a column from its widest cell.
// Width is measured in display cells, not bytes, so multibyte content
// does not inflate the estimate.
func columnWidth(rows [][]string, col int) int {
	longest := 0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if w := runewidth.StringWidth(row[col]); w > longest {
			longest = w
		}
	}

	width := 16 + longest*7
	if width < minColumnWidth {
		return minColumnWidth
	}
	if width > maxColumnWidth {
		return maxColumnWidth
	}
	return width
}

func toCellValues(rows [][]string) [][]any {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}

// quoteRange quotes a sheet title for use in an A1 range reference.
func quoteRange(name string) string {
	return "'" + name + "'"
}

// wrapAPIError tags rate-limit responses so the retry loop backs off.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code >= 500) {
		return fmt.Errorf("%w: %v", common.ErrRateLimit, err)
	}
	return err
}
