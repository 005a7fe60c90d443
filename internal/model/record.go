// Package model defines the ledger record schema shared across the application.
package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// FixedColumnCount is the number of schema-fixed columns in a source row.
// Every source CSV row must have exactly this many fields.
const FixedColumnCount = 10

// Fixed column positions within a period sheet row.
const (
	ColCalcTarget = iota
	ColDate
	ColContent
	ColAmount
	ColAccount
	ColCategory
	ColSubcategory
	ColMemo
	ColTransfer
	ColID
)

// Extension column positions. These are user-maintained cells appended
// after the fixed schema; the importer never writes to them on existing rows.
const (
	ColSplitCount = FixedColumnCount + iota
	ColSharedPay
	ColPayerRatio
)

// DateLayout is the date format used by the source exports and kept
// verbatim in period sheet cells.
const DateLayout = "2006/01/02"

// FixedHeaders is the header row written to every period sheet.
var FixedHeaders = []string{
	"CalcTarget", "Date", "Content", "Amount", "Account",
	"Category", "Subcategory", "Memo", "Transfer", "ID",
}

// ExtensionHeaders label the user-maintained columns.
var ExtensionHeaders = []string{"SplitCount", "SharedPay", "PayerRatio"}

// Record is one imported transaction row.
type Record struct {
	Date        time.Time
	Content     string
	Account     string
	Category    string
	Subcategory string
	Memo        string
	ID          string
	Amount      decimal.Decimal
	PayerRatio  decimal.Decimal
	SplitCount  int
	CalcTarget  bool
	Transfer    bool
	SharedPay   bool
}

// ParseRow decodes the fixed columns of a source CSV row.
func ParseRow(cells []string) (Record, error) {
	if len(cells) != FixedColumnCount {
		return Record{}, fmt.Errorf("expected %d fields, got %d", FixedColumnCount, len(cells))
	}

	date, err := time.Parse(DateLayout, cells[ColDate])
	if err != nil {
		return Record{}, fmt.Errorf("invalid date %q: %w", cells[ColDate], err)
	}

	amount, err := decimal.NewFromString(cells[ColAmount])
	if err != nil {
		return Record{}, fmt.Errorf("invalid amount %q: %w", cells[ColAmount], err)
	}

	calcTarget, err := parseFlag(cells[ColCalcTarget])
	if err != nil {
		return Record{}, fmt.Errorf("invalid calc-target flag: %w", err)
	}

	transfer, err := parseFlag(cells[ColTransfer])
	if err != nil {
		return Record{}, fmt.Errorf("invalid transfer flag: %w", err)
	}

	return Record{
		CalcTarget:  calcTarget,
		Date:        date,
		Content:     cells[ColContent],
		Amount:      amount,
		Account:     cells[ColAccount],
		Category:    cells[ColCategory],
		Subcategory: cells[ColSubcategory],
		Memo:        cells[ColMemo],
		Transfer:    transfer,
		ID:          cells[ColID],
		SplitCount:  1,
		PayerRatio:  decimal.NewFromInt(1),
	}, nil
}

// ParseSheetRow decodes a period sheet row: the fixed columns plus any
// extension cells present. Blank extension cells mean "no split" and
// "fully self-paid".
func ParseSheetRow(cells []string) (Record, error) {
	if len(cells) < FixedColumnCount {
		return Record{}, fmt.Errorf("expected at least %d cells, got %d", FixedColumnCount, len(cells))
	}

	rec, err := ParseRow(cells[:FixedColumnCount])
	if err != nil {
		return Record{}, err
	}

	if len(cells) > ColSplitCount && cells[ColSplitCount] != "" {
		n, convErr := strconv.Atoi(cells[ColSplitCount])
		if convErr != nil {
			return Record{}, fmt.Errorf("invalid split count %q: %w", cells[ColSplitCount], convErr)
		}
		if n < 1 {
			return Record{}, fmt.Errorf("split count must be at least 1, got %d", n)
		}
		rec.SplitCount = n
	}

	if len(cells) > ColSharedPay && cells[ColSharedPay] != "" {
		shared, convErr := parseFlag(cells[ColSharedPay])
		if convErr != nil {
			return Record{}, fmt.Errorf("invalid shared-pay flag: %w", convErr)
		}
		rec.SharedPay = shared
	}

	if len(cells) > ColPayerRatio && cells[ColPayerRatio] != "" {
		ratio, convErr := decimal.NewFromString(cells[ColPayerRatio])
		if convErr != nil {
			return Record{}, fmt.Errorf("invalid payer ratio %q: %w", cells[ColPayerRatio], convErr)
		}
		if ratio.Sign() <= 0 || ratio.GreaterThan(decimal.NewFromInt(1)) {
			return Record{}, fmt.Errorf("payer ratio must be in (0,1], got %s", ratio)
		}
		rec.PayerRatio = ratio
	}

	return rec, nil
}

// FixedCells renders the fixed columns back into sheet cell values.
// Extension cells are deliberately absent: they belong to the user.
func (r Record) FixedCells() []string {
	return []string{
		formatFlag(r.CalcTarget),
		r.Date.Format(DateLayout),
		r.Content,
		r.Amount.String(),
		r.Account,
		r.Category,
		r.Subcategory,
		r.Memo,
		formatFlag(r.Transfer),
		r.ID,
	}
}

// CheckHeader verifies that a period sheet's header row still matches the
// fixed schema. A mismatch means the sheet was restructured by hand and
// positional decoding would silently corrupt data.
func CheckHeader(header []string) error {
	if len(header) < FixedColumnCount {
		return &SchemaError{Expected: FixedHeaders, Actual: header}
	}
	for i, want := range FixedHeaders {
		if header[i] != want {
			return &SchemaError{Expected: FixedHeaders, Actual: header[:FixedColumnCount]}
		}
	}
	return nil
}

// SchemaError reports a period sheet whose columns no longer line up with
// the fixed schema. It aborts the whole run.
type SchemaError struct {
	Expected []string
	Actual   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sheet header %v does not match expected schema %v", e.Actual, e.Expected)
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", s)
	}
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
