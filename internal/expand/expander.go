// Package expand turns qualifying expense rows into per-month
// installments: a row with split count n is spread over the n months
// following its date, scaled by the payer ratio.
package expand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yontaro/kakeibo/internal/importer"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
)

// SourceRecord pairs a record with the period sheet it came from.
type SourceRecord struct {
	Sheet  string
	Record model.Record
}

// Flatten reads every period sheet and returns the qualifying rows:
// calc-target expenses that are not transfers and carry an ID. Rows that
// fail any of those checks never reach the expansion.
func Flatten(ctx context.Context, store service.TableStore) ([]SourceRecord, error) {
	names, err := store.SheetNames(ctx)
	if err != nil {
		return nil, err
	}

	var out []SourceRecord
	for _, name := range names {
		if !strings.HasPrefix(name, importer.PeriodSheetPrefix) {
			continue
		}

		rows, err := store.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			if err := model.CheckHeader(rows[0]); err != nil {
				return nil, err
			}
		}

		for i, row := range rows {
			if i == 0 {
				continue
			}
			rec, parseErr := model.ParseSheetRow(row)
			if parseErr != nil {
				return nil, fmt.Errorf("sheet %s row %d: %w", name, i+1, parseErr)
			}
			if !Qualifies(rec) {
				continue
			}
			out = append(out, SourceRecord{Sheet: name, Record: rec})
		}
	}
	return out, nil
}

// Qualifies reports whether a record takes part in the expansion.
func Qualifies(rec model.Record) bool {
	return rec.CalcTarget &&
		rec.Amount.IsNegative() &&
		!rec.Transfer &&
		rec.ID != ""
}

// Expand fans each qualifying record out into its installments. The
// total output length is the sum of all split counts.
func Expand(records []SourceRecord) []model.Installment {
	var out []model.Installment
	for _, src := range records {
		out = append(out, expandOne(src)...)
	}
	return out
}

func expandOne(src SourceRecord) []model.Installment {
	rec := src.Record
	n := rec.SplitCount
	if n < 1 {
		n = 1
	}

	// Flip the sign so the installment carries the expense magnitude,
	// then split across months and scale up by the payer's share.
	amount := rec.Amount.Neg().Div(decimal.NewFromInt(int64(n)))
	if rec.SharedPay {
		amount = amount.Div(rec.PayerRatio)
	}

	installments := make([]model.Installment, 0, n)
	for i := 0; i < n; i++ {
		installments = append(installments, model.Installment{
			ID:          rec.ID,
			RepeatIndex: i + 1,
			PayMonth:    monthStart(rec.Date, i+1),
			Content:     rec.Content,
			Amount:      amount,
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Account:     rec.Account,
			SourceSheet: src.Sheet,
		})
	}
	return installments
}

// monthStart returns the first day of the month `offset` months after
// d's month. Normalized month arithmetic keeps a source dated on the
// 31st from drifting an extra month.
func monthStart(d time.Time, offset int) time.Time {
	return time.Date(d.Year(), d.Month()+time.Month(offset), 1, 0, 0, 0, 0, d.Location())
}
