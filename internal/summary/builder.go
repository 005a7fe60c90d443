// Package summary rebuilds the derived views: per-month totals, the
// category rollup, and the expanded all-items ledger.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yontaro/kakeibo/internal/expand"
	"github.com/yontaro/kakeibo/internal/importer"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
)

// Derived sheet names.
const (
	MonthlySheet  = "Summary_Monthly"
	CategorySheet = "Summary_Category"
	AllItemsSheet = "AllItems"
)

const payMonthLayout = "2006-01"

var (
	monthlyHeaders  = []string{"Period", "Income", "Expense", "Balance"}
	categoryHeaders = []string{"Category", "Subcategory", "PayMonth", "Amount"}
	allItemsHeaders = []string{"ID", "PayMonth", "RepeatIndex", "Content", "Amount", "Category", "Subcategory", "Account", "Source"}
)

// MonthlyTotals aggregates one period's calc-target, non-transfer rows
// into income, expense, and balance.
func MonthlyTotals(records []model.Record) (income, expense, balance decimal.Decimal) {
	for _, rec := range records {
		if !rec.CalcTarget || rec.Transfer {
			continue
		}
		if rec.Amount.IsNegative() {
			expense = expense.Add(rec.Amount)
		} else {
			income = income.Add(rec.Amount)
		}
	}
	return income, expense, income.Add(expense)
}

// CategoryTotal is one cell of the category rollup: total expense for a
// (category, subcategory) pair in one charge month.
type CategoryTotal struct {
	Category    string
	Subcategory string
	PayMonth    string
	Amount      decimal.Decimal
}

// CategoryRollup groups installments by (category, subcategory, charge
// month) and sums their amounts. Output is sorted by category key then
// month.
func CategoryRollup(installments []model.Installment) []CategoryTotal {
	type key struct {
		category    string
		subcategory string
		month       string
	}

	totals := make(map[key]decimal.Decimal)
	for _, inst := range installments {
		k := key{inst.Category, inst.Subcategory, inst.PayMonth.Format(payMonthLayout)}
		totals[k] = totals[k].Add(inst.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for k, amount := range totals {
		out = append(out, CategoryTotal{
			Category:    k.category,
			Subcategory: k.subcategory,
			PayMonth:    k.month,
			Amount:      amount,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ki := out[i].Category + model.CategoryKeySeparator + out[i].Subcategory
		kj := out[j].Category + model.CategoryKeySeparator + out[j].Subcategory
		if ki != kj {
			return ki < kj
		}
		return out[i].PayMonth < out[j].PayMonth
	})
	return out
}

// Builder rebuilds all derived sheets from the period sheets.
type Builder struct {
	store  service.TableStore
	logger *slog.Logger
}

// NewBuilder creates a summary builder over the given store.
func NewBuilder(store service.TableStore, logger *slog.Logger) *Builder {
	return &Builder{store: store, logger: logger}
}

// Rebuild force-rebuilds every derived view: monthly totals per period
// sheet, the expanded all-items ledger, and the category rollup.
func (b *Builder) Rebuild(ctx context.Context) error {
	if err := b.rebuildMonthly(ctx); err != nil {
		return err
	}

	sources, err := expand.Flatten(ctx, b.store)
	if err != nil {
		return err
	}
	installments := expand.Expand(sources)

	if err := b.rebuildAllItems(ctx, installments); err != nil {
		return err
	}
	if err := b.rebuildCategories(ctx, installments); err != nil {
		return err
	}

	b.logger.Info("summaries rebuilt", "installments", len(installments))
	return nil
}

func (b *Builder) rebuildMonthly(ctx context.Context) error {
	names, err := b.store.SheetNames(ctx)
	if err != nil {
		return err
	}

	var periods []string
	for _, name := range names {
		if strings.HasPrefix(name, importer.PeriodSheetPrefix) {
			periods = append(periods, name)
		}
	}
	sort.Strings(periods)

	rows := make([][]string, 0, len(periods))
	for _, name := range periods {
		records, readErr := b.readPeriod(ctx, name)
		if readErr != nil {
			return readErr
		}
		income, expense, balance := MonthlyTotals(records)
		rows = append(rows, []string{name, income.String(), expense.String(), balance.String()})
	}

	return b.rewrite(ctx, MonthlySheet, monthlyHeaders, rows)
}

func (b *Builder) rebuildAllItems(ctx context.Context, installments []model.Installment) error {
	rows := make([][]string, 0, len(installments))
	for _, inst := range installments {
		rows = append(rows, []string{
			inst.ID,
			inst.PayMonth.Format(model.DateLayout),
			fmt.Sprint(inst.RepeatIndex),
			inst.Content,
			inst.Amount.String(),
			inst.Category,
			inst.Subcategory,
			inst.Account,
			inst.SourceSheet,
		})
	}
	return b.rewrite(ctx, AllItemsSheet, allItemsHeaders, rows)
}

func (b *Builder) rebuildCategories(ctx context.Context, installments []model.Installment) error {
	totals := CategoryRollup(installments)
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Category, t.Subcategory, t.PayMonth, t.Amount.String()})
	}
	return b.rewrite(ctx, CategorySheet, categoryHeaders, rows)
}

func (b *Builder) readPeriod(ctx context.Context, name string) ([]model.Record, error) {
	rows, err := b.store.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := model.CheckHeader(rows[0]); err != nil {
			return nil, err
		}
	}

	records := make([]model.Record, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec, parseErr := model.ParseSheetRow(row)
		if parseErr != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", name, i+1, parseErr)
		}
		records = append(records, rec)
	}
	return records, nil
}

// rewrite replaces a derived sheet's contents wholesale. Derived views
// hold no user state, so clear-and-write is safe here.
func (b *Builder) rewrite(ctx context.Context, name string, header []string, rows [][]string) error {
	if err := b.store.EnsureSheet(ctx, name, header); err != nil {
		return err
	}
	if err := b.store.ClearSheet(ctx, name); err != nil {
		return err
	}
	if err := b.store.AppendRows(ctx, name, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
