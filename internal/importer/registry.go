package importer

import (
	"context"
	"fmt"

	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
)

// CategorySheet holds the deduplicated (category, subcategory) pairs
// observed across all period sheets.
const CategorySheet = "Categories"

var categoryHeaders = []string{"Category", "Subcategory", "Key"}

// CategoryRegistry maintains the append-only, sorted category sheet.
type CategoryRegistry struct {
	store service.TableStore
}

// NewCategoryRegistry creates a registry over the given store.
func NewCategoryRegistry(store service.TableStore) *CategoryRegistry {
	return &CategoryRegistry{store: store}
}

// Upsert appends any (category, subcategory) pairs from the period sheet
// that the registry has not seen, then re-sorts the registry by key.
// Nothing is ever removed.
func (r *CategoryRegistry) Upsert(ctx context.Context, periodSheet string) error {
	if err := r.store.EnsureSheet(ctx, CategorySheet, categoryHeaders); err != nil {
		return fmt.Errorf("failed to ensure category sheet: %w", err)
	}

	existing, err := r.store.ReadTable(ctx, CategorySheet)
	if err != nil {
		return fmt.Errorf("failed to read category registry: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for i, row := range existing {
		if i == 0 || len(row) < 3 {
			continue
		}
		seen[row[2]] = true
	}

	rows, err := r.store.ReadTable(ctx, periodSheet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", periodSheet, err)
	}

	var appends [][]string
	for i, row := range rows {
		if i == 0 || len(row) < model.FixedColumnCount {
			continue
		}
		entry := model.CategoryEntry{
			Category:    row[model.ColCategory],
			Subcategory: row[model.ColSubcategory],
		}
		if seen[entry.Key()] {
			continue
		}
		seen[entry.Key()] = true
		appends = append(appends, []string{entry.Category, entry.Subcategory, entry.Key()})
	}

	if len(appends) == 0 {
		return nil
	}

	if err := r.store.AppendRows(ctx, CategorySheet, appends); err != nil {
		return fmt.Errorf("failed to append categories: %w", err)
	}

	if err := r.store.SortRange(ctx, CategorySheet, 2); err != nil {
		return fmt.Errorf("failed to sort category registry: %w", err)
	}

	return nil
}
