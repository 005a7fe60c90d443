package model

// CategoryKeySeparator joins category and subcategory into the registry's
// dedup/sort key.
const CategoryKeySeparator = "/"

// CategoryEntry is one (category, subcategory) pair observed in a period
// sheet.
type CategoryEntry struct {
	Category    string
	Subcategory string
}

// Key returns the concatenated dedup/sort key.
func (c CategoryEntry) Key() string {
	return c.Category + CategoryKeySeparator + c.Subcategory
}
