package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRow() []string {
	return []string{"1", "2021/03/15", "Grocery store", "-3000", "Bank A", "Food", "Groceries", "", "0", "txn-001"}
}

func TestParseRow(t *testing.T) {
	rec, err := ParseRow(validRow())
	require.NoError(t, err)

	assert.True(t, rec.CalcTarget)
	assert.Equal(t, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "Grocery store", rec.Content)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(-3000)))
	assert.Equal(t, "Bank A", rec.Account)
	assert.Equal(t, "Food", rec.Category)
	assert.Equal(t, "Groceries", rec.Subcategory)
	assert.False(t, rec.Transfer)
	assert.Equal(t, "txn-001", rec.ID)

	// Extension defaults
	assert.Equal(t, 1, rec.SplitCount)
	assert.False(t, rec.SharedPay)
	assert.True(t, rec.PayerRatio.Equal(decimal.NewFromInt(1)))
}

func TestParseRowErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]string) []string
		errMsg string
	}{
		{
			name:   "too few fields",
			mutate: func(r []string) []string { return r[:9] },
			errMsg: "expected 10 fields",
		},
		{
			name:   "too many fields",
			mutate: func(r []string) []string { return append(r, "extra") },
			errMsg: "expected 10 fields",
		},
		{
			name: "bad date",
			mutate: func(r []string) []string {
				r[ColDate] = "2021-03-15"
				return r
			},
			errMsg: "invalid date",
		},
		{
			name: "bad amount",
			mutate: func(r []string) []string {
				r[ColAmount] = "three thousand"
				return r
			},
			errMsg: "invalid amount",
		},
		{
			name: "bad flag",
			mutate: func(r []string) []string {
				r[ColCalcTarget] = "yes"
				return r
			},
			errMsg: "invalid calc-target flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRow(tt.mutate(validRow()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseSheetRowExtensions(t *testing.T) {
	tests := []struct {
		name      string
		extension []string
		wantSplit int
		wantRatio string
		wantShare bool
		wantErr   bool
	}{
		{name: "no extension cells", extension: nil, wantSplit: 1, wantRatio: "1"},
		{name: "blank extension cells", extension: []string{"", "", ""}, wantSplit: 1, wantRatio: "1"},
		{name: "split only", extension: []string{"3", "", ""}, wantSplit: 3, wantRatio: "1"},
		{name: "shared with ratio", extension: []string{"2", "1", "0.5"}, wantSplit: 2, wantShare: true, wantRatio: "0.5"},
		{name: "zero split rejected", extension: []string{"0", "", ""}, wantErr: true},
		{name: "ratio above one rejected", extension: []string{"1", "1", "1.5"}, wantErr: true},
		{name: "zero ratio rejected", extension: []string{"1", "1", "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseSheetRow(append(validRow(), tt.extension...))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSplit, rec.SplitCount)
			assert.Equal(t, tt.wantShare, rec.SharedPay)
			assert.True(t, rec.PayerRatio.Equal(decimal.RequireFromString(tt.wantRatio)))
		})
	}
}

func TestFixedCellsRoundTrip(t *testing.T) {
	rec, err := ParseRow(validRow())
	require.NoError(t, err)
	assert.Equal(t, validRow(), rec.FixedCells())
}

func TestCheckHeader(t *testing.T) {
	assert.NoError(t, CheckHeader(FixedHeaders))
	assert.NoError(t, CheckHeader(append(append([]string{}, FixedHeaders...), ExtensionHeaders...)))

	err := CheckHeader([]string{"Date", "Amount"})
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)

	shuffled := append([]string{}, FixedHeaders...)
	shuffled[0], shuffled[1] = shuffled[1], shuffled[0]
	assert.Error(t, CheckHeader(shuffled))
}

func TestCategoryKey(t *testing.T) {
	entry := CategoryEntry{Category: "Food", Subcategory: "Lunch"}
	assert.Equal(t, "Food/Lunch", entry.Key())
}
