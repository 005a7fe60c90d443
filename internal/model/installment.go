package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment is one future charge produced by expanding a qualifying
// expense row. A row with split count n yields n installments, one per
// consecutive month after the expense date.
type Installment struct {
	PayMonth    time.Time // first day of the charge month
	ID          string
	Content     string
	Account     string
	Category    string
	Subcategory string
	SourceSheet string
	Amount      decimal.Decimal
	RepeatIndex int // 1-based installment number
}
