package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthSummary is a compact spending summary for a specific year+month.
// Outflows are reported as positive numbers.
type MonthSummary struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Imported   decimal.Decimal  `json:"imported"`
	Recurring  decimal.Decimal  `json:"recurring"`
	Travel     decimal.Decimal  `json:"travel"`
	Total      decimal.Decimal  `json:"total"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// SumByCategory folds amounts into a name-sorted breakdown.
func SumByCategory(amounts map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(amounts))
	for name, amt := range amounts {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
