package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
	"budgetledger/internal/prorate"
	"budgetledger/internal/storage"
)

// SummaryService reports what a calendar month cost.
type SummaryService struct {
	store *storage.Store
}

func NewSummaryService(store *storage.Store) *SummaryService {
	return &SummaryService{store: store}
}

// Month combines imported outflows per category, the month's share of
// recurring expenses, and travel fund expenses not already linked to an
// imported transaction. Outflows are positive.
func (s *SummaryService) Month(ctx context.Context, year, month int) (core.MonthSummary, error) {
	if month < 1 || month > 12 {
		return core.MonthSummary{}, core.Validationf("month must be between 1 and 12, got %d", month)
	}
	if year < 1900 || year > 2200 {
		return core.MonthSummary{}, core.Validationf("year %d out of range", year)
	}
	p := core.MonthPeriod(year, month)
	sum := core.MonthSummary{Year: year, Month: month}

	outflows, err := s.store.SpendingByCategory(ctx, p)
	if err != nil {
		return core.MonthSummary{}, err
	}
	spending := make(map[string]decimal.Decimal)
	for name, amt := range outflows {
		if name == "" {
			name = UncategorizedLabel
		}
		spending[name] = spending[name].Add(amt)
		sum.Imported = sum.Imported.Add(amt)
	}
	sum.ByCategory = core.SumByCategory(spending)

	expenses, err := s.store.ListRecurring(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	for _, e := range expenses {
		amt, err := prorate.Amount(e, p)
		if err != nil {
			return core.MonthSummary{}, err
		}
		sum.Recurring = sum.Recurring.Add(amt.Abs())
	}

	entries, err := s.store.ListTravelEntries(ctx, p.Start, p.End)
	if err != nil {
		return core.MonthSummary{}, err
	}
	for _, e := range entries {
		if e.Amount.IsNegative() && e.TransactionID == nil {
			sum.Travel = sum.Travel.Add(e.Amount.Neg())
		}
	}

	sum.Total = sum.Imported.Add(sum.Recurring).Add(sum.Travel)
	sort.SliceStable(sum.ByCategory, func(i, j int) bool {
		return sum.ByCategory[i].Amount.GreaterThan(sum.ByCategory[j].Amount)
	})
	return sum, nil
}
