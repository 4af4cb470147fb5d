// Package prorate converts recurring expenses into the amount attributable to
// an arbitrary reporting period.
//
// Each frequency has its own Cycle strategy describing how billing dates
// advance. Strategies live in a registry keyed by frequency, so supporting a
// new frequency means registering one more Cycle.
package prorate

import (
	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
)

// Cycle is the strategy interface for a billing frequency.
type Cycle interface {
	// Step returns the date n cycles after anchor. Stepping always starts
	// from the anchor so clamped month ends do not drift.
	Step(anchor core.Date, n int) core.Date
	// PerYear is how many cycles fit in a year.
	PerYear() int
}

// DayCycle advances by a fixed number of days.
type DayCycle struct {
	Days int
}

func (c DayCycle) Step(anchor core.Date, n int) core.Date {
	return anchor.AddDays(c.Days * n)
}

func (c DayCycle) PerYear() int {
	return 364 / c.Days
}

// MonthCycle advances by whole calendar months, keeping the anchor's day of
// month and clamping it in shorter months.
type MonthCycle struct {
	Months int
}

func (c MonthCycle) Step(anchor core.Date, n int) core.Date {
	return anchor.AddMonths(c.Months * n)
}

func (c MonthCycle) PerYear() int {
	return 12 / c.Months
}

var cycles = map[core.Frequency]Cycle{
	core.Weekly:     DayCycle{Days: 7},
	core.Monthly:    MonthCycle{Months: 1},
	core.Quarterly:  MonthCycle{Months: 3},
	core.SemiAnnual: MonthCycle{Months: 6},
	core.Yearly:     MonthCycle{Months: 12},
}

// CycleFor returns the strategy registered for a frequency.
func CycleFor(f core.Frequency) (Cycle, error) {
	c, ok := cycles[f]
	if !ok {
		return nil, core.Configf("unsupported frequency %q", f)
	}
	return c, nil
}

// Register adds or replaces the strategy for a frequency. It is not safe to
// call concurrently with proration.
func Register(f core.Frequency, c Cycle) {
	cycles[f] = c
}

// MonthlyEquivalent expresses an expense's amount per calendar month.
func MonthlyEquivalent(e core.RecurringExpense) (decimal.Decimal, error) {
	c, err := CycleFor(e.Frequency)
	if err != nil {
		return decimal.Zero, err
	}
	return e.Amount.Mul(decimal.NewFromInt(int64(c.PerYear()))).Div(decimal.NewFromInt(12)).Round(2), nil
}
