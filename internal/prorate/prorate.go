package prorate

import (
	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
)

// Uncategorized labels recurring expenses without a category in breakdowns.
const Uncategorized = "Uncategorized"

// Item is one expense's share of a period.
type Item struct {
	Expense core.RecurringExpense `json:"expense"`
	Amount  decimal.Decimal       `json:"amount"`
}

// Breakdown is the prorated total of several expenses over one period.
type Breakdown struct {
	Period     core.Period           `json:"-"`
	Total      decimal.Decimal       `json:"total"`
	Items      []Item                `json:"items"`
	ByCategory []core.CategoryAmount `json:"by_category"`
}

// Amount returns the part of e attributable to p.
//
// The overlap of p with the expense's active range is measured in billing
// cycles: whole cycles are stepped from the first overlapping day, and the
// remainder counts as the fraction of the following cycle's days it covers.
// A full calendar month of a monthly expense is therefore exactly one unit.
// The result is rounded to cents.
func Amount(e core.RecurringExpense, p core.Period) (decimal.Decimal, error) {
	c, err := prepare(e, p)
	if err != nil {
		return decimal.Zero, err
	}
	from, to, ok := overlap(e, p)
	if !ok {
		return decimal.Zero, nil
	}
	return e.Amount.Mul(units(c, from, to)).Round(2), nil
}

// Occurrences lists the billing dates of e that fall inside p. Billing dates
// are anchored on the expense's start date.
func Occurrences(e core.RecurringExpense, p core.Period) ([]core.Date, error) {
	c, err := prepare(e, p)
	if err != nil {
		return nil, err
	}
	from, to, ok := overlap(e, p)
	if !ok {
		return nil, nil
	}

	var out []core.Date
	for n := firstCycleOnOrAfter(c, e.Start, from); ; n++ {
		d := c.Step(e.Start, n)
		if d.After(to) {
			break
		}
		if !d.Before(from) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Total prorates every expense over p. Category totals use Uncategorized for
// expenses without one.
func Total(expenses []core.RecurringExpense, p core.Period) (Breakdown, error) {
	b := Breakdown{Period: p, Total: decimal.Zero, Items: make([]Item, 0, len(expenses))}
	byCategory := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		amt, err := Amount(e, p)
		if err != nil {
			return Breakdown{}, err
		}
		b.Items = append(b.Items, Item{Expense: e, Amount: amt})
		b.Total = b.Total.Add(amt)

		cat := e.Category
		if cat == "" {
			cat = Uncategorized
		}
		byCategory[cat] = byCategory[cat].Add(amt)
	}
	b.ByCategory = core.SumByCategory(byCategory)
	return b, nil
}

func prepare(e core.RecurringExpense, p core.Period) (Cycle, error) {
	c, err := CycleFor(e.Frequency)
	if err != nil {
		return nil, err
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return nil, core.Configf("period needs both a start and an end date")
	}
	if e.Start.IsZero() {
		return nil, core.Configf("recurring expense %q has no start date", e.Label)
	}
	return c, nil
}

// overlap intersects p with the expense's active range.
func overlap(e core.RecurringExpense, p core.Period) (from, to core.Date, ok bool) {
	from, to = p.Start, p.End
	if e.Start.After(from) {
		from = e.Start
	}
	if !e.End.IsZero() && e.End.Before(to) {
		to = e.End
	}
	return from, to, !to.Before(from)
}

func units(c Cycle, from, to core.Date) decimal.Decimal {
	stop := to.AddDays(1)
	n := 0
	for !c.Step(from, n+1).After(stop) {
		n++
	}
	cycleStart, cycleEnd := c.Step(from, n), c.Step(from, n+1)
	covered := cycleStart.DaysUntil(stop)
	whole := decimal.NewFromInt(int64(n))
	if covered == 0 {
		return whole
	}
	frac := decimal.NewFromInt(int64(covered)).Div(decimal.NewFromInt(int64(cycleStart.DaysUntil(cycleEnd))))
	return whole.Add(frac)
}

// firstCycleOnOrAfter estimates the first cycle index whose billing date is
// not before d, so long-running expenses do not walk every past cycle.
func firstCycleOnOrAfter(c Cycle, anchor, d core.Date) int {
	if !d.After(anchor) {
		return 0
	}
	// underestimate, then back off until Step(n) precedes d
	n := anchor.DaysUntil(d)*c.PerYear()/366 - 1
	if n < 0 {
		n = 0
	}
	for n > 0 && !c.Step(anchor, n).Before(d) {
		n--
	}
	return n
}
