// Package travel keeps the travel fund: allocations credit it, expenses debit
// it, and balances are always recomputed from the stored entries.
package travel

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
	applog "budgetledger/internal/log"
	"budgetledger/internal/storage"
)

// Balance is the signed fund total. A negative balance is reported, never clamped.
type Balance struct {
	Amount    decimal.Decimal `json:"amount"`
	Overdrawn bool            `json:"overdrawn"`
}

func balanceOf(amount decimal.Decimal) Balance {
	return Balance{Amount: amount, Overdrawn: amount.IsNegative()}
}

// BalancePoint is the fund balance at the end of a day with activity.
type BalancePoint struct {
	Date    core.Date       `json:"date"`
	Change  decimal.Decimal `json:"change"`
	Balance decimal.Decimal `json:"balance"`
}

// Ledger reads and writes travel entries through a Store.
type Ledger struct {
	store *storage.Store
}

func NewLedger(store *storage.Store) *Ledger {
	return &Ledger{store: store}
}

// CurrentBalance sums every entry in date order.
func (l *Ledger) CurrentBalance(ctx context.Context) (Balance, error) {
	return currentBalance(ctx, l.store.Queries)
}

func currentBalance(ctx context.Context, q *storage.Queries) (Balance, error) {
	entries, err := q.ListTravelEntries(ctx, core.Date{}, core.Date{})
	if err != nil {
		return Balance{}, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return balanceOf(total), nil
}

// BalanceSeries yields the running balance for each date in [from, to] whose
// entries change it, oldest first. The opening balance includes everything
// before from; zero bounds are open.
//
// Nothing is read until the sequence is ranged over, and every range reads
// the store afresh, so the sequence can be restarted and reflects later edits.
func (l *Ledger) BalanceSeries(ctx context.Context, from, to core.Date) iter.Seq2[BalancePoint, error] {
	return func(yield func(BalancePoint, error) bool) {
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return
		}
		entries, err := l.store.ListTravelEntries(ctx, core.Date{}, to)
		if err != nil {
			yield(BalancePoint{}, err)
			return
		}

		running := decimal.Zero
		var cur *BalancePoint
		flush := func() bool {
			if cur == nil || cur.Change.IsZero() {
				return true
			}
			cur.Balance = running
			return yield(*cur, nil)
		}

		for _, e := range entries {
			if e.Date.Before(from) {
				running = running.Add(e.Amount)
				continue
			}
			if cur == nil || !cur.Date.Equal(e.Date) {
				if !flush() {
					return
				}
				cur = &BalancePoint{Date: e.Date, Change: decimal.Zero}
			}
			cur.Change = cur.Change.Add(e.Amount)
			running = running.Add(e.Amount)
		}
		flush()
	}
}

// Entries lists entries in [from, to] ordered by date, then insertion.
func (l *Ledger) Entries(ctx context.Context, from, to core.Date) ([]core.TravelEntry, error) {
	return l.store.ListTravelEntries(ctx, from, to)
}

// AddEntry records a signed entry. The entry is checked and stored in one
// transaction; any failure leaves the ledger untouched. An entry that
// overdraws the fund is accepted.
func (l *Ledger) AddEntry(ctx context.Context, e core.TravelEntry) (core.TravelEntry, error) {
	if err := e.Validate(); err != nil {
		return core.TravelEntry{}, err
	}

	var bal Balance
	err := l.store.WithTx(ctx, func(q *storage.Queries) error {
		if e.TransactionID != nil {
			if _, err := q.GetTransaction(ctx, *e.TransactionID); err != nil {
				return fmt.Errorf("linked transaction: %w", err)
			}
		}
		id, err := q.InsertTravelEntry(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		bal, err = currentBalance(ctx, q)
		return err
	})
	if err != nil {
		return core.TravelEntry{}, err
	}

	fields := applog.NewFields().WithComponent(applog.ComponentTravel).WithAmount(e.Amount)
	fields["id"] = e.ID
	fields["date"] = e.Date.String()
	slog.InfoContext(ctx, "Travel entry added", fields.ToSlice()...)
	if bal.Overdrawn {
		slog.WarnContext(ctx, "Travel fund overdrawn", applog.FieldComponent, applog.ComponentTravel, applog.FieldBalance, bal.Amount.String())
	}
	return e, nil
}

// AddAllocation credits the fund. The amount must be positive.
func (l *Ledger) AddAllocation(ctx context.Context, date core.Date, amount decimal.Decimal, description string) (core.TravelEntry, error) {
	if !amount.IsPositive() {
		return core.TravelEntry{}, core.Validationf("allocation must be positive, got %s", amount)
	}
	return l.AddEntry(ctx, core.TravelEntry{Date: date, Amount: amount, Description: description})
}

// AddExpense debits the fund. The amount is stored negative whatever its
// sign; transactionID optionally links the expense to an imported transaction.
func (l *Ledger) AddExpense(ctx context.Context, date core.Date, amount decimal.Decimal, description string, transactionID *int64) (core.TravelEntry, error) {
	return l.AddEntry(ctx, core.TravelEntry{
		Date:          date,
		Amount:        amount.Abs().Neg(),
		Description:   description,
		TransactionID: transactionID,
	})
}

// DeleteEntry removes one entry.
func (l *Ledger) DeleteEntry(ctx context.Context, id int64) error {
	if err := l.store.DeleteTravelEntry(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Travel entry deleted", "id", id)
	return nil
}
