package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// UncategorizedLabel clears a transaction's category when used as a label.
const UncategorizedLabel = "Uncategorized"

// ManualSource is the source file recorded for hand-entered transactions.
const ManualSource = "manual"

// LedgerService covers transaction review and category management.
type LedgerService struct {
	store *storage.Store
}

func NewLedgerService(store *storage.Store) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) Transactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, core.Validationf("range end %s is before start %s", f.To, f.From)
	}
	return s.store.ListTransactions(ctx, f)
}

func (s *LedgerService) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// SetCategory assigns label to transaction id. An empty label or
// UncategorizedLabel clears it; any other label must name a known category.
func (s *LedgerService) SetCategory(ctx context.Context, id int64, label string) error {
	label = categoryLabel(label)
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetTransaction(ctx, id); err != nil {
			return err
		}
		if err := checkCategory(ctx, q, label); err != nil {
			return err
		}
		return q.SetTransactionCategory(ctx, id, label)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction categorized", "id", id, "category", label)
	return nil
}

// Categorize labels every transaction whose description contains pattern.
func (s *LedgerService) Categorize(ctx context.Context, pattern, label string, onlyUncategorized bool) (int64, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, core.Validationf("pattern cannot be empty")
	}
	label = categoryLabel(label)

	var n int64
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, label); err != nil {
			return err
		}
		var err error
		n, err = q.CategorizeMatching(ctx, pattern, label, onlyUncategorized)
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Bulk categorized", "pattern", pattern, "category", label, "rows", n)
	return n, nil
}

// AddTransaction stores a hand-entered transaction.
func (s *LedgerService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Description = strings.TrimSpace(t.Description)
	t.Category = categoryLabel(t.Category)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.SourceFile == "" {
		t.SourceFile = ManualSource
	}
	t.ImportID = ""

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, t.Category); err != nil {
			return err
		}
		id, err := q.InsertTransaction(ctx, t)
		if err != nil {
			return err
		}
		t, err = q.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// TransactionPatch names the fields an edit changes. Nil fields keep their
// stored value.
type TransactionPatch struct {
	Date        *core.Date       `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
}

func (p TransactionPatch) empty() bool {
	return p.Date == nil && p.Amount == nil && p.Description == nil
}

func (p TransactionPatch) apply(t core.Transaction) core.Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	return t
}

// UpdateTransaction applies patch to transaction id and returns the result.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (core.Transaction, error) {
	updated, err := s.UpdateTransactions(ctx, []int64{id}, patch)
	if err != nil {
		return core.Transaction{}, err
	}
	return updated[0], nil
}

// UpdateTransactions applies the same patch to every id in one transaction.
// Any missing id or invalid result leaves all of them unchanged.
func (s *LedgerService) UpdateTransactions(ctx context.Context, ids []int64, patch TransactionPatch) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, core.Validationf("no transaction ids given")
	}
	if patch.empty() {
		return nil, core.Validationf("nothing to update: set date, amount or description")
	}

	updated := make([]core.Transaction, 0, len(ids))
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		for _, id := range ids {
			t, err := q.GetTransaction(ctx, id)
			if err != nil {
				return err
			}
			t = patch.apply(t)
			if err := t.Validate(); err != nil {
				return fmt.Errorf("transaction %d: %w", id, err)
			}
			if err := q.UpdateTransaction(ctx, t); err != nil {
				return err
			}
			if t, err = q.GetTransaction(ctx, id); err != nil {
				return err
			}
			updated = append(updated, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions updated", "ids", ids)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	return s.store.DeleteTransaction(ctx, id)
}

// DeleteSource removes every transaction imported from file.
func (s *LedgerService) DeleteSource(ctx context.Context, file string) (int64, error) {
	n, err := s.store.DeleteTransactionsBySource(ctx, file)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, core.NotFoundf("no transactions from source %q", file)
	}
	slog.InfoContext(ctx, "Source deleted", "file", file, "rows", n)
	return n, nil
}

// Months lists the YYYY-MM months with transactions, newest first.
func (s *LedgerService) Months(ctx context.Context) ([]string, error) {
	return s.store.MonthsWithData(ctx)
}

func (s *LedgerService) Categories(ctx context.Context, kind core.CategoryKind) ([]core.Category, error) {
	if kind != "" && !kind.Valid() {
		return nil, core.Validationf("unknown category kind %q", kind)
	}
	return s.store.ListCategories(ctx, kind)
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Kind == "" {
		c.Kind = core.KindExpense
	}
	switch {
	case c.Name == "":
		return core.Category{}, core.Validationf("category name cannot be empty")
	case strings.EqualFold(c.Name, UncategorizedLabel):
		return core.Category{}, core.Validationf("%q is reserved", UncategorizedLabel)
	case !c.Kind.Valid():
		return core.Category{}, core.Validationf("unknown category kind %q", c.Kind)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category; its transactions become uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, name string) error {
	return s.store.DeleteCategory(ctx, name)
}

func categoryLabel(label string) string {
	label = strings.TrimSpace(label)
	if strings.EqualFold(label, UncategorizedLabel) {
		return ""
	}
	return label
}

func checkCategory(ctx context.Context, q *storage.Queries, label string) error {
	if label == "" {
		return nil
	}
	if _, err := q.GetCategory(ctx, label); err != nil {
		if core.Kind(err) == core.ErrNotFound {
			return core.Validationf("unknown category %q", label)
		}
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}
