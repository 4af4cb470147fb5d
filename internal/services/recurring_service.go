package services

import (
	"context"
	"log/slog"
	"strings"

	"budgetledger/internal/core"
	"budgetledger/internal/prorate"
	"budgetledger/internal/storage"
)

// RecurringService manages recurring expenses and their proration.
type RecurringService struct {
	store *storage.Store
}

func NewRecurringService(store *storage.Store) *RecurringService {
	return &RecurringService{store: store}
}

func (s *RecurringService) List(ctx context.Context) ([]core.RecurringExpense, error) {
	return s.store.ListRecurring(ctx)
}

func (s *RecurringService) Get(ctx context.Context, id int64) (core.RecurringExpense, error) {
	return s.store.GetRecurring(ctx, id)
}

func (s *RecurringService) Create(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	re, err := prepareRecurring(re)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, re.Category); err != nil {
			return err
		}
		id, err := q.InsertRecurring(ctx, re)
		re.ID = id
		return err
	})
	if err != nil {
		return core.RecurringExpense{}, err
	}
	slog.InfoContext(ctx, "Recurring expense created", "id", re.ID, "label", re.Label, "frequency", string(re.Frequency))
	return re, nil
}

func (s *RecurringService) Update(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	re, err := prepareRecurring(re)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, re.Category); err != nil {
			return err
		}
		return q.UpdateRecurring(ctx, re)
	})
	if err != nil {
		return core.RecurringExpense{}, err
	}
	slog.InfoContext(ctx, "Recurring expense updated", "id", re.ID)
	return re, nil
}

func (s *RecurringService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteRecurring(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring expense deleted", "id", id)
	return nil
}

// Prorated returns every recurring expense's share of p.
func (s *RecurringService) Prorated(ctx context.Context, p core.Period) (prorate.Breakdown, error) {
	expenses, err := s.store.ListRecurring(ctx)
	if err != nil {
		return prorate.Breakdown{}, err
	}
	return prorate.Total(expenses, p)
}

func prepareRecurring(re core.RecurringExpense) (core.RecurringExpense, error) {
	re.Label = strings.TrimSpace(re.Label)
	re.Category = categoryLabel(re.Category)
	freq, err := core.ParseFrequency(string(re.Frequency))
	if err != nil {
		return core.RecurringExpense{}, err
	}
	re.Frequency = freq
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	return re, nil
}
