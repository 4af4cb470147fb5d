package storage

import (
	"context"
	"database/sql"
	"fmt"

	"budgetledger/internal/core"
)

const recurringColumns = `id, label, amount, frequency, start_date, end_date, category`

func scanRecurring(row scanner) (core.RecurringExpense, error) {
	var (
		re       core.RecurringExpense
		freq     string
		start    string
		end      sql.NullString
		category sql.NullString
	)
	if err := row.Scan(&re.ID, &re.Label, &re.Amount, &freq, &start, &end, &category); err != nil {
		return core.RecurringExpense{}, err
	}
	re.Frequency = core.Frequency(freq)
	d, err := parseStoredDate(start)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	re.Start = d
	if end.Valid {
		if re.End, err = parseStoredDate(end.String); err != nil {
			return core.RecurringExpense{}, err
		}
	}
	re.Category = category.String
	return re, nil
}

func (q *Queries) InsertRecurring(ctx context.Context, re core.RecurringExpense) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (label, amount, frequency, start_date, end_date, category)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		re.Label, core.CanonicalAmount(re.Amount), string(re.Frequency),
		re.Start.String(), nullDate(re.End), nullString(re.Category))
	if err != nil {
		return 0, fmt.Errorf("insert recurring expense: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateRecurring(ctx context.Context, re core.RecurringExpense) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_expenses
		 SET label = ?, amount = ?, frequency = ?, start_date = ?, end_date = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		re.Label, core.CanonicalAmount(re.Amount), string(re.Frequency),
		re.Start.String(), nullDate(re.End), nullString(re.Category), re.ID)
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", err)
	}
	return affected(res, "recurring expense", re.ID)
}

func (q *Queries) GetRecurring(ctx context.Context, id int64) (core.RecurringExpense, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses WHERE id = ?`, id)
	re, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, notFoundOr(err, "recurring expense", id)
	}
	return re, nil
}

func (q *Queries) ListRecurring(ctx context.Context) ([]core.RecurringExpense, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringExpense
	for rows.Next() {
		re, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		out = append(out, re)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteRecurring(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	return affected(res, "recurring expense", id)
}
