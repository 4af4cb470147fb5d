package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"budgetledger/internal/core"
)

func (q *Queries) InsertTravelEntry(ctx context.Context, e core.TravelEntry) (int64, error) {
	var txID sql.NullInt64
	if e.TransactionID != nil {
		txID = sql.NullInt64{Int64: *e.TransactionID, Valid: true}
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO travel_budget (entry_date, amount, description, transaction_id) VALUES (?, ?, ?, ?)`,
		e.Date.String(), core.CanonicalAmount(e.Amount), e.Description, txID)
	if err != nil {
		return 0, fmt.Errorf("insert travel entry: %w", err)
	}
	return res.LastInsertId()
}

// ListTravelEntries returns entries ordered by date, ties broken by insertion
// order. Zero bounds are open.
func (q *Queries) ListTravelEntries(ctx context.Context, from, to core.Date) ([]core.TravelEntry, error) {
	var (
		where []string
		args  []any
	)
	if !from.IsZero() {
		where = append(where, "entry_date >= ?")
		args = append(args, from.String())
	}
	if !to.IsZero() {
		where = append(where, "entry_date <= ?")
		args = append(args, to.String())
	}
	query := `SELECT id, entry_date, amount, description, transaction_id FROM travel_budget`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY entry_date, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list travel entries: %w", err)
	}
	defer rows.Close()

	var out []core.TravelEntry
	for rows.Next() {
		var (
			e    core.TravelEntry
			date string
			txID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &date, &e.Amount, &e.Description, &txID); err != nil {
			return nil, fmt.Errorf("scan travel entry: %w", err)
		}
		if e.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		if txID.Valid {
			id := txID.Int64
			e.TransactionID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteTravelEntry(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM travel_budget WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete travel entry: %w", err)
	}
	return affected(res, "travel entry", id)
}
