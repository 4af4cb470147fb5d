package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetledger/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean no constraint.
type TransactionFilter struct {
	From          core.Date
	To            core.Date
	Category      string
	Uncategorized bool
	SourceFile    string
	Limit         int
}

const transactionColumns = `id, transaction_date, amount, description, category, source_file, import_id, created_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		date     string
		category sql.NullString
		importID sql.NullString
	)
	if err := row.Scan(&t.ID, &date, &t.Amount, &t.Description, &category, &t.SourceFile, &importID, &t.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Category = category.String
	t.ImportID = importID.String
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (transaction_date, amount, description, category, source_file, import_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), core.CanonicalAmount(t.Amount), t.Description,
		nullString(t.Category), t.SourceFile, nullString(t.ImportID), createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFoundOr(err, "transaction", id)
	}
	return t, nil
}

// ListTransactions returns matching transactions, newest first.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "transaction_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "transaction_date <= ?")
		args = append(args, f.To.String())
	}
	switch {
	case f.Uncategorized:
		where = append(where, "category IS NULL")
	case f.Category != "":
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.SourceFile != "" {
		where = append(where, "source_file = ?")
		args = append(args, f.SourceFile)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY transaction_date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByKey reports how many stored transactions share the dedup key.
func (q *Queries) CountByKey(ctx context.Context, k core.DedupKey) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE transaction_date = ? AND amount = ? AND description = ?`,
		k.Date, k.Amount, k.Description).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions by key: %w", err)
	}
	return n, nil
}

// UpdateTransaction rewrites the date, amount and description of t.ID.
// Category, source and import lineage are left alone.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET transaction_date = ?, amount = ?, description = ? WHERE id = ?`,
		t.Date.String(), core.CanonicalAmount(t.Amount), t.Description, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return affected(res, "transaction", t.ID)
}

// SetTransactionCategory sets or clears (empty label) a transaction's category.
func (q *Queries) SetTransactionCategory(ctx context.Context, id int64, category string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, nullString(category), id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return affected(res, "transaction", id)
}

// CategorizeMatching assigns category to every transaction whose description
// contains pattern, case-insensitively. With onlyUncategorized set, already
// categorized rows are left alone.
func (q *Queries) CategorizeMatching(ctx context.Context, pattern, category string, onlyUncategorized bool) (int64, error) {
	query := `UPDATE transactions SET category = ? WHERE description LIKE ? ESCAPE '\'`
	if onlyUncategorized {
		query += ` AND category IS NULL`
	}
	res, err := q.db.ExecContext(ctx, query, nullString(category), "%"+escapeLike(pattern)+"%")
	if err != nil {
		return 0, fmt.Errorf("categorize matching: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affected(res, "transaction", id)
}

func (q *Queries) DeleteTransactionsBySource(ctx context.Context, sourceFile string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE source_file = ?`, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	return res.RowsAffected()
}

// MonthsWithData lists the YYYY-MM months that have transactions, newest first.
func (q *Queries) MonthsWithData(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT substr(transaction_date, 1, 7) AS ym FROM transactions ORDER BY ym DESC`)
	if err != nil {
		return nil, fmt.Errorf("months with data: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ym string
		if err := rows.Scan(&ym); err != nil {
			return nil, err
		}
		out = append(out, ym)
	}
	return out, rows.Err()
}

// SpendingByCategory totals the outflows per category inside the period,
// as positive amounts. Inflows never offset spending, so income sitting in
// the same category (usually uncategorized, straight after an import) does
// not hide it.
func (q *Queries) SpendingByCategory(ctx context.Context, p core.Period) (map[string]decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT COALESCE(category, ''), amount FROM transactions WHERE transaction_date BETWEEN ? AND ?`,
		p.Start.String(), p.End.String())
	if err != nil {
		return nil, fmt.Errorf("spending by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			name   string
			amount decimal.Decimal
		)
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, err
		}
		// amounts are stored as decimal text, so the sign is checked here
		// rather than in SQL
		if amount.IsNegative() {
			out[name] = out[name].Sub(amount)
		}
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
