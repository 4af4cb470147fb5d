package storage

import (
	"context"
	"fmt"
	"strings"

	"budgetledger/internal/core"
)

func (q *Queries) ListCategories(ctx context.Context, kind core.CategoryKind) ([]core.Category, error) {
	query := `SELECT name, kind FROM categories`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Name, &c.Kind); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx, `SELECT name, kind FROM categories WHERE name = ?`, name).Scan(&c.Name, &c.Kind)
	if err != nil {
		return core.Category{}, notFoundOr(err, "category", name)
	}
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO categories (name, kind) VALUES (?, ?)`, c.Name, string(c.Kind))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.Validationf("category %q already exists", c.Name)
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category; transactions using it become uncategorized.
func (q *Queries) DeleteCategory(ctx context.Context, name string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affected(res, "category", name)
}
