package storage

import (
	"context"
	"fmt"

	"budgetledger/internal/core"
)

func (q *Queries) InsertImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO imports (id, file_name, format, imported_at, accepted, rejected, duplicates, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.Format, rec.ImportedAt, rec.Accepted, rec.Rejected, rec.Duplicates, rec.Skipped)
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

// ListImports returns past imports, most recent first.
func (q *Queries) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, file_name, format, imported_at, accepted, rejected, duplicates, skipped
		 FROM imports ORDER BY imported_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRecord
	for rows.Next() {
		var r core.ImportRecord
		if err := rows.Scan(&r.ID, &r.FileName, &r.Format, &r.ImportedAt, &r.Accepted, &r.Rejected, &r.Duplicates, &r.Skipped); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
