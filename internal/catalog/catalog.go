package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tablescan/tablescan/internal/database"
)

type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// ListTables returns the user tables in the order the engine reports them.
// A database without tables yields an empty, non-nil slice.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.TablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if !name.Valid || strings.TrimSpace(name.String) == "" {
			continue
		}
		names = append(names, name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return names, nil
}

func (r *Repository) CountRows(ctx context.Context, table string) (int64, error) {
	if strings.TrimSpace(table) == "" {
		return 0, fmt.Errorf("table name is required")
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.db.Dialect.QuoteIdent(table))
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %q: %w", table, err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}
