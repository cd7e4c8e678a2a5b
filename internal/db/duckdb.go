package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/sqlscout/sqlscout/internal/schema"
)

func init() {
	Register("duckdb", func() Adapter { return NewDuckDBAdapter() })
}

// DuckDBAdapter implements Adapter for a local DuckDB database. It exists
// for offline workflows; schema-aware completion works against a file (or
// ":memory:") without any server.
type DuckDBAdapter struct {
	db *sql.DB
}

// NewDuckDBAdapter creates an unconnected DuckDB adapter.
func NewDuckDBAdapter() *DuckDBAdapter {
	return &DuckDBAdapter{}
}

// Connect opens the database file. An empty path means in-memory.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping duckdb: %w", err)
	}
	a.db = db
	return nil
}

// Close closes the database.
func (a *DuckDBAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Exec runs one statement. database/sql has no command tags, so the tag is
// synthesized from the statement shape.
func (a *DuckDBAdapter) Exec(ctx context.Context, stmt string) (*Result, error) {
	if a.db == nil {
		return nil, fmt.Errorf("not connected")
	}

	start := time.Now()
	rows, err := a.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, asSQLError(err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, asSQLError(err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, asSQLError(err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, asSQLError(err)
	}

	res.RowCount = int64(len(res.Rows))
	res.CommandTag = fmt.Sprintf("OK %d", res.RowCount)
	res.Duration = time.Since(start)
	return res, nil
}

// duckdbMetadataQuery mirrors the Postgres metadata query; DuckDB ships the
// same information_schema views.
const duckdbMetadataQuery = `
	SELECT
		table_schema,
		table_name,
		column_name
	FROM information_schema.columns
	WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
	ORDER BY table_schema, table_name, ordinal_position`

// TableColumns fetches the rows the schema snapshot is built from.
func (a *DuckDBAdapter) TableColumns(ctx context.Context) ([]schema.ColumnRow, error) {
	if a.db == nil {
		return nil, fmt.Errorf("not connected")
	}

	rows, err := a.db.QueryContext(ctx, duckdbMetadataQuery)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.ColumnRow
	for rows.Next() {
		var r schema.ColumnRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Validate prepares the statement without running it. DuckDB reports no
// error position, so diagnostics carry only the message.
func (a *DuckDBAdapter) Validate(ctx context.Context, stmt string) error {
	if a.db == nil {
		return fmt.Errorf("not connected")
	}

	prep, err := a.db.PrepareContext(ctx, stmt)
	if err != nil {
		return asSQLError(err)
	}
	return prep.Close()
}

// DialectName names this adapter.
func (a *DuckDBAdapter) DialectName() string { return "duckdb" }

var _ Adapter = (*DuckDBAdapter)(nil)
