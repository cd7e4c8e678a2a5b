package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/sqlscout/sqlscout/internal/schema"
)

func init() {
	Register("postgres", func() Adapter { return NewPostgresAdapter() })
}

// PostgresAdapter implements Adapter over database/sql with the pgx stdlib
// driver. Driver errors surface as *pgconn.PgError, so SQLSTATE codes and
// error positions survive the database/sql boundary.
type PostgresAdapter struct {
	db *sql.DB
}

// NewPostgresAdapter creates an unconnected Postgres adapter.
func NewPostgresAdapter() *PostgresAdapter {
	return &PostgresAdapter{}
}

// Connect opens a pool for cfg.URL and verifies it with a ping.
func (a *PostgresAdapter) Connect(ctx context.Context, cfg Config) error {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	a.db = db
	return nil
}

// Close releases the pool.
func (a *PostgresAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Exec runs one statement and collects its rows, row count, and wall-clock
// duration. database/sql exposes no command tags, so the tag is synthesized
// from the row count.
func (a *PostgresAdapter) Exec(ctx context.Context, stmt string) (*Result, error) {
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

// metadataQuery lists every user column ordered by schema, table, ordinal
// position. Views are included; system schemas are not.
const metadataQuery = `
	SELECT
		c.table_schema,
		c.table_name,
		c.column_name
	FROM information_schema.columns c
	WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	ORDER BY c.table_schema, c.table_name, c.ordinal_position`

// TableColumns fetches the rows the schema snapshot is built from.
func (a *PostgresAdapter) TableColumns(ctx context.Context) ([]schema.ColumnRow, error) {
	if a.db == nil {
		return nil, fmt.Errorf("not connected")
	}

	rows, err := a.db.QueryContext(ctx, metadataQuery)
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

// Validate asks the server to parse and plan stmt without executing it, by
// preparing and immediately deallocating a throwaway statement name. Both
// round-trips run on one session: PREPARE names are session-scoped. "Cannot
// infer parameter type" diagnostics are expected for extracted application
// queries and suppressed.
func (a *PostgresAdapter) Validate(ctx context.Context, stmt string) error {
	if a.db == nil {
		return fmt.Errorf("not connected")
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	name := "sqlscout_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, prepErr := conn.ExecContext(ctx, "PREPARE "+name+" AS "+stmt)
	if prepErr == nil {
		// Best effort; the connection goes back to the pool and the name is
		// unique, so a failed deallocate is harmless.
		_, _ = conn.ExecContext(ctx, "DEALLOCATE "+pgx.Identifier{name}.Sanitize())
		return nil
	}

	sqlErr := asSQLError(prepErr)
	if isSuppressedCode(sqlErr.Code) {
		return nil
	}
	// PREPARE adds a fixed prefix before the statement text; shift the
	// server's 1-based position back onto the caller's SQL.
	if sqlErr.Position > 0 {
		prefixLen := len("PREPARE " + name + " AS ")
		if sqlErr.Position > prefixLen {
			sqlErr.Position -= prefixLen
		} else {
			sqlErr.Position = 0
		}
	}
	return sqlErr
}

// DialectName names this adapter.
func (a *PostgresAdapter) DialectName() string { return "postgres" }

var _ Adapter = (*PostgresAdapter)(nil)
