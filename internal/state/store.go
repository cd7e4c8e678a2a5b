// Package state persists schema snapshots between sessions so completion
// works immediately on startup, before the first live refresh lands.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/sqlscout/sqlscout/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates an unopened store.
func NewStore() *Store {
	return &Store{}
}

// Open opens (creating if needed) the store at path. Use ":memory:" for an
// in-memory store. Parent directories are created for file paths.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping state database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply state schema: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ConnKey derives a stable key for a connection so snapshots from different
// databases never mix. The raw connection string (which may hold
// credentials) is hashed, not stored.
func ConnKey(adapterType, target string) string {
	sum := sha256.Sum256([]byte(adapterType + "\x00" + target))
	return adapterType + ":" + hex.EncodeToString(sum[:8])
}

// SaveSnapshot replaces the persisted snapshot for a connection.
func (s *Store) SaveSnapshot(ctx context.Context, connKey string, snap *schema.Snapshot) error {
	if s.db == nil {
		return fmt.Errorf("store not open")
	}
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_columns WHERE conn_key = ?`, connKey); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_meta (conn_key, refreshed_at, saved_at)
		VALUES (?, ?, ?)
	`, connKey, snap.RefreshedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save snapshot meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_columns
		(conn_key, row_index, table_schema, table_name, column_name)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	idx := 0
	for _, table := range snap.Tables {
		for _, col := range table.Columns {
			if _, err := stmt.ExecContext(ctx, connKey, idx, table.Schema, table.Name, col); err != nil {
				return fmt.Errorf("insert column %s.%s.%s: %w", table.Schema, table.Name, col, err)
			}
			idx++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot for a connection, or nil when
// none exists. The snapshot keeps its original refresh time, so a stale
// persisted snapshot still refreshes on first use.
func (s *Store) LoadSnapshot(ctx context.Context, connKey string) (*schema.Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not open")
	}

	var refreshedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT refreshed_at FROM snapshot_meta WHERE conn_key = ?`, connKey).
		Scan(&refreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, refreshedAt)
	if err != nil {
		return nil, fmt.Errorf("parse refreshed_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_schema, table_name, column_name
		FROM snapshot_columns
		WHERE conn_key = ?
		ORDER BY row_index
	`, connKey)
	if err != nil {
		return nil, fmt.Errorf("load snapshot columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []schema.ColumnRow
	for rows.Next() {
		var r schema.ColumnRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column); err != nil {
			return nil, fmt.Errorf("scan snapshot column: %w", err)
		}
		cols = append(cols, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot columns: %w", err)
	}

	return schema.NewSnapshot(cols, ts), nil
}

// DeleteSnapshot removes the persisted snapshot for a connection.
func (s *Store) DeleteSnapshot(ctx context.Context, connKey string) error {
	if s.db == nil {
		return fmt.Errorf("store not open")
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshot_columns WHERE conn_key = ?`, connKey); err != nil {
		return fmt.Errorf("delete snapshot columns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshot_meta WHERE conn_key = ?`, connKey); err != nil {
		return fmt.Errorf("delete snapshot meta: %w", err)
	}
	return nil
}
