// Package db provides database adapters for running statements, fetching
// schema metadata, and obtaining parser-level diagnostics without executing
// anything.
package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sqlscout/sqlscout/internal/schema"
)

// Config holds the settings for connecting to a database.
type Config struct {
	// Type selects the adapter ("postgres", "duckdb").
	Type string

	// URL is the connection string for network databases.
	URL string

	// Path is the file path for file-based databases; ":memory:" works for
	// DuckDB.
	Path string
}

// Result is the outcome of executing one statement.
type Result struct {
	// Columns in the order the database returned them.
	Columns []string

	// Rows as positional values matching Columns.
	Rows [][]any

	// RowCount is rows returned for queries, rows affected otherwise.
	RowCount int64

	// CommandTag is the database's summary of what ran ("SELECT 3", ...).
	CommandTag string

	Duration time.Duration
}

// Adapter is the query-execution capability the rest of the system depends
// on. Implementations self-register via Register.
type Adapter interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs one statement and returns its rows and command tag.
	Exec(ctx context.Context, stmt string) (*Result, error)

	// TableColumns returns every user table column, ordered by schema,
	// table, ordinal position. This is the snapshot cache's source.
	TableColumns(ctx context.Context) ([]schema.ColumnRow, error)

	// Validate obtains parser-level diagnostics for a statement without
	// executing it. A nil return means the statement parsed cleanly (or
	// produced only suppressed diagnostics); otherwise the error unwraps
	// to *SQLError when the database reported structured detail.
	Validate(ctx context.Context, stmt string) error

	// DialectName names the adapter ("postgres", "duckdb").
	DialectName() string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Adapter)
)

// Register makes an adapter factory available under a type name. Called
// from adapter init functions.
func Register(name string, factory func() Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New returns an unconnected adapter for the given type.
func New(typ string) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown adapter type %q (have %v)", typ, ListAdapters())
	}
	return factory(), nil
}

// IsRegistered reports whether an adapter type is available.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// ListAdapters returns the registered adapter type names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
