package commands

import (
	"context"
	"fmt"

	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/db"
)

// connectAdapter creates and connects the configured database adapter.
// The caller owns the returned adapter and must Close it.
func connectAdapter(ctx context.Context, cfg *config.Config) (db.Adapter, error) {
	if cfg.ConnTarget() == "" && cfg.Database.Adapter != "duckdb" {
		return nil, fmt.Errorf("no database configured: set database.url (or --url)")
	}

	adapter, err := db.New(cfg.Database.Adapter)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx, db.Config{
		Type: cfg.Database.Adapter,
		URL:  cfg.Database.URL,
		Path: cfg.Database.Path,
	}); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Database.Adapter, err)
	}
	return adapter, nil
}
