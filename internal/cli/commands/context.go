package commands

import (
	"context"
	"log/slog"

	"github.com/sqlscout/sqlscout/internal/config"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom retrieves the config from the context, or a zero value when
// the root command never ran (direct command construction in tests).
func ConfigFrom(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Database: config.DatabaseConfig{
			Adapter: config.DefaultAdapter,
			Schema:  config.DefaultSchemaName,
		},
		Cache: config.CacheConfig{
			TTL:     config.DefaultCacheTTL,
			Backoff: config.DefaultCacheBackoff,
		},
		Lint:      config.LintConfig{Enabled: true, Debounce: config.DefaultLintDebounce},
		StatePath: config.DefaultStateFile,
		Output:    config.DefaultOutput,
	}
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger from the context, falling back to a
// discarding logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
