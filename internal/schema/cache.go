package schema

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default cache policy.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultBackoff = 30 * time.Second
)

// Source supplies the metadata rows a snapshot is built from, ordered by
// schema, table, ordinal position. The call may block on I/O.
type Source interface {
	TableColumns(ctx context.Context) ([]ColumnRow, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]ColumnRow, error)

func (f SourceFunc) TableColumns(ctx context.Context) ([]ColumnRow, error) { return f(ctx) }

// refreshCall is a shared future for one in-flight refresh. Concurrent
// callers wait on done and read the same outcome.
type refreshCall struct {
	done chan struct{}
	snap *Snapshot
	err  error
}

// Cache owns the current Snapshot for one logical connection and refreshes
// it under a TTL and failure-backoff policy. Construct one per connection;
// there is no hidden process-wide instance.
//
// Invariants: at most one refresh is in flight at a time (concurrent
// callers coalesce onto it), a failed refresh keeps the previous snapshot,
// and the cached snapshot is only ever replaced wholesale, never mutated.
type Cache struct {
	source  Source
	ttl     time.Duration
	backoff time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	snapshot    *Snapshot
	inflight    *refreshCall
	lastFailure time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the snapshot freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithBackoff overrides the failure backoff window.
func WithBackoff(d time.Duration) Option {
	return func(c *Cache) { c.backoff = d }
}

// WithClock overrides the time source. Tests use this to step time without
// sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over the given metadata source.
func NewCache(source Source, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Cache{
		source:  source,
		ttl:     DefaultTTL,
		backoff: DefaultBackoff,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed installs a previously persisted snapshot as the starting view. Its
// RefreshedAt is respected, so a stale seed still triggers a refresh on the
// next request.
func (c *Cache) Seed(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		c.snapshot = snap
	}
}

// Clear discards the cached snapshot and failure state, e.g. when the
// connection it was built from goes away.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.lastFailure = time.Time{}
}

// Cached returns the current snapshot without any freshness check or I/O.
func (c *Cache) Cached() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Get returns a snapshot, refreshing when needed.
//
// Policy, in order: a fresh cached snapshot is returned at once; a refresh
// already in flight is joined rather than duplicated; a non-forced,
// non-interactive request with no cached snapshot inside the failure
// backoff window returns nil without touching the database (so completion
// triggered by typing cannot hammer an unreachable server); otherwise a
// refresh runs. On refresh failure the previous snapshot (possibly nil) is
// returned along with the error — interactive and forced callers surface
// it, background callers log and move on.
func (c *Cache) Get(ctx context.Context, force, interactive bool) (*Snapshot, error) {
	c.mu.Lock()

	now := c.now()
	if !force && c.snapshot != nil && now.Sub(c.snapshot.RefreshedAt) < c.ttl {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}

	// Join an in-flight refresh regardless of force: at most one refresh
	// runs per cache, and the joiner gets the same outcome.
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.snap, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !force && !interactive && c.snapshot == nil &&
		!c.lastFailure.IsZero() && now.Sub(c.lastFailure) < c.backoff {
		c.mu.Unlock()
		return nil, nil
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	c.refresh(ctx, call)
	return call.snap, call.err
}

// refresh runs the metadata query and swaps the snapshot. It executes on
// the initiating caller's goroutine; joiners wait on the call's done
// channel. There is no cancellation of a started refresh — it runs to
// completion or failure.
func (c *Cache) refresh(ctx context.Context, call *refreshCall) {
	rows, err := c.source.TableColumns(ctx)

	c.mu.Lock()
	if err != nil {
		// Keep the previous snapshot: a flaky network should degrade
		// completion, not erase it.
		c.lastFailure = c.now()
		call.snap = c.snapshot
		call.err = err
		c.logger.Warn("schema refresh failed", "error", err)
	} else {
		snap := NewSnapshot(rows, c.now())
		c.snapshot = snap
		c.lastFailure = time.Time{}
		call.snap = snap
		c.logger.Debug("schema refreshed", "tables", len(snap.Tables))
	}
	c.inflight = nil
	c.mu.Unlock()

	close(call.done)
}
