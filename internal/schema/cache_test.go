package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRows = []ColumnRow{
	{Schema: "public", Table: "users", Column: "id"},
	{Schema: "public", Table: "users", Column: "email"},
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCacheReturnsFreshSnapshotWithoutIO(t *testing.T) {
	clock := newTestClock()
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		calls.Add(1)
		return sampleRows, nil
	})
	cache := NewCache(src, nil, WithClock(clock.Now))

	snap1, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	require.NotNil(t, snap1)

	// Within TTL: same snapshot, no second query.
	clock.Advance(time.Minute)
	snap2, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	assert.Same(t, snap1, snap2)
	assert.Equal(t, int32(1), calls.Load())

	// Past TTL: refresh produces a new snapshot object.
	clock.Advance(DefaultTTL)
	snap3, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	assert.NotSame(t, snap1, snap3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheForceBypassesTTL(t *testing.T) {
	clock := newTestClock()
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		calls.Add(1)
		return sampleRows, nil
	})
	cache := NewCache(src, nil, WithClock(clock.Now))

	_, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), true, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheCoalescesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		calls.Add(1)
		<-release
		return sampleRows, nil
	})
	cache := NewCache(src, nil)

	type result struct {
		snap *Snapshot
		err  error
	}
	results := make(chan result, 2)
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			started.Done()
			snap, err := cache.Get(context.Background(), false, false)
			results <- result{snap, err}
		}()
	}
	started.Wait()
	// Give both goroutines a chance to reach the cache before releasing
	// the (single) underlying query.
	time.Sleep(50 * time.Millisecond)
	close(release)

	r1 := <-results
	r2 := <-results
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Same(t, r1.snap, r2.snap)
	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one metadata query")
}

func TestCacheBackoffAfterFailure(t *testing.T) {
	clock := newTestClock()
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})
	cache := NewCache(src, nil, WithClock(clock.Now))

	// First non-interactive attempt fails and records the failure.
	snap, err := cache.Get(context.Background(), false, false)
	assert.Nil(t, snap)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Within the backoff window a background request returns absent
	// without touching the source.
	clock.Advance(10 * time.Second)
	snap, err = cache.Get(context.Background(), false, false)
	assert.Nil(t, snap)
	assert.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// An interactive request attempts regardless of backoff.
	snap, err = cache.Get(context.Background(), false, true)
	assert.Nil(t, snap)
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	// So does a forced one.
	snap, err = cache.Get(context.Background(), true, false)
	assert.Nil(t, snap)
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	// Past the backoff window, background requests try again.
	clock.Advance(DefaultBackoff)
	_, _ = cache.Get(context.Background(), false, false)
	assert.Equal(t, int32(4), calls.Load())
}

func TestCacheKeepsPreviousSnapshotOnFailure(t *testing.T) {
	clock := newTestClock()
	var fail atomic.Bool
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		if fail.Load() {
			return nil, errors.New("database went away")
		}
		return sampleRows, nil
	})
	cache := NewCache(src, nil, WithClock(clock.Now))

	snap1, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	require.NotNil(t, snap1)

	fail.Store(true)
	clock.Advance(DefaultTTL + time.Second)

	snap2, err := cache.Get(context.Background(), false, false)
	assert.Error(t, err)
	assert.Same(t, snap1, snap2, "failed refresh must return the previous snapshot")
	assert.Same(t, snap1, cache.Cached())
}

func TestCacheSeedAndClear(t *testing.T) {
	clock := newTestClock()
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]ColumnRow, error) {
		calls.Add(1)
		return sampleRows, nil
	})
	cache := NewCache(src, nil, WithClock(clock.Now))

	// A fresh seed satisfies requests without I/O.
	seed := NewSnapshot(sampleRows, clock.Now())
	cache.Seed(seed)
	snap, err := cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	assert.Same(t, seed, snap)
	assert.Equal(t, int32(0), calls.Load())

	// A stale seed still triggers a refresh.
	cache.Clear()
	assert.Nil(t, cache.Cached())
	stale := NewSnapshot(sampleRows, clock.Now().Add(-time.Hour))
	cache.Seed(stale)
	snap, err = cache.Get(context.Background(), false, false)
	require.NoError(t, err)
	assert.NotSame(t, stale, snap)
	assert.Equal(t, int32(1), calls.Load())
}
