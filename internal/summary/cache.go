// Package summary memoizes the aggregated counter view.
package summary

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ashureev/guard-labs/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a computed summary is served unchanged.
const DefaultTTL = 5 * time.Minute

// sweepTimeout bounds a refresh independently of the caller that triggered it.
const sweepTimeout = 10 * time.Second

// CounterReader reads a single counter. Failures read as zero.
type CounterReader interface {
	Get(ctx context.Context, key domain.CounterKey) int
}

type snapshot struct {
	summary   domain.Summary
	createdAt time.Time
}

// Cache serves one cached summary. Concurrent misses may each sweep the
// counters; the last sweep to finish wins the slot.
type Cache struct {
	counters  CounterReader
	ttl       time.Duration
	now       func() time.Time
	onRefresh func(time.Duration)

	slot atomic.Pointer[snapshot]
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRefreshHook registers fn to run after every sweep with its duration.
func WithRefreshHook(fn func(time.Duration)) Option {
	return func(c *Cache) {
		c.onRefresh = fn
	}
}

// New creates a cache over counters. A non-positive ttl selects DefaultTTL.
func New(counters CounterReader, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		counters: counters,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached summary while it is younger than the TTL, otherwise
// sweeps all counters and caches the result.
func (c *Cache) Get(ctx context.Context) domain.Summary {
	now := c.now()
	if snap := c.slot.Load(); snap != nil && now.Sub(snap.createdAt) < c.ttl {
		return clone(snap.summary)
	}

	// The slot is shared, so a caller that goes away must not cut the sweep
	// short and leave zeros behind for everyone else.
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
	defer cancel()
	fresh := c.sweep(sweepCtx)
	if sweepCtx.Err() != nil {
		return fresh
	}
	c.slot.Store(&snapshot{summary: fresh, createdAt: now})
	if c.onRefresh != nil {
		c.onRefresh(c.now().Sub(now))
	}
	return clone(fresh)
}

// sweep reads every counter concurrently.
func (c *Cache) sweep(ctx context.Context) domain.Summary {
	values := map[domain.Metric][]int{}
	for _, m := range domain.Metrics {
		values[m] = make([]int, domain.LevelCount)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range domain.Metrics {
		out := values[m]
		for i := range out {
			key := domain.CounterKey{Metric: m, Level: i + 1}
			g.Go(func() error {
				out[i] = c.counters.Get(gctx, key)
				return nil
			})
		}
	}
	// Reads never fail; a counter that could not be read is already zero.
	_ = g.Wait()

	return domain.Summary{
		Attempts:  values[domain.MetricAttempts],
		Successes: values[domain.MetricSuccesses],
	}
}

// Invalidate drops the cached summary.
func (c *Cache) Invalidate() {
	c.slot.Store(nil)
}

func clone(s domain.Summary) domain.Summary {
	return domain.Summary{
		Attempts:  slices.Clone(s.Attempts),
		Successes: slices.Clone(s.Successes),
	}
}
