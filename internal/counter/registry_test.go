package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/guard-labs/internal/domain"
)

var (
	attempts1  = domain.CounterKey{Metric: domain.MetricAttempts, Level: 1}
	successes1 = domain.CounterKey{Metric: domain.MetricSuccesses, Level: 1}
)

func drain(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
}

func TestGetDefaultsToZero(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	defer r.Close()

	if got := r.Get(context.Background(), attempts1); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := r.Get(context.Background(), domain.CounterKey{Metric: "bogus", Level: 1}); got != 0 {
		t.Errorf("expected 0 for unknown metric, got %d", got)
	}
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	r := NewRegistry(backend)
	defer r.Close()

	const workers, perWorker = 20, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				r.Increment(attempts1)
				if j%2 == 0 {
					r.Increment(successes1)
				}
			}
		}()
	}
	wg.Wait()
	drain(t, r)

	if got := r.Get(context.Background(), attempts1); got != workers*perWorker {
		t.Errorf("attempts: expected %d, got %d", workers*perWorker, got)
	}
	if got := r.Get(context.Background(), successes1); got != workers*perWorker/2 {
		t.Errorf("successes: expected %d, got %d", workers*perWorker/2, got)
	}
	if v, _ := backend.Load(context.Background(), attempts1); v != workers*perWorker {
		t.Errorf("backend attempts: expected %d, got %d", workers*perWorker, v)
	}
}

func TestResetZeroesCounter(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.Increment(attempts1)
	}
	r.Reset(attempts1)
	r.Increment(attempts1)
	drain(t, r)

	if got := r.Get(context.Background(), attempts1); got != 1 {
		t.Errorf("expected 1 after reset and increment, got %d", got)
	}
}

func TestRegistryLoadsPersistedValue(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	if err := backend.Set(context.Background(), successes1, 41); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	r := NewRegistry(backend)
	defer r.Close()
	r.Increment(successes1)
	drain(t, r)

	if got := r.Get(context.Background(), successes1); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

type failingBackend struct{}

func (failingBackend) Load(context.Context, domain.CounterKey) (int64, error) {
	return 0, errors.New("load failed")
}

func (failingBackend) Add(context.Context, domain.CounterKey, int64) error {
	return errors.New("add failed")
}

func (failingBackend) Set(context.Context, domain.CounterKey, int64) error {
	return errors.New("set failed")
}

func TestBackendFailuresAreNotSurfaced(t *testing.T) {
	t.Parallel()

	r := NewRegistry(failingBackend{})
	defer r.Close()

	r.Increment(attempts1)
	r.Increment(attempts1)
	drain(t, r)

	if got := r.Get(context.Background(), attempts1); got != 2 {
		t.Errorf("expected in-process value 2 despite backend failures, got %d", got)
	}
}

func TestInvalidKeysAreDropped(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	defer r.Close()

	r.Increment(domain.CounterKey{Metric: domain.MetricAttempts, Level: 11})
	drain(t, r)

	count := 0
	r.actors.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 0 {
		t.Errorf("expected no actors for invalid keys, got %d", count)
	}
}

func TestCloseAppliesQueuedUpdates(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	r := NewRegistry(backend)
	for i := 0; i < 100; i++ {
		r.Increment(attempts1)
	}
	r.Close()

	if v, _ := backend.Load(context.Background(), attempts1); v != 100 {
		t.Errorf("expected 100 persisted after Close, got %d", v)
	}
	if err := r.Drain(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	r.Increment(attempts1)
	if got := r.Get(context.Background(), attempts1); got != 100 {
		t.Errorf("expected increments after close to be dropped, got %d", got)
	}
}

// gatedBackend holds every write until release is closed.
type gatedBackend struct {
	*MemoryBackend
	release chan struct{}
}

func (g *gatedBackend) Add(ctx context.Context, key domain.CounterKey, delta int64) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.MemoryBackend.Add(ctx, key, delta)
}

func TestIncrementDoesNotBlockOnSlowBackend(t *testing.T) {
	t.Parallel()

	backend := &gatedBackend{MemoryBackend: NewMemoryBackend(), release: make(chan struct{})}
	r := NewRegistry(backend)
	defer r.Close()

	const n = 4 * defaultInboxSize
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			r.Increment(attempts1)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		close(backend.release)
		t.Fatal("Increment blocked while the backend was stalled")
	}

	close(backend.release)
	drain(t, r)

	if got := r.Get(context.Background(), attempts1); got != n {
		t.Errorf("expected %d, got %d", n, got)
	}
	if v, _ := backend.Load(context.Background(), attempts1); v != n {
		t.Errorf("backend: expected %d, got %d", n, v)
	}
}

func TestGetWithCancelledContextReadsLoadedValue(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	defer r.Close()
	for i := 0; i < 5; i++ {
		r.Increment(attempts1)
	}
	drain(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 100; i++ {
		if got := r.Get(ctx, attempts1); got != 5 {
			t.Fatalf("read %d: expected 5 under cancelled context, got %d", i, got)
		}
	}
}
