// Package counter provides named telemetry counters, each updated by its own
// serial worker.
package counter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/guard-labs/internal/domain"
)

const (
	defaultInboxSize      = 256
	defaultBackendTimeout = 5 * time.Second
)

// ErrClosed is returned by Drain after Close.
var ErrClosed = errors.New("counter registry closed")

// Backend persists counter values.
type Backend interface {
	// Load returns the stored value, 0 if the counter was never written.
	Load(ctx context.Context, key domain.CounterKey) (int64, error)
	// Add adds delta to the stored value, creating it if needed.
	Add(ctx context.Context, key domain.CounterKey, delta int64) error
	// Set overwrites the stored value.
	Set(ctx context.Context, key domain.CounterKey, value int64) error
}

type opKind int

const (
	opIncrement opKind = iota
	opReset
	opBarrier
	opFlush
)

type message struct {
	op   opKind
	done chan struct{}
}

// actor is the only writer of its counter. Reads go through value and never
// wait for queued writes. Increments that find the inbox full are added to
// overflow and applied before the next message.
type actor struct {
	key      domain.CounterKey
	inbox    chan message
	ready    chan struct{}
	value    atomic.Int64
	overflow atomic.Int64
}

// Registry owns one actor per counter key, created on first access.
// Increments for one key are applied in order; different keys proceed in
// parallel and reads never block writers.
type Registry struct {
	backend Backend
	logger  *slog.Logger
	timeout time.Duration

	actors sync.Map // domain.CounterKey -> *actor

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for backend failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBackendTimeout bounds every backend call.
func WithBackendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRegistry creates a registry persisting through backend.
// A nil backend keeps counters in memory only.
func NewRegistry(backend Backend, opts ...Option) *Registry {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	r := &Registry{
		backend: backend,
		logger:  slog.Default(),
		timeout: defaultBackendTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// actorFor returns the actor for key, starting it on first use.
// Callers must hold r.mu for reading.
func (r *Registry) actorFor(key domain.CounterKey) *actor {
	if v, ok := r.actors.Load(key); ok {
		return v.(*actor)
	}
	fresh := &actor{
		key:   key,
		inbox: make(chan message, defaultInboxSize),
		ready: make(chan struct{}),
	}
	v, loaded := r.actors.LoadOrStore(key, fresh)
	if !loaded {
		r.wg.Add(1)
		go r.run(fresh)
	}
	return v.(*actor)
}

func (r *Registry) run(a *actor) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	v, err := r.backend.Load(ctx, a.key)
	cancel()
	if err != nil {
		r.logger.Warn("Counter load failed, starting from zero", "counter", a.key.String(), "error", err)
		v = 0
	}
	a.value.Store(v)
	close(a.ready)

	for msg := range a.inbox {
		r.flushOverflow(a)
		switch msg.op {
		case opIncrement:
			r.apply(a.key, "increment", func(ctx context.Context) error {
				return r.backend.Add(ctx, a.key, 1)
			})
			a.value.Add(1)
		case opReset:
			r.apply(a.key, "reset", func(ctx context.Context) error {
				return r.backend.Set(ctx, a.key, 0)
			})
			a.value.Store(0)
		}
		if msg.done != nil {
			close(msg.done)
		}
	}
	r.flushOverflow(a)
}

func (r *Registry) flushOverflow(a *actor) {
	n := a.overflow.Swap(0)
	if n == 0 {
		return
	}
	r.apply(a.key, "increment", func(ctx context.Context) error {
		return r.backend.Add(ctx, a.key, n)
	})
	a.value.Add(n)
}

// apply runs a backend write. Failures lose durability for this update only
// and are logged, never surfaced.
func (r *Registry) apply(key domain.CounterKey, op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.logger.Warn("Counter backend write failed", "counter", key.String(), "op", op, "error", err)
	}
}

// send delivers msg to key's actor. With wait unset it never blocks: an
// increment that finds the inbox full is parked in the actor's overflow.
func (r *Registry) send(key domain.CounterKey, msg message, wait bool) {
	if err := key.Validate(); err != nil {
		r.logger.Warn("Dropping counter update", "counter", key.String(), "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("Dropping counter update after close", "counter", key.String())
		return
	}
	a := r.actorFor(key)
	if wait {
		a.inbox <- msg
		return
	}

	select {
	case a.inbox <- msg:
		return
	default:
	}
	a.overflow.Add(1)
	// If the nudge does not fit either, a queued message is still ahead of
	// the actor and it flushes overflow before handling it.
	select {
	case a.inbox <- message{op: opFlush}:
	default:
	}
	r.logger.Debug("Counter inbox full, increment parked in overflow", "counter", key.String())
}

// Increment records a +1 for key and returns without waiting for it to
// apply. It never blocks, even when the backend is slow.
func (r *Registry) Increment(key domain.CounterKey) {
	r.send(key, message{op: opIncrement}, false)
}

// Reset queues a reset of key to zero. It blocks while the key's inbox is full.
func (r *Registry) Reset(key domain.CounterKey) {
	r.send(key, message{op: opReset}, true)
}

// Get returns the current value of key, 0 for unknown keys or when ctx ends
// before the counter has loaded.
func (r *Registry) Get(ctx context.Context, key domain.CounterKey) int {
	if err := key.Validate(); err != nil {
		return 0
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		if v, ok := r.actors.Load(key); ok {
			return int(v.(*actor).value.Load())
		}
		return 0
	}
	a := r.actorFor(key)
	r.mu.RUnlock()

	// A loaded counter is always readable, even under a cancelled ctx.
	select {
	case <-a.ready:
		return int(a.value.Load())
	default:
	}
	select {
	case <-a.ready:
		return int(a.value.Load())
	case <-ctx.Done():
		return 0
	}
}

// Drain waits until every update queued before the call has been applied.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	var pending []chan struct{}
	r.actors.Range(func(_, v any) bool {
		done := make(chan struct{})
		v.(*actor).inbox <- message{op: opBarrier, done: done}
		pending = append(pending, done)
		return true
	})
	r.mu.RUnlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close applies all queued updates and stops every actor.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.actors.Range(func(_, v any) bool {
		close(v.(*actor).inbox)
		return true
	})
	r.mu.Unlock()

	r.wg.Wait()
}
