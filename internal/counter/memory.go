package counter

import (
	"context"
	"sync"

	"github.com/ashureev/guard-labs/internal/domain"
)

// MemoryBackend keeps counters in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[domain.CounterKey]int64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[domain.CounterKey]int64)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, key domain.CounterKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

// Add implements Backend.
func (m *MemoryBackend) Add(_ context.Context, key domain.CounterKey, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] += delta
	return nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key domain.CounterKey, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Ping implements the health check contract of durable backends.
func (m *MemoryBackend) Ping(context.Context) error { return nil }
