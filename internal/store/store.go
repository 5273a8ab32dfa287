// Package store provides durable persistence for telemetry counters.
package store

import (
	"context"

	"github.com/ashureev/guard-labs/internal/domain"
)

// Repository defines the interface for persisting counter values.
type Repository interface {
	// Load returns the stored value of a counter, 0 if it was never written.
	Load(ctx context.Context, key domain.CounterKey) (int64, error)

	// Add atomically adds delta to a counter, creating it if needed.
	Add(ctx context.Context, key domain.CounterKey, delta int64) error

	// Set overwrites a counter value.
	Set(ctx context.Context, key domain.CounterKey, value int64) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
