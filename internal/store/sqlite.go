package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/guard-labs/internal/domain"
	"github.com/ashureev/guard-labs/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeMaxRetries     = 3
	writeRetryBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets summary reads proceed while counter workers write.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS counters (
		metric TEXT NOT NULL,
		level INTEGER NOT NULL,
		value INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (metric, level)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored value of a counter.
func (s *SQLiteStore) Load(ctx context.Context, key domain.CounterKey) (int64, error) {
	query := `SELECT value FROM counters WHERE metric = ? AND level = ?`

	var value int64
	err := s.db.QueryRowContext(ctx, query, string(key.Metric), key.Level).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load counter %s: %w", key, err)
	}
	return value, nil
}

// Add adds delta to a counter.
func (s *SQLiteStore) Add(ctx context.Context, key domain.CounterKey, delta int64) error {
	query := `
	INSERT INTO counters (metric, level, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(metric, level) DO UPDATE SET
		value = counters.value + excluded.value,
		updated_at = excluded.updated_at`

	return s.execWithRetry(ctx, key, query, string(key.Metric), key.Level, delta, time.Now().Unix())
}

// Set overwrites a counter value.
func (s *SQLiteStore) Set(ctx context.Context, key domain.CounterKey, value int64) error {
	query := `
	INSERT INTO counters (metric, level, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(metric, level) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	return s.execWithRetry(ctx, key, query, string(key.Metric), key.Level, value, time.Now().Unix())
}

// execWithRetry runs a write with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) execWithRetry(ctx context.Context, key domain.CounterKey, query string, args ...any) error {
	var err error
	for i := 0; i < writeMaxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < writeMaxRetries-1 {
			delay := writeRetryBaseDelay * time.Duration(1<<i) // 50ms, 100ms
			slog.Debug("Counter write hit a locked database, retrying",
				"counter", key.String(),
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("write counter %s: %w", key, ctx.Err())
			}
		}
		break
	}
	return fmt.Errorf("write counter %s: %w", key, err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
