// Package store implements the durable relational state of the monitoring
// service: tasks, found items, the blacklist chat registry, and the
// historical (read-only) blacklist cache table. It owns schema migrations,
// the two dedup queries used by the ingestion pipeline, and TTL cleanup.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go sqlite driver, registered here

	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/infra/storage"
)

// Store wraps a single sqlite-backed *sqlx.DB limited to one open
// connection, so reads and writes are serialized; busy_timeout covers
// contention from other processes on the same file.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex // serializes the dedup-check-then-insert logical step
}

// Open creates the database file (if needed), connects, and applies all
// pending migrations. Safe to call once at process startup.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; sqlite serializes anyway

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) execIgnoreDuplicateColumn(query string) {
	if _, err := s.db.Exec(query); err != nil {
		// Forward-only additive migrations: "duplicate column" / "already exists"
		// on ALTER TABLE means a previous run already applied this step.
		logger.Debugf("store: migration step skipped (already applied): %v", err)
	}
}
