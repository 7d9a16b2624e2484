package store

import (
	"context"
	"fmt"
)

// Stats is the snapshot returned by the admin stats endpoint.
type Stats struct {
	TotalTasks      int `db:"total_tasks"`
	RunningTasks    int `db:"running_tasks"`
	TotalFoundItems int `db:"total_found_items"`
	TotalNotified   int `db:"total_notified"`
}

// DBStats aggregates task and found-item counts for the admin façade.
func (s *Store) DBStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st.TotalTasks, `SELECT COUNT(*) FROM tasks`); err != nil {
		return Stats{}, fmt.Errorf("count tasks: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.RunningTasks,
		`SELECT COUNT(*) FROM tasks WHERE status = 'running'`); err != nil {
		return Stats{}, fmt.Errorf("count running tasks: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.TotalFoundItems, `SELECT COUNT(*) FROM found_items`); err != nil {
		return Stats{}, fmt.Errorf("count found items: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.TotalNotified,
		`SELECT COUNT(*) FROM found_items WHERE notified = 1`); err != nil {
		return Stats{}, fmt.Errorf("count notified items: %w", err)
	}
	return st, nil
}

// BlacklistCacheStats reports the size of the historical (read-only, never
// written by this service) blacklist cache table, kept only so a future
// importer can populate it without a schema change.
func (s *Store) BlacklistCacheStats(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM blacklist_cache`); err != nil {
		return 0, fmt.Errorf("count blacklist cache: %w", err)
	}
	return count, nil
}
