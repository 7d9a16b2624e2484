// Package cleanup runs the background retention sweep that drops found
// items older than the configured window.
package cleanup

import (
	"context"
	"time"

	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/store"
)

const (
	sweepInterval = 24 * time.Hour
	retryInterval = time.Hour
)

// Scheduler periodically purges stale found_items rows.
type Scheduler struct {
	store         *store.Store
	retentionDays int
}

func New(st *store.Store, retentionDays int) *Scheduler {
	return &Scheduler{store: st, retentionDays: retentionDays}
}

// Run blocks until ctx is cancelled, sweeping once a day and retrying
// sooner after a failed sweep instead of waiting out the full interval.
func (s *Scheduler) Run(ctx context.Context) {
	wait := sweepInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if err := s.sweep(ctx); err != nil {
				logger.Warnf("cleanup: sweep failed, retrying in %s: %v", retryInterval, err)
				wait = retryInterval
				continue
			}
			wait = sweepInterval
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) error {
	n, err := s.store.CleanupOldItems(ctx, s.retentionDays)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Infof("cleanup: removed %d found items older than %d days", n, s.retentionDays)
	}
	return nil
}
