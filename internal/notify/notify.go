// Package notify delivers found-item alerts to a Telegram chat via the Bot
// API: plain-text body plus inline keyboard buttons for quick triage
// (check-blacklist, ignore, and an optional link to the author).
package notify

import (
	"context"

	"pvz-shift-monitor/internal/store"
)

// Sender is the external collaborator contract the ingestion pipeline uses
// to push an alert once a FoundItem is persisted. Returns whether delivery
// succeeded; failures are logged by the implementation and never abort the
// pipeline.
type Sender interface {
	Send(ctx context.Context, chatID int64, item store.FoundItem, itemID int64, mode string) bool
}
