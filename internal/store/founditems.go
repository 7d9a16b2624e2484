package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FoundItem is a single classified advertisement matched by a task.
type FoundItem struct {
	ID              int64   `db:"id"`
	TaskID          string  `db:"task_id"`
	Mode            string  `db:"mode"`
	AuthorUsername  *string `db:"author_username"`
	AuthorFullName  *string `db:"author_full_name"`
	AuthorID        *int64  `db:"author_id"`
	WorkDate        *string `db:"work_date"`
	Price           int     `db:"price"`
	Shk             *string `db:"shk"`
	Location        *string `db:"location"`
	MessageText     *string `db:"message_text"`
	MessageLink     string  `db:"message_link"`
	ChatName        *string `db:"chat_name"`
	TopicID         *int64  `db:"topic_id"`
	TopicName       *string `db:"topic_name"`
	City            *string `db:"city"`
	MessageDate     *string `db:"message_date"`
	FoundAt         string  `db:"found_at"`
	Notified        bool    `db:"notified"`
	ContentHash     *string `db:"content_hash"`
}

// CheckContentDuplicate reports whether a row with the same content hash,
// task, and work date already exists within the trailing window (spec
// default: 24h). work_date is part of the identity here, not incidental:
// the same price/location/text posted for a different shift date is a
// fresh posting, not a repost, per original_source/deduplicator.go.
func (s *Store) CheckContentDuplicate(ctx context.Context, taskID, contentHash string, workDate *string, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339)
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM found_items
		WHERE task_id = ? AND content_hash = ? AND work_date IS ? AND found_at >= ?`,
		taskID, contentHash, workDate, cutoff)
	if err != nil {
		return false, fmt.Errorf("check content duplicate: %w", err)
	}
	return count > 0, nil
}

// CheckAuthorDuplicate reports whether the same author already has a row for
// the same task/work-date/price within the trailing window — a cross-post
// suppression check, independent of exact message text.
func (s *Store) CheckAuthorDuplicate(ctx context.Context, taskID, author, workDate string, price *int, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339)
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM found_items
		WHERE task_id = ?
		  AND (author_username = ? OR author_full_name = ?)
		  AND work_date = ?
		  AND price = ?
		  AND found_at >= ?`,
		taskID, author, author, workDate, derefInt(price), cutoff)
	if err != nil {
		return false, fmt.Errorf("check author duplicate: %w", err)
	}
	return count > 0, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// AddFoundItem performs the dedup-then-insert step atomically with respect to
// other writers: it re-checks the content hash under the store's mutex
// (sqlite's own locking only serializes at the statement level, not across
// the check-then-insert pair) and inserts only if no duplicate is found.
// Returns the new row id and true when inserted; (0, false, nil) when
// rejected as a duplicate by either the content-hash check or the
// (task_id, message_link) unique constraint.
func (s *Store) AddFoundItem(ctx context.Context, item FoundItem, dedupWindow time.Duration) (id int64, inserted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.FoundAt == "" {
		item.FoundAt = nowUTC()
	}
	if item.ContentHash != nil {
		dup, err := s.CheckContentDuplicate(ctx, item.TaskID, *item.ContentHash, item.WorkDate, dedupWindow)
		if err != nil {
			return 0, false, err
		}
		if dup {
			return 0, false, nil
		}
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO found_items (task_id, mode, author_username, author_full_name, author_id,
			work_date, price, shk, location, message_text, message_link, chat_name,
			topic_id, topic_name, city, message_date, found_at, notified, content_hash)
		VALUES (:task_id, :mode, :author_username, :author_full_name, :author_id,
			:work_date, :price, :shk, :location, :message_text, :message_link, :chat_name,
			:topic_id, :topic_name, :city, :message_date, :found_at, :notified, :content_hash)
		ON CONFLICT(task_id, message_link) DO NOTHING`, item)
	if err != nil {
		return 0, false, fmt.Errorf("insert found item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}
	return newID, true, nil
}

// GetFoundItem loads a single found item by id.
func (s *Store) GetFoundItem(ctx context.Context, itemID int64) (FoundItem, error) {
	var item FoundItem
	err := s.db.GetContext(ctx, &item, `SELECT * FROM found_items WHERE id = ?`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return FoundItem{}, ErrNotFound
	}
	if err != nil {
		return FoundItem{}, fmt.Errorf("get found item %d: %w", itemID, err)
	}
	return item, nil
}

// ListFoundItems returns items for a task, most recent first, capped at limit.
func (s *Store) ListFoundItems(ctx context.Context, taskID string, limit int) ([]FoundItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []FoundItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM found_items WHERE task_id = ? ORDER BY found_at DESC LIMIT ?`,
		taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list found items: %w", err)
	}
	return items, nil
}

// MarkNotified flips the notified flag once a notifier has successfully
// delivered the item.
func (s *Store) MarkNotified(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE found_items SET notified = 1 WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("mark notified %d: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountItems returns the total number of found items for a task.
func (s *Store) CountItems(ctx context.Context, taskID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM found_items WHERE task_id = ?`, taskID); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// CountNotified returns the number of found items already delivered to a
// notification target for a task.
func (s *Store) CountNotified(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM found_items WHERE task_id = ? AND notified = 1`, taskID)
	if err != nil {
		return 0, fmt.Errorf("count notified: %w", err)
	}
	return count, nil
}

// CleanupOldItems deletes found items older than the given retention window
// (spec default: 30 days) and returns the number of rows removed.
func (s *Store) CleanupOldItems(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM found_items WHERE found_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
