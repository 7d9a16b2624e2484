package store

import (
	"context"
	"fmt"
	"strings"
)

// migrate creates the base schema if absent, then applies forward-only
// additive migrations. ALTER TABLE ADD COLUMN failures are swallowed
// (column already present, from a prior run) exactly as the original
// service's db_service.py does.
func (s *Store) migrate(ctx context.Context) error {
	base := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			mode TEXT NOT NULL,
			chats TEXT NOT NULL,
			filters TEXT NOT NULL,
			notification_chat_id INTEGER,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			stopped_at TEXT,
			session_path TEXT,
			blacklist_session_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS found_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			author_username TEXT,
			author_full_name TEXT,
			author_id INTEGER,
			work_date TEXT,
			price INTEGER NOT NULL,
			shk TEXT,
			location TEXT,
			message_text TEXT,
			message_link TEXT NOT NULL,
			chat_name TEXT,
			topic_id INTEGER,
			topic_name TEXT,
			city TEXT,
			message_date TEXT,
			found_at TEXT NOT NULL,
			notified INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist_cache (
			telegram_user_id INTEGER UNIQUE,
			username TEXT,
			full_name TEXT,
			phone TEXT,
			role TEXT,
			message_link TEXT,
			message_id INTEGER,
			parsed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist_chats (
			chat_username TEXT NOT NULL,
			chat_title TEXT,
			added_at TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			topic_id INTEGER,
			topic_name TEXT
		)`,
	}

	for _, stmt := range base {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create base schema: %w", err)
		}
	}

	// Additive columns from later revisions of the original schema; ignored
	// if already present.
	additive := []string{
		`ALTER TABLE found_items ADD COLUMN topic_id INTEGER`,
		`ALTER TABLE found_items ADD COLUMN topic_name TEXT`,
		`ALTER TABLE found_items ADD COLUMN city TEXT`,
		`ALTER TABLE found_items ADD COLUMN author_id INTEGER`,
	}
	for _, stmt := range additive {
		s.execIgnoreDuplicateColumn(stmt)
	}

	if err := s.ensureFoundItemsUniqueConstraint(ctx); err != nil {
		return err
	}
	if err := s.ensureBlacklistChatsUniqueConstraint(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_content_hash ON found_items(content_hash, found_at)`); err != nil {
		return fmt.Errorf("create idx_content_hash: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_found_items_task ON found_items(task_id, found_at)`); err != nil {
		return fmt.Errorf("create idx_found_items_task: %w", err)
	}

	if err := s.seedDefaultBlacklistChat(ctx); err != nil {
		return err
	}

	return nil
}

// ensureFoundItemsUniqueConstraint tightens the permalink uniqueness from a
// bare UNIQUE(message_link) (an older schema shape) to UNIQUE(task_id,
// message_link), mirroring db_service.py's table-rebuild migration: a single
// message id can legitimately be found once per task, not once globally.
func (s *Store) ensureFoundItemsUniqueConstraint(ctx context.Context) error {
	has, err := s.hasUniqueIndex(ctx, "found_items", []string{"task_id", "message_link"})
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_found_items_task_permalink ON found_items(task_id, message_link)`)
	if err != nil {
		return fmt.Errorf("create found_items unique index: %w", err)
	}
	return nil
}

// ensureBlacklistChatsUniqueConstraint enforces at most one active row per
// (chat_username, topic_id) with NULL topic_id normalized to -1, matching
// db_service.py's COALESCE(topic_id, -1) unique index.
func (s *Store) ensureBlacklistChatsUniqueConstraint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_blacklist_chats_unique
			ON blacklist_chats(chat_username, COALESCE(topic_id, -1))`)
	if err != nil {
		return fmt.Errorf("create blacklist_chats unique index: %w", err)
	}
	return nil
}

func (s *Store) hasUniqueIndex(ctx context.Context, table string, cols []string) (bool, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=? AND sql IS NOT NULL`, table); err != nil {
		return false, fmt.Errorf("list indexes for %s: %w", table, err)
	}
	want := strings.Join(cols, ",")
	for _, name := range names {
		var sqlText string
		if err := s.db.GetContext(ctx, &sqlText,
			`SELECT sql FROM sqlite_master WHERE type='index' AND name=?`, name); err != nil {
			continue
		}
		if strings.Contains(strings.ReplaceAll(sqlText, " ", ""), want) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) seedDefaultBlacklistChat(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM blacklist_chats`); err != nil {
		return fmt.Errorf("count blacklist_chats: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blacklist_chats (chat_username, chat_title, added_at, is_active) VALUES (?, ?, datetime('now'), 1)`,
		"@Blacklist_pvz", "Blacklist")
	if err != nil {
		return fmt.Errorf("seed default blacklist chat: %w", err)
	}
	return nil
}
