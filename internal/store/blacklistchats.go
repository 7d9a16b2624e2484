package store

import (
	"context"
	"fmt"
)

// BlacklistChatEntry is a single registered chat/topic scope searched by the
// blacklist lookup.
type BlacklistChatEntry struct {
	ChatUsername string  `db:"chat_username"`
	ChatTitle    *string `db:"chat_title"`
	AddedAt      string  `db:"added_at"`
	IsActive     bool    `db:"is_active"`
	TopicID      *int64  `db:"topic_id"`
	TopicName    *string `db:"topic_name"`
}

// ListBlacklistChats returns the active scopes searched during a blacklist
// lookup, optionally restricted to a single chat.
func (s *Store) ListBlacklistChats(ctx context.Context, chatUsername string) ([]BlacklistChatEntry, error) {
	var rows []BlacklistChatEntry
	var err error
	if chatUsername == "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT * FROM blacklist_chats WHERE is_active = 1 ORDER BY chat_username, topic_id`)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT * FROM blacklist_chats WHERE is_active = 1 AND chat_username = ? ORDER BY topic_id`,
			chatUsername)
	}
	if err != nil {
		return nil, fmt.Errorf("list blacklist chats: %w", err)
	}
	return rows, nil
}

// AddBlacklistChat registers a new active scope. Re-adding an existing
// (chat_username, topic_id) pair simply reactivates it.
func (s *Store) AddBlacklistChat(ctx context.Context, e BlacklistChatEntry) error {
	if e.AddedAt == "" {
		e.AddedAt = nowUTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO blacklist_chats (chat_username, chat_title, added_at, is_active, topic_id, topic_name)
		VALUES (:chat_username, :chat_title, :added_at, 1, :topic_id, :topic_name)
		ON CONFLICT(chat_username, COALESCE(topic_id, -1)) DO UPDATE SET
			is_active = 1, chat_title = excluded.chat_title, topic_name = excluded.topic_name`, e)
	if err != nil {
		return fmt.Errorf("add blacklist chat %s: %w", e.ChatUsername, err)
	}
	return nil
}

// RemoveBlacklistChat deactivates a scope rather than deleting it, preserving
// history for audit purposes.
func (s *Store) RemoveBlacklistChat(ctx context.Context, chatUsername string, topicID *int64) error {
	var err error
	if topicID == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE blacklist_chats SET is_active = 0 WHERE chat_username = ? AND topic_id IS NULL`,
			chatUsername)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE blacklist_chats SET is_active = 0 WHERE chat_username = ? AND topic_id = ?`,
			chatUsername, *topicID)
	}
	if err != nil {
		return fmt.Errorf("remove blacklist chat %s: %w", chatUsername, err)
	}
	return nil
}

// SyncBlacklistChats reconciles the registry against a freshly observed set
// of (chat, topic) scopes discovered from the live chat's forum topics:
// entries absent from the observed set are deactivated, and new ones are
// added active.
func (s *Store) SyncBlacklistChats(ctx context.Context, chatUsername string, observed []BlacklistChatEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	observedTopics := make(map[int64]bool, len(observed))
	for _, e := range observed {
		if e.TopicID != nil {
			observedTopics[*e.TopicID] = true
		}
	}

	var existing []BlacklistChatEntry
	if err := tx.SelectContext(ctx, &existing,
		`SELECT * FROM blacklist_chats WHERE chat_username = ? AND is_active = 1`, chatUsername); err != nil {
		return fmt.Errorf("load existing scopes for %s: %w", chatUsername, err)
	}
	for _, e := range existing {
		if e.TopicID != nil && !observedTopics[*e.TopicID] {
			if _, err := tx.ExecContext(ctx,
				`UPDATE blacklist_chats SET is_active = 0 WHERE chat_username = ? AND topic_id = ?`,
				chatUsername, *e.TopicID); err != nil {
				return fmt.Errorf("deactivate stale scope: %w", err)
			}
		}
	}

	for _, e := range observed {
		if e.AddedAt == "" {
			e.AddedAt = nowUTC()
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO blacklist_chats (chat_username, chat_title, added_at, is_active, topic_id, topic_name)
			VALUES (:chat_username, :chat_title, :added_at, 1, :topic_id, :topic_name)
			ON CONFLICT(chat_username, COALESCE(topic_id, -1)) DO UPDATE SET
				is_active = 1, chat_title = excluded.chat_title, topic_name = excluded.topic_name`, e); err != nil {
			return fmt.Errorf("upsert observed scope: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync tx: %w", err)
	}
	return nil
}
