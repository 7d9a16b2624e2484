package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task is the persisted row shape of a monitoring or blacklist-search job.
type Task struct {
	TaskID               string  `db:"task_id"`
	UserID               int64   `db:"user_id"`
	Mode                 string  `db:"mode"`
	Chats                string  `db:"chats"` // JSON-encoded []string of chat specs
	Filters              string  `db:"filters"`
	NotificationChatID   *int64  `db:"notification_chat_id"`
	Status               string  `db:"status"`
	CreatedAt            string  `db:"created_at"`
	StoppedAt            *string `db:"stopped_at"`
	SessionPath          *string `db:"session_path"`
	BlacklistSessionPath *string `db:"blacklist_session_path"`
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// CreateTask inserts a new task row in "pending" status.
func (s *Store) CreateTask(ctx context.Context, t Task) error {
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.CreatedAt == "" {
		t.CreatedAt = nowUTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (task_id, user_id, mode, chats, filters, notification_chat_id,
			status, created_at, session_path, blacklist_session_path)
		VALUES (:task_id, :user_id, :mode, :chats, :filters, :notification_chat_id,
			:status, :created_at, :session_path, :blacklist_session_path)`, t)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTask loads a single task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tasks WHERE task_id = ?`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return t, nil
}

// TasksByStatus returns every task whose status matches one of the given values.
func (s *Store) TasksByStatus(ctx context.Context, statuses ...string) ([]Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query, args, err := s.sqlxInOn(`SELECT * FROM tasks WHERE status IN (?) ORDER BY created_at`, statuses)
	if err != nil {
		return nil, fmt.Errorf("build TasksByStatus query: %w", err)
	}
	var tasks []Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	return tasks, nil
}

// UpdateTaskStatus transitions a task's status, stamping stopped_at when
// leaving an active state.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	var stoppedAt any
	if status == "stopped" || status == "failed" || status == "auth_error" {
		stoppedAt = nowUTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, stopped_at = COALESCE(?, stopped_at) WHERE task_id = ?`,
		status, stoppedAt, taskID)
	if err != nil {
		return fmt.Errorf("update task status %s: %w", taskID, err)
	}
	return requireRowsAffected(res, taskID)
}

func requireRowsAffected(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
