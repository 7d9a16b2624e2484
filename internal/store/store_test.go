package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := Task{TaskID: "t1", UserID: 42, Mode: "employer", Chats: `["@chat1"]`, Filters: "{}"}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.UserID != 42 {
		t.Errorf("UserID = %d, want 42", got.UserID)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTask(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("GetTask() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTaskStatusStampsStoppedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	if err := s.UpdateTaskStatus(ctx, "t1", "running"); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	got, _ := s.GetTask(ctx, "t1")
	if got.Status != "running" || got.StoppedAt != nil {
		t.Errorf("got status=%q stoppedAt=%v, want running/nil", got.Status, got.StoppedAt)
	}

	if err := s.UpdateTaskStatus(ctx, "t1", "stopped"); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	got, _ = s.GetTask(ctx, "t1")
	if got.Status != "stopped" || got.StoppedAt == nil {
		t.Errorf("got status=%q stoppedAt=%v, want stopped/non-nil", got.Status, got.StoppedAt)
	}
}

func TestTasksByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "a", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}", Status: "running"})
	_ = s.CreateTask(ctx, Task{TaskID: "b", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}", Status: "stopped"})
	_ = s.CreateTask(ctx, Task{TaskID: "c", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}", Status: "running"})

	got, err := s.TasksByStatus(ctx, "running")
	if err != nil {
		t.Fatalf("TasksByStatus() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(got) = %d, want 2", len(got))
	}
}

func TestAddFoundItemRejectsContentDuplicateWithinWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	hash := "abc123"
	item1 := FoundItem{TaskID: "t1", Mode: "employer", Price: 2500, MessageLink: "https://t.me/c/1/1", ContentHash: &hash}
	_, inserted, err := s.AddFoundItem(ctx, item1, 24*time.Hour)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	item2 := FoundItem{TaskID: "t1", Mode: "employer", Price: 2500, MessageLink: "https://t.me/c/1/2", ContentHash: &hash}
	_, inserted, err = s.AddFoundItem(ctx, item2, 24*time.Hour)
	if err != nil {
		t.Fatalf("second insert error = %v", err)
	}
	if inserted {
		t.Error("expected second insert with same content hash to be rejected as duplicate")
	}

	count, _ := s.CountItems(ctx, "t1")
	if count != 1 {
		t.Errorf("CountItems() = %d, want 1", count)
	}
}

func TestAddFoundItemSameHashDifferentWorkDateBothInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	hash := "abc123"
	date1, date2 := "2026-02-01", "2026-02-02"
	item1 := FoundItem{
		TaskID: "t1", Mode: "employer", Price: 2500, WorkDate: &date1,
		MessageLink: "https://t.me/c/1/1", ContentHash: &hash,
	}
	_, inserted, err := s.AddFoundItem(ctx, item1, 24*time.Hour)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	item2 := FoundItem{
		TaskID: "t1", Mode: "employer", Price: 2500, WorkDate: &date2,
		MessageLink: "https://t.me/c/1/2", ContentHash: &hash,
	}
	_, inserted, err = s.AddFoundItem(ctx, item2, 24*time.Hour)
	if err != nil {
		t.Fatalf("second insert error = %v", err)
	}
	if !inserted {
		t.Error("expected same content hash with a different work_date to insert, not be rejected as duplicate")
	}

	count, _ := s.CountItems(ctx, "t1")
	if count != 2 {
		t.Errorf("CountItems() = %d, want 2", count)
	}
}

func TestAddFoundItemSamePermalinkIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	h1, h2 := "h1", "h2"
	item := FoundItem{TaskID: "t1", Mode: "employer", Price: 2500, MessageLink: "https://t.me/c/1/1", ContentHash: &h1}
	if _, _, err := s.AddFoundItem(ctx, item, 24*time.Hour); err != nil {
		t.Fatalf("first insert error = %v", err)
	}

	item.ContentHash = &h2 // different content, same permalink: must not duplicate the row
	if _, _, err := s.AddFoundItem(ctx, item, 24*time.Hour); err != nil {
		t.Fatalf("second insert error = %v", err)
	}

	count, _ := s.CountItems(ctx, "t1")
	if count != 1 {
		t.Errorf("CountItems() = %d, want 1 (unique on task_id, message_link)", count)
	}
}

func TestMarkNotifiedAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	hash := "h"
	item := FoundItem{TaskID: "t1", Mode: "employer", Price: 2500, MessageLink: "https://t.me/c/1/1", ContentHash: &hash}
	if _, _, err := s.AddFoundItem(ctx, item, 24*time.Hour); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	items, err := s.ListFoundItems(ctx, "t1", 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListFoundItems() = %v, err = %v", items, err)
	}

	if err := s.MarkNotified(ctx, items[0].ID); err != nil {
		t.Fatalf("MarkNotified() error = %v", err)
	}

	notified, err := s.CountNotified(ctx, "t1")
	if err != nil || notified != 1 {
		t.Errorf("CountNotified() = %d, err = %v, want 1", notified, err)
	}
}

func TestCleanupOldItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"})

	old := time.Now().UTC().Add(-40 * 24 * time.Hour).Format(time.RFC3339)
	hash := "h"
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO found_items (task_id, mode, price, message_link, found_at, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)`, "t1", "employer", 1000, "https://t.me/c/1/9", old, hash)
	if err != nil {
		t.Fatalf("seed old row: %v", err)
	}

	n, err := s.CleanupOldItems(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldItems() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupOldItems() removed %d rows, want 1", n)
	}
}

func TestBlacklistChatLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddBlacklistChat(ctx, BlacklistChatEntry{ChatUsername: "@foo"}); err != nil {
		t.Fatalf("AddBlacklistChat() error = %v", err)
	}
	chats, err := s.ListBlacklistChats(ctx, "")
	if err != nil {
		t.Fatalf("ListBlacklistChats() error = %v", err)
	}
	// default seeded chat + the one we just added
	found := false
	for _, c := range chats {
		if c.ChatUsername == "@foo" {
			found = true
		}
	}
	if !found {
		t.Error("expected @foo to be present among active blacklist chats")
	}

	if err := s.RemoveBlacklistChat(ctx, "@foo", nil); err != nil {
		t.Fatalf("RemoveBlacklistChat() error = %v", err)
	}
	chats, _ = s.ListBlacklistChats(ctx, "@foo")
	if len(chats) != 0 {
		t.Errorf("expected @foo to be deactivated, got %d active rows", len(chats))
	}
}

func TestDBStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateTask(ctx, Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}", Status: "running"})

	st, err := s.DBStats(ctx)
	if err != nil {
		t.Fatalf("DBStats() error = %v", err)
	}
	if st.TotalTasks != 1 || st.RunningTasks != 1 {
		t.Errorf("DBStats() = %+v, want TotalTasks=1 RunningTasks=1", st)
	}
}
