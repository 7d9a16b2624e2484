package cleanup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pvz-shift-monitor/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSweepRemovesOldItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := store.Task{TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}"}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	old := store.FoundItem{
		TaskID:      "t1",
		MessageLink: "https://t.me/chat/1",
		FoundAt:     time.Now().AddDate(0, 0, -40).UTC().Format(time.RFC3339),
	}
	if _, _, err := s.AddFoundItem(ctx, old, time.Hour); err != nil {
		t.Fatalf("AddFoundItem() error = %v", err)
	}

	sched := New(s, 30)
	if err := sched.sweep(ctx); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}

	items, err := s.ListFoundItems(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("ListFoundItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected sweep to remove the stale item, got %d remaining", len(items))
	}
}
