package supervisor

import (
	"testing"
	"time"
)

func TestCreateGetUpdate(t *testing.T) {
	s := New()
	s.Create("t1", "employer")

	e, ok := s.Get("t1")
	if !ok || e.Status != StatusPending {
		t.Fatalf("Get() = %+v, ok=%v, want pending", e, ok)
	}

	s.UpdateStatus("t1", StatusRunning)
	s.UpdateStats("t1", 5, 2, 1)

	e, _ = s.Get("t1")
	if e.Status != StatusRunning {
		t.Errorf("Status = %q, want running", e.Status)
	}
	if e.Stats.MessagesScanned != 5 || e.Stats.ItemsFound != 2 || e.Stats.NotificationsSent != 1 {
		t.Errorf("Stats = %+v, want {5 2 1 ...}", e.Stats)
	}
}

func TestStopCancelsRuntime(t *testing.T) {
	s := New()
	s.Create("t1", "worker")

	cancelled := false
	s.AttachRuntime("t1", CancelHandle(func() { cancelled = true }))

	if !s.Stop("t1") {
		t.Fatal("Stop() = false, want true")
	}
	if !cancelled {
		t.Error("expected runtime handle to be cancelled")
	}
	e, _ := s.Get("t1")
	if e.Status != StatusStopped {
		t.Errorf("Status = %q, want stopped", e.Status)
	}
}

func TestStopUnknownTask(t *testing.T) {
	s := New()
	if s.Stop("missing") {
		t.Error("Stop() on unknown task = true, want false")
	}
}

func TestCleanupOldTasksRemovesOnlyTerminalAndStale(t *testing.T) {
	s := New()
	s.Create("old-stopped", "worker")
	s.UpdateStatus("old-stopped", StatusStopped)
	s.tasks["old-stopped"].lastUpdate.Store(time.Now().UTC().Add(-48 * time.Hour).UnixNano())

	s.Create("recent-stopped", "worker")
	s.UpdateStatus("recent-stopped", StatusStopped)

	s.Create("running", "worker")
	s.UpdateStatus("running", StatusRunning)
	s.tasks["running"].lastUpdate.Store(time.Now().UTC().Add(-48 * time.Hour).UnixNano())

	removed := s.CleanupOldTasks(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("CleanupOldTasks() removed = %d, want 1", removed)
	}
	if _, ok := s.Get("old-stopped"); ok {
		t.Error("old-stopped should have been removed")
	}
	if _, ok := s.Get("recent-stopped"); !ok {
		t.Error("recent-stopped should survive (not stale)")
	}
	if _, ok := s.Get("running"); !ok {
		t.Error("running should survive (not terminal)")
	}
}
