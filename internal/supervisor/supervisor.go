// Package supervisor is the process-wide registry of running monitoring and
// blacklist-search tasks: status, cancellation, live stats, and periodic
// cleanup of finished entries.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Status mirrors the task.status column values used by the Store.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
	StatusAuthError Status = "auth_error"
)

// Stats are the live counters surfaced by the status endpoint.
type Stats struct {
	MessagesScanned   int64
	ItemsFound        int64
	NotificationsSent int64
	LastUpdate        time.Time
}

// RuntimeHandle is whatever a running task registers so Stop can cancel it;
// the ingestion pipeline registers its own context.CancelFunc.
type RuntimeHandle interface {
	Cancel()
}

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

// CancelHandle adapts a context.CancelFunc to RuntimeHandle.
func CancelHandle(fn context.CancelFunc) RuntimeHandle { return cancelFunc(fn) }

type entry struct {
	taskID  string
	mode    string
	status  atomic.Value // Status
	runtime RuntimeHandle

	messagesScanned   atomic.Int64
	itemsFound        atomic.Int64
	notificationsSent atomic.Int64
	lastUpdate        atomic.Int64 // unix nano
}

func newEntry(taskID, mode string) *entry {
	e := &entry{taskID: taskID, mode: mode}
	e.status.Store(StatusPending)
	e.lastUpdate.Store(timeNowNano())
	return e
}

func timeNowNano() int64 { return time.Now().UTC().UnixNano() }

// Supervisor is the mutex-guarded in-memory registry of all tasks known to
// this process since startup.
type Supervisor struct {
	mu    sync.Mutex
	tasks map[string]*entry
}

// New builds an empty registry.
func New() *Supervisor {
	return &Supervisor{tasks: make(map[string]*entry)}
}

// Create registers a new task in "pending" status.
func (s *Supervisor) Create(taskID, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = newEntry(taskID, mode)
}

// AttachRuntime records the cancellation handle for a running task.
func (s *Supervisor) AttachRuntime(taskID string, handle RuntimeHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.tasks[taskID]; ok {
		e.runtime = handle
	}
}

// Entry is the snapshot returned by Get.
type Entry struct {
	TaskID string
	Mode   string
	Status Status
	Stats  Stats
}

// Get returns a snapshot of a task's current state.
func (s *Supervisor) Get(taskID string) (Entry, bool) {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	return snapshot(e), true
}

func snapshot(e *entry) Entry {
	return Entry{
		TaskID: e.taskID,
		Mode:   e.mode,
		Status: e.status.Load().(Status),
		Stats: Stats{
			MessagesScanned:   e.messagesScanned.Load(),
			ItemsFound:        e.itemsFound.Load(),
			NotificationsSent: e.notificationsSent.Load(),
			LastUpdate:        time.Unix(0, e.lastUpdate.Load()).UTC(),
		},
	}
}

// Stats returns just the counters for a task.
func (s *Supervisor) Stats(taskID string) (Stats, bool) {
	e, ok := s.Get(taskID)
	if !ok {
		return Stats{}, false
	}
	return e.Stats, true
}

// UpdateStatus transitions a task's status and bumps its last-update stamp.
func (s *Supervisor) UpdateStatus(taskID string, status Status) {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.status.Store(status)
	e.lastUpdate.Store(timeNowNano())
}

// UpdateStats atomically adds the given deltas to a task's counters.
func (s *Supervisor) UpdateStats(taskID string, messagesScanned, itemsFound, notificationsSent int64) {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if messagesScanned != 0 {
		e.messagesScanned.Add(messagesScanned)
	}
	if itemsFound != 0 {
		e.itemsFound.Add(itemsFound)
	}
	if notificationsSent != 0 {
		e.notificationsSent.Add(notificationsSent)
	}
	e.lastUpdate.Store(timeNowNano())
}

// Stop sets the task's status to stopped and cancels its runtime handle, if
// one was attached.
func (s *Supervisor) Stop(taskID string) bool {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if e.runtime != nil {
		e.runtime.Cancel()
	}
	e.status.Store(StatusStopped)
	e.lastUpdate.Store(timeNowNano())
	return true
}

// Remove deletes a task from the registry entirely.
func (s *Supervisor) Remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// CleanupOldTasks removes entries whose status is terminal and whose
// last-update is older than maxAge, freeing registry memory. Returns the
// number of entries removed.
func (s *Supervisor) CleanupOldTasks(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.tasks {
		status := e.status.Load().(Status)
		terminal := status == StatusStopped || status == StatusFailed || status == StatusAuthError
		if terminal && e.lastUpdate.Load() < cutoff {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
