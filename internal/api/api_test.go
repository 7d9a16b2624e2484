package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"pvz-shift-monitor/internal/store"
	"pvz-shift-monitor/internal/supervisor"
)

func openTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return &Server{
		store: st,
		sup:   supervisor.New(),
		tasks: make(map[string]context.CancelFunc),
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, w.Body.String())
	}
}

func TestHandleRootAndHealth(t *testing.T) {
	s := openTestServer(t)

	w := httptest.NewRecorder()
	s.handleRoot(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("root status = %d, want 200", w.Code)
	}
	var rootBody map[string]string
	decodeBody(t, w, &rootBody)
	if rootBody["status"] != "ok" || rootBody["service"] == "" {
		t.Errorf("root body = %+v, want status=ok and a service name", rootBody)
	}

	w = httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	var healthBody map[string]string
	decodeBody(t, w, &healthBody)
	if healthBody["status"] != "healthy" {
		t.Errorf("health body = %+v, want status=healthy", healthBody)
	}
}

func TestHandleWorkersStatusNotFound(t *testing.T) {
	s := openTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/workers/status/missing", nil)
	req.SetPathValue("task_id", "missing")
	w := httptest.NewRecorder()
	s.handleWorkersStatus(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleWorkersStatusAndStop(t *testing.T) {
	s := openTestServer(t)
	s.sup.Create("t1", "employer")
	s.sup.UpdateStatus("t1", supervisor.StatusRunning)
	s.sup.UpdateStats("t1", 10, 2, 1)

	req := httptest.NewRequest(http.MethodGet, "/workers/status/t1", nil)
	req.SetPathValue("task_id", "t1")
	w := httptest.NewRecorder()
	s.handleWorkersStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["status"] != string(supervisor.StatusRunning) {
		t.Errorf("body status = %v, want %s", body["status"], supervisor.StatusRunning)
	}

	if err := s.store.CreateTask(context.Background(), store.Task{
		TaskID: "t1", UserID: 1, Mode: "employer", Chats: "[]", Filters: "{}",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/workers/stop/t1", nil)
	req.SetPathValue("task_id", "t1")
	w = httptest.NewRecorder()
	s.handleWorkersStop(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/workers/stop/ghost", nil)
	req.SetPathValue("task_id", "ghost")
	w = httptest.NewRecorder()
	s.handleWorkersStop(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stop status for unknown task = %d, want 404", w.Code)
	}
}

func TestHandleWorkersList(t *testing.T) {
	s := openTestServer(t)
	ctx := context.Background()
	if err := s.store.CreateTask(ctx, store.Task{
		TaskID: "t1", UserID: 1, Mode: "worker", Chats: "[]", Filters: "{}",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, _, err := s.store.AddFoundItem(ctx, store.FoundItem{
		TaskID:      "t1",
		MessageLink: "https://t.me/chat/1",
	}, 0); err != nil {
		t.Fatalf("add found item: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/workers/list/t1", nil)
	req.SetPathValue("task_id", "t1")
	w := httptest.NewRecorder()
	s.handleWorkersList(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", body["total"])
	}

	req = httptest.NewRequest(http.MethodGet, "/workers/list/missing", nil)
	req.SetPathValue("task_id", "missing")
	w = httptest.NewRecorder()
	s.handleWorkersList(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("list status for unknown task = %d, want 404", w.Code)
	}
}

func TestHandleWorkerCheckBlacklistSkipsWithoutAuthor(t *testing.T) {
	s := openTestServer(t)
	ctx := context.Background()
	if err := s.store.CreateTask(ctx, store.Task{
		TaskID: "t1", UserID: 1, Mode: "worker", Chats: "[]", Filters: "{}",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	id, _, err := s.store.AddFoundItem(ctx, store.FoundItem{
		TaskID:      "t1",
		MessageLink: "https://t.me/chat/1",
	}, 0)
	if err != nil {
		t.Fatalf("add found item: %v", err)
	}

	itemID := strconv.FormatInt(id, 10)
	req := httptest.NewRequest(http.MethodPost,
		"/workers/"+itemID+"/check-blacklist?task_id=t1", nil)
	req.SetPathValue("item_id", itemID)
	w := httptest.NewRecorder()
	s.handleWorkerCheckBlacklist(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("check-blacklist status = %d, want 200", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["check_status"] != "skipped" {
		t.Errorf("check_status = %v, want skipped", body["check_status"])
	}
}

func TestHandleBlacklistChatsListAddRemove(t *testing.T) {
	s := openTestServer(t)
	ctx := context.Background()

	w := httptest.NewRecorder()
	s.handleBlacklistChatsList(w, httptest.NewRequest(http.MethodGet, "/blacklist/chats", nil))
	var body map[string]any
	decodeBody(t, w, &body)
	if body["total"].(float64) != 0 {
		t.Fatalf("expected empty registry, got %+v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/blacklist/chats/add?chat_username=pvzchat", nil)
	w = httptest.NewRecorder()
	s.handleBlacklistChatsAdd(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d, want 200", w.Code)
	}

	entries, err := s.store.ListBlacklistChats(ctx, "")
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListBlacklistChats() = %+v, %v, want 1 entry", entries, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/blacklist/chats/remove?chat_username=pvzchat", nil)
	w = httptest.NewRecorder()
	s.handleBlacklistChatsRemove(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want 200", w.Code)
	}

	entries, err = s.store.ListBlacklistChats(ctx, "")
	if err != nil || len(entries) != 0 {
		t.Fatalf("ListBlacklistChats() after remove = %+v, %v, want none", entries, err)
	}
}

func TestHandleBlacklistChatsAddRequiresUsername(t *testing.T) {
	s := openTestServer(t)
	w := httptest.NewRecorder()
	s.handleBlacklistChatsAdd(w, httptest.NewRequest(http.MethodPost, "/blacklist/chats/add", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleAdminStatsAndCleanup(t *testing.T) {
	s := openTestServer(t)
	ctx := context.Background()
	if err := s.store.CreateTask(ctx, store.Task{
		TaskID: "t1", UserID: 1, Mode: "worker", Chats: "[]", Filters: "{}",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	w := httptest.NewRecorder()
	s.handleAdminStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.handleAdminCleanup(w, httptest.NewRequest(http.MethodPost, "/admin/cleanup?days=30", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.handleAdminCleanup(w, httptest.NewRequest(http.MethodPost, "/admin/cleanup?days=0", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cleanup with bad days status = %d, want 400", w.Code)
	}
}
