package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"pvz-shift-monitor/internal/infra/config"
	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/ingestion"
	"pvz-shift-monitor/internal/store"
	"pvz-shift-monitor/internal/supervisor"
)

const defaultBlacklistCheckWindowDays = 90

type startWorkerFilters struct {
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
	MinPrice   int    `json:"min_price"`
	MaxPrice   int    `json:"max_price"`
	ShkFilter  string `json:"shk_filter"`
	CityFilter string `json:"city_filter"`
}

type startWorkerRequest struct {
	UserID               int64              `json:"user_id"`
	Mode                 string             `json:"mode"`
	Chats                []string           `json:"chats"`
	Filters              startWorkerFilters `json:"filters"`
	APIID                int                `json:"api_id"`
	APIHash              string             `json:"api_hash"`
	NotificationChatID   int64              `json:"notification_chat_id"`
	ParseHistoryDays     int                `json:"parse_history_days"`
	SessionPath          string             `json:"session_path"`
	BlacklistSessionPath string             `json:"blacklist_session_path"`
}

func (s *Server) handleWorkersStart(w http.ResponseWriter, r *http.Request) {
	var req startWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Mode != "worker" && req.Mode != "employer" {
		writeError(w, http.StatusBadRequest, "mode must be worker or employer")
		return
	}
	if len(req.Chats) == 0 {
		writeError(w, http.StatusBadRequest, "chats must not be empty")
		return
	}

	dateFrom, _ := time.Parse("2006-01-02", req.Filters.DateFrom)
	dateTo, _ := time.Parse("2006-01-02", req.Filters.DateTo)
	if req.ParseHistoryDays <= 0 {
		req.ParseHistoryDays = 3
	}

	taskID := uuid.NewString()
	ctx := r.Context()

	filtersJSON, err := json.Marshal(req.Filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode filters")
		return
	}
	chatsJSON, err := json.Marshal(req.Chats)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode chats")
		return
	}

	task := store.Task{
		TaskID:               taskID,
		UserID:               req.UserID,
		Mode:                 req.Mode,
		Chats:                string(chatsJSON),
		Filters:              string(filtersJSON),
		NotificationChatID:   &req.NotificationChatID,
		SessionPath:          nonEmptyPtr(req.SessionPath),
		BlacklistSessionPath: nonEmptyPtr(req.BlacklistSessionPath),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		logger.Errorf("api: create task: %v", err)
		writeError(w, http.StatusInternalServerError, "could not persist task")
		return
	}
	s.sup.Create(taskID, req.Mode)

	cfg := ingestion.TaskConfig{
		TaskID:             taskID,
		UserID:             req.UserID,
		Mode:               req.Mode,
		ChatSpecs:          req.Chats,
		DateFrom:           dateFrom,
		DateTo:             dateTo,
		MinPrice:           req.Filters.MinPrice,
		MaxPrice:           req.Filters.MaxPrice,
		ShkFilter:          req.Filters.ShkFilter,
		CityFilter:         cityFromString(req.Filters.CityFilter),
		NotificationChatID: req.NotificationChatID,
		ParseHistoryDays:   req.ParseHistoryDays,
	}

	tenant, err := newIngestionTenant(config.Env(), req.APIID, req.APIHash, deref(task.SessionPath))
	if err != nil {
		logger.Errorf("api: build tenant for task %s: %v", taskID, err)
		_ = s.store.UpdateTaskStatus(ctx, taskID, string(supervisor.StatusFailed))
		s.sup.UpdateStatus(taskID, supervisor.StatusFailed)
		writeError(w, http.StatusInternalServerError, "could not initialize telegram session")
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.tasksMu.Lock()
	s.tasks[taskID] = cancel
	s.tasksMu.Unlock()
	s.sup.AttachRuntime(taskID, supervisor.CancelHandle(cancel))

	task2 := ingestion.NewTask(cfg, s.store, s.sup, s.sender, tenant, s.geo)
	go func() {
		if err := task2.Run(runCtx); err != nil {
			logger.Warnf("api: task %s exited: %v", taskID, err)
		}
		s.tasksMu.Lock()
		delete(s.tasks, taskID)
		s.tasksMu.Unlock()
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":    taskID,
		"status":     "pending",
		"message":    "task created",
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWorkersStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	entry, ok := s.sup.Get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": entry.TaskID,
		"status":  entry.Status,
		"mode":    entry.Mode,
		"stats": map[string]any{
			"messages_scanned":   entry.Stats.MessagesScanned,
			"items_found":        entry.Stats.ItemsFound,
			"notifications_sent": entry.Stats.NotificationsSent,
			"last_update":        entry.Stats.LastUpdate,
		},
	})
}

func (s *Server) handleWorkersStop(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if !s.sup.Stop(taskID) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err := s.store.UpdateTaskStatus(r.Context(), taskID, "stopped"); err != nil && err != store.ErrNotFound {
		logger.Warnf("api: persist stop for %s: %v", taskID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"status":  "stopped",
		"message": "task stopped",
	})
}

func (s *Server) handleWorkersList(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	task, err := s.store.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := s.store.ListFoundItems(r.Context(), taskID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	total, _ := s.store.CountItems(r.Context(), taskID)

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"mode":    task.Mode,
		"total":   total,
		"items":   items,
	})
}

func (s *Server) handleWorkerCheckBlacklist(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "item_id must be numeric")
		return
	}
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	item, err := s.store.GetFoundItem(r.Context(), itemID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	username := deref(item.AuthorUsername)
	fio := deref(item.AuthorFullName)
	if username == "" && fio == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"item_id":      itemID,
			"check_status": "skipped",
			"result":       map[string]string{"message": "item has no author information to check"},
		})
		return
	}

	result, err := s.runBlacklistSearch(r.Context(), 0, "", deref(task.BlacklistSessionPath), username, fio, defaultBlacklistCheckWindowDays)
	if err != nil {
		logger.Errorf("api: blacklist check for item %d: %v", itemID, err)
		writeError(w, http.StatusServiceUnavailable, "blacklist search unavailable")
		return
	}

	status := "not_found"
	if result.Found {
		status = "found"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":      itemID,
		"check_status": status,
		"result":       result,
	})
}

func cityFromString(s string) ingestion.City {
	switch s {
	case string(ingestion.CityMoscow), "MSK":
		return ingestion.CityMoscow
	case string(ingestion.CitySPB), "SPB":
		return ingestion.CitySPB
	default:
		return ingestion.CityAll
	}
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
