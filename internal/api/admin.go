package api

import (
	"net/http"
	"strconv"

	"pvz-shift-monitor/internal/infra/logger"
)

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.DBStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	cacheCount, err := s.store.BlacklistCacheStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats": map[string]any{
			"tasks_total":           st.TotalTasks,
			"tasks_running":         st.RunningTasks,
			"found_items_total":     st.TotalFoundItems,
			"notified_total":        st.TotalNotified,
			"blacklist_cache_count": cacheCount,
		},
	})
}

func (s *Server) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	deleted, err := s.store.CleanupOldItems(r.Context(), days)
	if err != nil {
		logger.Errorf("api: manual cleanup sweep: %v", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"deleted_count": deleted,
		"message":       "cleanup sweep complete",
	})
}
