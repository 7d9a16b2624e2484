package api

import (
	"context"
	"net/http"
	"strconv"

	"pvz-shift-monitor/internal/infra/config"
	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/store"
)

type blacklistCheckRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Days     int    `json:"days"`
}

func (s *Server) handleBlacklistCheck(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	sessionPath := r.URL.Query().Get("blacklist_session_path")

	var body blacklistCheckRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if username == "" {
		username = body.Username
	}
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	days := body.Days
	if days <= 0 {
		days = defaultBlacklistCheckWindowDays
	}

	result, err := s.runBlacklistSearch(r.Context(), 0, "", sessionPath, username, body.FullName, days)
	if err != nil {
		logger.Errorf("api: blacklist check: %v", err)
		writeError(w, http.StatusServiceUnavailable, "blacklist search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBlacklistChatsList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListBlacklistChats(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	active := 0
	for _, e := range entries {
		if e.IsActive {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chats":  entries,
		"total":  len(entries),
		"active": active,
	})
}

func (s *Server) handleBlacklistChatsSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatUsername string                     `json:"chat_username"`
		Topics       []store.BlacklistChatEntry `json:"topics"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.ChatUsername == "" {
		writeError(w, http.StatusBadRequest, "chat_username is required")
		return
	}
	if err := s.store.SyncBlacklistChats(r.Context(), body.ChatUsername, body.Topics); err != nil {
		logger.Errorf("api: sync blacklist chats: %v", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "synced": len(body.Topics)})
}

func (s *Server) handleBlacklistChatsAdd(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatUsername := q.Get("chat_username")
	if chatUsername == "" {
		writeError(w, http.StatusBadRequest, "chat_username is required")
		return
	}
	entry := store.BlacklistChatEntry{ChatUsername: chatUsername}
	if title := q.Get("chat_title"); title != "" {
		entry.ChatTitle = &title
	}
	if topicStr := q.Get("topic_id"); topicStr != "" {
		if id, err := strconv.ParseInt(topicStr, 10, 64); err == nil {
			entry.TopicID = &id
		}
	}
	if name := q.Get("topic_name"); name != "" {
		entry.TopicName = &name
	}
	if err := s.store.AddBlacklistChat(r.Context(), entry); err != nil {
		logger.Errorf("api: add blacklist chat: %v", err)
		writeError(w, http.StatusInternalServerError, "add failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "chat registered"})
}

func (s *Server) handleBlacklistChatsRemove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatUsername := q.Get("chat_username")
	if chatUsername == "" {
		writeError(w, http.StatusBadRequest, "chat_username is required")
		return
	}
	var topicID *int64
	if topicStr := q.Get("topic_id"); topicStr != "" {
		if id, err := strconv.ParseInt(topicStr, 10, 64); err == nil {
			topicID = &id
		}
	}
	if err := s.store.RemoveBlacklistChat(r.Context(), chatUsername, topicID); err != nil {
		logger.Errorf("api: remove blacklist chat: %v", err)
		writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBlacklistChatsTopics(w http.ResponseWriter, r *http.Request) {
	chatUsername := r.URL.Query().Get("chat_username")
	if chatUsername == "" {
		writeError(w, http.StatusBadRequest, "chat_username is required")
		return
	}
	sessionPath := r.URL.Query().Get("blacklist_session_path")

	s.blMu.Lock()
	defer s.blMu.Unlock()

	tenant, err := newBlacklistTenant(config.Env(), 0, "", sessionPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not initialize telegram session")
		return
	}

	type topicOut struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	var chatTitle string
	var isForum bool
	var topics []topicOut

	runErr := tenant.Start(r.Context(), func(ctx context.Context) error {
		chat, err := tenant.GetChat(ctx, chatUsername)
		if err != nil {
			return err
		}
		chatTitle = chat.Title
		isForum = chat.IsForum
		if !isForum {
			return nil
		}
		found, err := tenant.ForumTopics(ctx, chat)
		if err != nil {
			return err
		}
		for _, t := range found {
			topics = append(topics, topicOut{ID: t.ID, Name: t.Title})
		}
		return nil
	})
	if runErr != nil {
		logger.Errorf("api: discover topics for %s: %v", chatUsername, runErr)
		writeError(w, http.StatusInternalServerError, "could not discover topics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"is_forum":   isForum,
		"chat_title": chatTitle,
		"topics":     topics,
	})
}
