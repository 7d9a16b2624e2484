package blacklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/infra/telegram/client"
	"pvz-shift-monitor/internal/store"
)

const historyPageLimit = 200

// MatchType names which of the three phases produced a hit.
type MatchType string

const (
	MatchUsername MatchType = "username"
	MatchUserID   MatchType = "user_id"
	MatchFullName MatchType = "full_name"
)

// Result is the outcome of a Search call.
type Result struct {
	Found           bool
	MatchType       MatchType
	MatchValue      string
	Chat            string
	TopicID         *int64
	MessageID       int
	MessageDate     string
	MessageText     string
	Link            string
	Extracted       ExtractedInfo
	MessagesChecked int
	ChatsChecked    int
	StepsDone       []string
	Message         string
}

// Searcher runs the on-demand blacklist lookup against the registered
// chats/topics using an already-authorized tenant session.
type Searcher struct {
	store  *store.Store
	tenant *client.Tenant
}

func New(st *store.Store, tenant *client.Tenant) *Searcher {
	return &Searcher{store: st, tenant: tenant}
}

// Search looks up username (and, if given, fio) across every active
// blacklist scope, newest messages first, within the last days.
func (s *Searcher) Search(ctx context.Context, username, fio string, days int) (Result, error) {
	username = strings.TrimSpace(username)
	if username != "" && !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	bareUsername := strings.TrimPrefix(username, "@")

	var targetID int64
	var haveTargetID bool
	if bareUsername != "" {
		id, ok, err := s.tenant.ResolveUserID(ctx, bareUsername)
		if err != nil {
			logger.Warnf("blacklist: resolve username %s: %v", username, err)
		} else if ok {
			targetID, haveTargetID = id, true
		}
	}

	entries, err := s.store.ListBlacklistChats(ctx, "")
	if err != nil {
		return Result{}, fmt.Errorf("blacklist: list chats: %w", err)
	}

	since := time.Now().AddDate(0, 0, -days)
	res := Result{StepsDone: []string{"username_substring", "resolved_user_id", "full_name_tokens"}}

	checkedChats := make(map[string]bool, len(entries))
	for _, entry := range entries {
		checkedChats[entry.ChatUsername] = true

		topicID := normalizedTopicID(entry)
		chatName := entry.ChatUsername
		if entry.TopicID == nil && topicID != nil {
			chatName = chatName[:strings.LastIndex(chatName, "/")]
		}

		chat, err := s.tenant.GetChat(ctx, chatName)
		if err != nil {
			logger.Warnf("blacklist: resolve chat %s: %v", chatName, err)
			continue
		}

		var hit *Result
		visit := func(msg *tg.Message) bool {
			if time.Unix(int64(msg.Date), 0).Before(since) {
				return false
			}
			res.MessagesChecked++
			if m := s.matchMessage(msg, username, bareUsername, targetID, haveTargetID, fio); m != nil {
				hit = m
				return false
			}
			return true
		}

		if topicID == nil {
			err = s.tenant.History(ctx, chat, historyPageLimit, visit)
		} else {
			err = s.tenant.TopicHistory(ctx, chat, int(*topicID), historyPageLimit, visit)
		}
		if err != nil {
			logger.Warnf("blacklist: scan %s: %v", entry.ChatUsername, err)
			continue
		}

		if hit != nil {
			hit.Chat = chatName
			hit.TopicID = topicID
			hit.Link = permalink(chatName, topicID, hit.MessageID)
			hit.Found = true
			hit.MessagesChecked = res.MessagesChecked
			hit.ChatsChecked = len(checkedChats)
			hit.StepsDone = res.StepsDone
			return *hit, nil
		}
	}

	res.ChatsChecked = len(checkedChats)
	res.Message = "not found in any registered chat"
	return res, nil
}

// matchMessage applies the three phases, in order, against a single message.
func (s *Searcher) matchMessage(msg *tg.Message, username, bareUsername string, targetID int64, haveTargetID bool, fio string) *Result {
	text := msg.Message
	if text == "" {
		return nil
	}

	base := func(mt MatchType, value string) *Result {
		return &Result{
			MatchType:   mt,
			MatchValue:  value,
			MessageID:   msg.ID,
			MessageDate: time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339),
			MessageText: text,
			Extracted:   extractInfo(text),
		}
	}

	if bareUsername != "" && strings.Contains(strings.ToLower(text), strings.ToLower(bareUsername)) {
		return base(MatchUsername, username)
	}
	if haveTargetID && matchesIDRegex(text, targetID) {
		return base(MatchUserID, fmt.Sprintf("%d", targetID))
	}
	if fio != "" && matchesFIOTokens(text, fio) {
		return base(MatchFullName, fio)
	}
	return nil
}

// normalizedTopicID repairs legacy entries where a chat username was stored
// with a trailing "/<topic_id>" instead of using the dedicated topic_id
// column.
func normalizedTopicID(e store.BlacklistChatEntry) *int64 {
	if e.TopicID != nil {
		return e.TopicID
	}
	if idx := strings.LastIndex(e.ChatUsername, "/"); idx > 0 {
		if id, ok := parsePositiveInt(e.ChatUsername[idx+1:]); ok {
			v := int64(id)
			return &v
		}
	}
	return nil
}

func parsePositiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func permalink(chatName string, topicID *int64, messageID int) string {
	bare := strings.TrimPrefix(chatName, "@")
	if topicID != nil && *topicID > 0 {
		return fmt.Sprintf("https://t.me/%s/%d/%d", bare, *topicID, messageID)
	}
	return fmt.Sprintf("https://t.me/%s/%d", bare, messageID)
}
