package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"pvz-shift-monitor/internal/domain/dedup"
	"pvz-shift-monitor/internal/domain/extractor"
	"pvz-shift-monitor/internal/domain/geofilter"
	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/infra/telegram/client"
	"pvz-shift-monitor/internal/notify"
	"pvz-shift-monitor/internal/store"
	"pvz-shift-monitor/internal/supervisor"
)

// dedupWindow is the 24h window shared by the two dedup levels: the author
// check (CheckAuthorDuplicate) and the content-hash check inside AddFoundItem.
const dedupWindow = 24 * time.Hour

// waitTick is the interval of the post-subscription wait loop: connection
// health checks, and the polling-fallback sweep.
const waitTick = 30 * time.Second

// TaskConfig is everything a Task needs that is independent of runtime
// state: owner, mode, chat specs, and the business filter parameters.
type TaskConfig struct {
	TaskID             string
	UserID             int64
	Mode               string // "worker" or "employer"
	ChatSpecs          []string
	DateFrom           time.Time
	DateTo             time.Time
	MinPrice           int
	MaxPrice           int
	ShkFilter          string
	CityFilter         City
	NotificationChatID int64
	ParseHistoryDays   int
}

// Task owns one monitoring job's full lifetime: connecting its MTProto
// session, backfilling history, subscribing to realtime updates, and
// running the reconnect/polling wait loop until cancelled.
type Task struct {
	cfg    TaskConfig
	store  *store.Store
	sup    *supervisor.Supervisor
	sender notify.Sender
	tenant *client.Tenant
	geo    *geofilter.Filter

	specs  ChatSpecs
	filter ItemFilter

	seen     *seenSet
	lastSeen *lastSeenTracker

	topicsMu sync.RWMutex
	topics   map[string]map[int]string // base chat -> topic_id -> title
	chatInfo map[string]client.ChatInfo
}

// NewTask wires a task's configuration to its collaborators. geo may be nil
// when CityFilter is ALL for every chat, but is normally shared process-wide
// since its dictionaries are read-only after construction.
func NewTask(cfg TaskConfig, st *store.Store, sup *supervisor.Supervisor, sender notify.Sender, tenant *client.Tenant, geo *geofilter.Filter) *Task {
	return &Task{
		cfg:    cfg,
		store:  st,
		sup:    sup,
		sender: sender,
		tenant: tenant,
		geo:    geo,
		specs:  ParseChatSpecs(cfg.ChatSpecs),
		filter: ItemFilter{
			DateFrom:  cfg.DateFrom,
			DateTo:    cfg.DateTo,
			MinPrice:  cfg.MinPrice,
			MaxPrice:  cfg.MaxPrice,
			ShkFilter: cfg.ShkFilter,
		},
		seen:     newSeenSet(),
		lastSeen: newLastSeenTracker(),
		topics:   make(map[string]map[int]string),
		chatInfo: make(map[string]client.ChatInfo),
	}
}

// Run drives the task through its full lifecycle: MTProto connect, history
// backfill, realtime subscription, and the reconnect/poll loop, until ctx is
// cancelled or a terminal error occurs. Status transitions and the final
// cleanup are handled here so the caller only needs to supervise ctx.
func (t *Task) Run(ctx context.Context) error {
	err := t.tenant.Start(ctx, t.runInner)

	switch {
	case err == nil:
		t.finishStatus(supervisor.StatusStopped)
		return nil
	case errors.Is(err, client.ErrNotAuthorized):
		t.handleAuthExpired(ctx)
		return err
	case errors.Is(err, context.Canceled):
		t.finishStatus(supervisor.StatusStopped)
		return nil
	default:
		logger.Errorf("ingestion: task %s terminated: %v", t.cfg.TaskID, err)
		t.finishStatus(supervisor.StatusFailed)
		return err
	}
}

func (t *Task) finishStatus(status supervisor.Status) {
	t.sup.UpdateStatus(t.cfg.TaskID, status)
	if updErr := t.store.UpdateTaskStatus(context.Background(), t.cfg.TaskID, string(status)); updErr != nil {
		logger.Warnf("ingestion: task %s: persist final status %s: %v", t.cfg.TaskID, status, updErr)
	}
}

func (t *Task) handleAuthExpired(ctx context.Context) {
	logger.Warnf("ingestion: task %s: session not authorized, marking auth_error", t.cfg.TaskID)
	t.sup.UpdateStatus(t.cfg.TaskID, supervisor.StatusAuthError)
	if err := t.store.UpdateTaskStatus(context.Background(), t.cfg.TaskID, string(supervisor.StatusAuthError)); err != nil {
		logger.Warnf("ingestion: task %s: persist auth_error status: %v", t.cfg.TaskID, err)
	}
	if t.sender != nil && t.cfg.NotificationChatID != 0 {
		item := store.FoundItem{MessageText: strPtr("Сессия парсера устарела, требуется повторная авторизация.")}
		t.sender.Send(ctx, t.cfg.NotificationChatID, item, 0, t.cfg.Mode)
	}
}

func strPtr(s string) *string { return &s }

// runInner is invoked once the MTProto session is connected and
// authorized, running entirely inside the tenant's event loop.
func (t *Task) runInner(ctx context.Context) error {
	if err := t.tenant.Preload(ctx); err != nil {
		logger.Warnf("ingestion: task %s: preload dialogs: %v", t.cfg.TaskID, err)
	}

	for _, chat := range t.specs.Order {
		info, err := t.tenant.GetChat(ctx, chat)
		if err != nil {
			logger.Warnf("ingestion: task %s: resolve chat %s: %v", t.cfg.TaskID, chat, err)
			continue
		}
		t.chatInfo[chat] = info

		if info.IsForum {
			topics, err := t.tenant.ForumTopics(ctx, info)
			if err != nil {
				logger.Warnf("ingestion: task %s: forum topics for %s: %v", t.cfg.TaskID, chat, err)
			} else {
				byID := make(map[int]string, len(topics))
				for _, tp := range topics {
					byID[tp.ID] = tp.Title
				}
				t.topicsMu.Lock()
				t.topics[chat] = byID
				t.topicsMu.Unlock()
			}
		}
	}

	t.sup.UpdateStatus(t.cfg.TaskID, supervisor.StatusRunning)
	if err := t.store.UpdateTaskStatus(ctx, t.cfg.TaskID, string(supervisor.StatusRunning)); err != nil {
		logger.Warnf("ingestion: task %s: persist running status: %v", t.cfg.TaskID, err)
	}

	since := time.Now().AddDate(0, 0, -t.cfg.ParseHistoryDays)
	for _, chat := range t.specs.Order {
		if ctx.Err() != nil {
			break
		}
		t.backfillChat(ctx, chat, since)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	t.subscribeRealtime()

	return t.waitLoop(ctx)
}

func (t *Task) backfillChat(ctx context.Context, chat string, since time.Time) {
	info, ok := t.chatInfo[chat]
	if !ok {
		return
	}

	visit := func(msg *tg.Message) bool {
		if ctx.Err() != nil {
			return false
		}
		if time.Unix(int64(msg.Date), 0).Before(since) {
			return false
		}
		t.Process(ctx, tg.Entities{}, msg, chat)
		return true
	}

	const historyLimit = 500

	topicSet := t.specs.AllowedTopics[chat]
	if len(topicSet) == 0 {
		if err := t.tenant.History(ctx, info, historyLimit, visit); err != nil {
			logger.Warnf("ingestion: task %s: history backfill %s: %v", t.cfg.TaskID, chat, err)
		}
		return
	}

	for topicID := range topicSet {
		if ctx.Err() != nil {
			return
		}
		if err := t.tenant.TopicHistory(ctx, info, topicID, historyLimit, visit); err != nil {
			logger.Warnf("ingestion: task %s: topic backfill %s/%d: %v", t.cfg.TaskID, chat, topicID, err)
		}
	}
}

func (t *Task) subscribeRealtime() {
	t.tenant.SubscribeRealtime(func(ctx context.Context, e tg.Entities, msg *tg.Message) error {
		chat := t.chatNameForMessage(msg)
		if chat == "" {
			return nil
		}
		t.Process(ctx, e, msg, chat)
		return nil
	})
}

// chatNameForMessage maps an incoming realtime message back to the base
// chat spec handle it belongs to, using the peer id recorded in ChatInfo.
func (t *Task) chatNameForMessage(msg *tg.Message) string {
	peerChannel, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return ""
	}
	for chat, info := range t.chatInfo {
		if info.ID == peerChannel.ChannelID {
			return chat
		}
	}
	return ""
}

// waitLoop checks connection health every waitTick and runs the polling
// fallback sweep each tick. On disconnect it sleeps 2s, waits for the
// connection manager to report online and preloads dialogs again (10s pause
// if that preload fails); the MTProto client itself is not stopped or
// restarted. It returns when ctx is cancelled.
func (t *Task) waitLoop(ctx context.Context) error {
	ticker := time.NewTicker(waitTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !t.tenant.Running() {
				t.reconnect(ctx)
			}
			t.pollFallback(ctx)
		}
	}
}

func (t *Task) reconnect(ctx context.Context) {
	logger.Warnf("ingestion: task %s: connection appears down, waiting", t.cfg.TaskID)
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}
	t.tenant.WaitOnline(ctx)
	if err := t.tenant.Preload(ctx); err != nil {
		logger.Warnf("ingestion: task %s: preload after reconnect: %v", t.cfg.TaskID, err)
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Second):
		}
	}
}

// pollFallback asks for anything newer than the last seen message id per
// chat, covering silent realtime subscription drops.
func (t *Task) pollFallback(ctx context.Context) {
	const pollLimit = 20
	for _, chat := range t.specs.Order {
		info, ok := t.chatInfo[chat]
		if !ok {
			continue
		}
		lastID := t.lastSeen.Get(info.ID)
		visit := func(msg *tg.Message) bool {
			if msg.ID <= lastID {
				return false
			}
			t.Process(ctx, tg.Entities{}, msg, chat)
			return true
		}
		if err := t.tenant.History(ctx, info, pollLimit, visit); err != nil {
			logger.Debugf("ingestion: task %s: poll fallback %s: %v", t.cfg.TaskID, chat, err)
		}
	}
}

// Process runs one message through the full filter-and-persist pipeline.
// Every step is a short-circuit return on failure; a panic while handling a
// single message is recovered and logged here and never escapes.
func (t *Task) Process(ctx context.Context, entities tg.Entities, msg *tg.Message, chatName string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("ingestion: task %s: panic processing message: %v", t.cfg.TaskID, r)
		}
	}()
	if msg == nil || msg.PeerID == nil {
		return
	}

	chatID := peerNumericID(msg.PeerID)
	if t.seen.CheckAndMark(chatID, msg.ID) {
		return
	}
	t.lastSeen.Advance(chatID, msg.ID)

	topicID, hasTopic := actualTopic(msg)

	if allowed := t.specs.AllowedTopics[chatName]; len(allowed) > 0 && !allowed[topicID] {
		return
	}

	t.sup.UpdateStats(t.cfg.TaskID, 1, 0, 0)

	extracted, ok := extractor.Extract(msg.Message, time.Unix(int64(msg.Date), 0))
	if !ok {
		return
	}
	if extracted.Type != t.cfg.Mode {
		return
	}

	if !t.passesCityGate(chatName, topicID, hasTopic, msg.Message) {
		return
	}

	if !t.filter.Matches(extracted) {
		return
	}

	username, fullName, authorID := resolveAuthor(entities, msg)

	t.topicsMu.RLock()
	topicName := resolveTopicName(t.topics[chatName], topicID, msg.Message)
	t.topicsMu.RUnlock()

	var workDate = extracted.Date
	if username != nil {
		dup, err := t.store.CheckAuthorDuplicate(ctx, t.cfg.TaskID, *username, workDate, extracted.Price, dedupWindow)
		if err != nil {
			logger.Warnf("ingestion: task %s: author dup check: %v", t.cfg.TaskID, err)
		} else if dup {
			return
		}
	}

	link := permalink(chatName, topicID, msg.ID)
	contentHash := dedup.ContentHash(extracted.Price, extracted.Location, msg.Message)

	item := store.FoundItem{
		TaskID:          t.cfg.TaskID,
		Mode:            t.cfg.Mode,
		AuthorUsername:  username,
		AuthorFullName:  fullName,
		AuthorID:        authorID,
		WorkDate:        &extracted.Date,
		Price:           derefOrZero(extracted.Price),
		Shk:             nonEmptyPtr(extracted.Shk),
		MessageText:     &msg.Message,
		MessageLink:     link,
		ChatName:        strPtr(chatName),
		TopicID:         topicIntPtr(topicID),
		TopicName:       nonEmptyPtr(topicName),
		MessageDate:     strPtr(time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339)),
		ContentHash:     &contentHash,
	}

	id, inserted, err := t.store.AddFoundItem(ctx, item, dedupWindow)
	if err != nil {
		logger.Errorf("ingestion: task %s: add found item: %v", t.cfg.TaskID, err)
		return
	}
	if !inserted {
		return
	}

	t.sup.UpdateStats(t.cfg.TaskID, 0, 1, 0)

	if t.sender == nil || t.cfg.NotificationChatID == 0 {
		return
	}
	if t.sender.Send(ctx, t.cfg.NotificationChatID, item, id, t.cfg.Mode) {
		if err := t.store.MarkNotified(ctx, id); err != nil {
			logger.Warnf("ingestion: task %s: mark notified %d: %v", t.cfg.TaskID, id, err)
		}
		t.sup.UpdateStats(t.cfg.TaskID, 0, 0, 1)
	}
}

func (t *Task) passesCityGate(chatName string, topicID int, hasTopic bool, text string) bool {
	if t.cfg.CityFilter == CityAll {
		return true
	}

	if hasTopic {
		if tag, ok := t.specs.TopicCity[chatName][topicID]; ok {
			return tag == t.cfg.CityFilter
		}
	}
	if tag, ok := t.specs.ChatCityOverride[chatName]; ok {
		return tag == t.cfg.CityFilter
	}

	if t.geo == nil {
		return true
	}
	switch t.cfg.CityFilter {
	case CityMoscow:
		return t.geo.ShouldTakeForMoscow(text)
	case CitySPB:
		return t.geo.ShouldTakeForSpb(text)
	default:
		return true
	}
}

func peerNumericID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return p.ChannelID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerUser:
		return p.UserID
	default:
		return 0
	}
}

func derefOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func nonEmptyPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func topicIntPtr(topicID int) *int64 {
	if topicID <= 0 {
		return nil
	}
	v := int64(topicID)
	return &v
}
