package client

import (
	"context"
	"fmt"
	"strings"

	"pvz-shift-monitor/internal/infra/telegram/peersmgr"

	"github.com/gotd/td/tg"
)

// ChatInfo is the minimal resolved identity of a chat/channel/supergroup
// needed by the ingestion pipeline and blacklist search.
type ChatInfo struct {
	ID        int64
	AccessHash int64
	Title     string
	Username  string
	IsForum   bool
	InputPeer tg.InputPeerClass
}

// Topic is a single forum topic (thread) inside a forum-enabled supergroup.
type Topic struct {
	ID    int
	Title string
}

// GetChat resolves a chat spec's username (with or without the leading "@")
// into a ChatInfo through contacts.resolveUsername. Numeric ids are not
// accepted, and the per-session peer cache is not consulted.
func (t *Tenant) GetChat(ctx context.Context, username string) (ChatInfo, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ChatInfo{}, fmt.Errorf("client: empty chat username")
	}

	resolved, err := t.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return ChatInfo{}, fmt.Errorf("resolve username %q: %w", username, err)
	}

	for _, c := range resolved.Chats {
		if channel, ok := c.(*tg.Channel); ok {
			return ChatInfo{
				ID:         channel.ID,
				AccessHash: channel.AccessHash,
				Title:      channel.Title,
				Username:   channel.Username,
				IsForum:    channel.Forum,
				InputPeer:  &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
			}, nil
		}
		if chat, ok := c.(*tg.Chat); ok {
			return ChatInfo{
				ID:        chat.ID,
				Title:     chat.Title,
				InputPeer: &tg.InputPeerChat{ChatID: chat.ID},
			}, nil
		}
	}
	return ChatInfo{}, fmt.Errorf("client: %q did not resolve to a chat or channel", username)
}

// ResolvePeer is a thin alias over the session's peer cache, used once a
// ChatInfo (or a message's embedded peer) is already known.
func (t *Tenant) ResolvePeer(ctx context.Context, kind peersmgr.DialogKind, id int64) (tg.InputPeerClass, error) {
	peer, ok, err := t.peers.ResolvePeer(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("client: peer %d (%s) not found", id, kind)
	}
	return peer.InputPeer(), nil
}

// ForumTopics lists the open topics of a forum-enabled supergroup.
func (t *Tenant) ForumTopics(ctx context.Context, chat ChatInfo) ([]Topic, error) {
	channelPeer, ok := chat.InputPeer.(*tg.InputPeerChannel)
	if !ok {
		return nil, fmt.Errorf("client: chat %q is not a channel, cannot have forum topics", chat.Username)
	}

	result, err := t.api.ChannelsGetForumTopics(ctx, &tg.ChannelsGetForumTopicsRequest{
		Channel: &tg.InputChannel{ChannelID: channelPeer.ChannelID, AccessHash: channelPeer.AccessHash},
		Limit:   100,
	})
	if err != nil {
		return nil, fmt.Errorf("get forum topics for %q: %w", chat.Username, err)
	}

	topics := make([]Topic, 0, len(result.Topics))
	for _, tc := range result.Topics {
		topic, ok := tc.(*tg.ForumTopic)
		if !ok {
			continue
		}
		topics = append(topics, Topic{ID: topic.ID, Title: topic.Title})
	}
	return topics, nil
}

// History streams up to limit messages of a channel/chat, newest first (the
// order Telegram returns pages and messages in), calling visit for every
// plain message. Stops early if visit returns false.
func (t *Tenant) History(ctx context.Context, chat ChatInfo, limit int, visit func(*tg.Message) bool) error {
	return t.historyFromOffset(ctx, chat.InputPeer, 0, limit, visit)
}

// TopicHistory streams the messages of a single forum topic via the replies
// RPC surface (GetReplies scoped to the topic's root message id).
func (t *Tenant) TopicHistory(ctx context.Context, chat ChatInfo, topicID, limit int, visit func(*tg.Message) bool) error {
	offsetID := 0
	remaining := limit
	for remaining > 0 {
		page := remaining
		if page > 100 {
			page = 100
		}
		resp, err := t.api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
			Peer:     chat.InputPeer,
			MsgID:    topicID,
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return fmt.Errorf("get topic replies for topic %d: %w", topicID, err)
		}

		msgs, done := messagesOf(resp)
		if len(msgs) == 0 {
			return nil
		}

		lastID := 0
		for _, m := range msgs {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}
			lastID = msg.ID
			if !visit(msg) {
				return nil
			}
		}
		remaining -= len(msgs)
		offsetID = lastID
		if done || lastID == 0 {
			return nil
		}
	}
	return nil
}

func (t *Tenant) historyFromOffset(ctx context.Context, peer tg.InputPeerClass, offsetID, limit int, visit func(*tg.Message) bool) error {
	remaining := limit
	for remaining > 0 {
		page := remaining
		if page > 100 {
			page = 100
		}
		resp, err := t.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}

		msgs, done := messagesOf(resp)
		if len(msgs) == 0 {
			return nil
		}

		lastID := 0
		for _, m := range msgs {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}
			lastID = msg.ID
			if !visit(msg) {
				return nil
			}
		}
		remaining -= len(msgs)
		offsetID = lastID
		if done || lastID == 0 {
			return nil
		}
	}
	return nil
}

// messagesOf normalizes the three MessagesMessagesClass response variants
// into a flat slice plus a "no more pages" signal.
func messagesOf(resp tg.MessagesMessagesClass) ([]tg.MessageClass, bool) {
	switch v := resp.(type) {
	case *tg.MessagesMessages:
		return v.Messages, true
	case *tg.MessagesMessagesSlice:
		return v.Messages, len(v.Messages) == 0
	case *tg.MessagesChannelMessages:
		return v.Messages, len(v.Messages) == 0
	default:
		return nil, true
	}
}

// Preload refreshes the session's dialog/peer cache once at startup so later
// resolves hit memory instead of issuing a fresh RPC round-trip.
func (t *Tenant) Preload(ctx context.Context) error {
	if t.peers == nil {
		return fmt.Errorf("client: peer cache not ready, call inside Start")
	}
	return t.peers.RefreshDialogs(ctx, t.api)
}

// SubscribeRealtime registers handlers for new messages and forum-topic
// messages on the tenant's update dispatcher. The client holds the dispatcher
// by pointer, so handlers registered after Start apply to updates dispatched
// from then on; earlier updates do not reach onMessage.
func (t *Tenant) SubscribeRealtime(onMessage func(ctx context.Context, e tg.Entities, msg *tg.Message) error) {
	t.opts.Dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		msg, ok := u.Message.(*tg.Message)
		if !ok {
			return nil
		}
		return onMessage(ctx, e, msg)
	})
	t.opts.Dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		msg, ok := u.Message.(*tg.Message)
		if !ok {
			return nil
		}
		return onMessage(ctx, e, msg)
	})
}
