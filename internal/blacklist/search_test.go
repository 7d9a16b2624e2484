package blacklist

import (
	"testing"

	"pvz-shift-monitor/internal/store"
)

func TestNormalizedTopicIDPrefersColumn(t *testing.T) {
	topicID := int64(9)
	e := store.BlacklistChatEntry{ChatUsername: "chat", TopicID: &topicID}
	got := normalizedTopicID(e)
	if got == nil || *got != 9 {
		t.Fatalf("normalizedTopicID = %v, want 9", got)
	}
}

func TestNormalizedTopicIDLegacySuffix(t *testing.T) {
	e := store.BlacklistChatEntry{ChatUsername: "chat/15"}
	got := normalizedTopicID(e)
	if got == nil || *got != 15 {
		t.Fatalf("normalizedTopicID = %v, want 15", got)
	}
}

func TestNormalizedTopicIDNone(t *testing.T) {
	e := store.BlacklistChatEntry{ChatUsername: "chat"}
	if got := normalizedTopicID(e); got != nil {
		t.Errorf("normalizedTopicID = %v, want nil", got)
	}
}

func TestPermalinkWithAndWithoutTopic(t *testing.T) {
	topicID := int64(3)
	if got := permalink("@chat", &topicID, 10); got != "https://t.me/chat/3/10" {
		t.Errorf("permalink = %q", got)
	}
	if got := permalink("@chat", nil, 10); got != "https://t.me/chat/10" {
		t.Errorf("permalink = %q", got)
	}
}
