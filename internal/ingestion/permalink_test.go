package ingestion

import "testing"

func TestPermalink(t *testing.T) {
	cases := []struct {
		chat    string
		topicID int
		msgID   int
		want    string
	}{
		{"@chat", 0, 42, "https://t.me/chat/42"},
		{"@chat", 7, 42, "https://t.me/chat/7/42"},
		{"chat", 0, 42, "https://t.me/chat/42"},
	}
	for _, c := range cases {
		if got := permalink(c.chat, c.topicID, c.msgID); got != c.want {
			t.Errorf("permalink(%q,%d,%d) = %q, want %q", c.chat, c.topicID, c.msgID, got, c.want)
		}
	}
}

func TestResolveTopicNameFromCache(t *testing.T) {
	cache := map[int]string{5: "МСК - Ozon WB"}
	if got := resolveTopicName(cache, 5, "anything"); got != "МСК - Ozon WB" {
		t.Errorf("resolveTopicName cache hit = %q", got)
	}
}

func TestResolveTopicNameFallbackRegex(t *testing.T) {
	got := resolveTopicName(nil, 0, "МСК - Ozon объявление по смене")
	if got == "" {
		t.Error("expected a regex-derived topic name fallback")
	}
}

func TestResolveTopicNameNoMatch(t *testing.T) {
	if got := resolveTopicName(nil, 0, "просто текст без разметки"); got != "" {
		t.Errorf("expected empty fallback, got %q", got)
	}
}
