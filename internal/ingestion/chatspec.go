// Package ingestion owns one task's lifetime: chat-spec parsing, history
// backfill, realtime subscription, polling fallback, and the Process
// pipeline that turns a raw message into a persisted FoundItem.
package ingestion

import (
	"strconv"
	"strings"
)

// City is the task-level or per-chat/topic city tag carried in a chat spec.
type City string

const (
	CityMoscow City = "МСК"
	CitySPB    City = "СПБ"
	CityAll    City = "ALL"
	cityNone   City = ""
)

// ChatSpecs is the parsed form of a task's chat list: per-chat topic
// allow-lists and per-chat/per-topic city overrides.
type ChatSpecs struct {
	AllowedTopics     map[string]map[int]bool
	TopicCity         map[string]map[int]City
	ChatCityOverride  map[string]City
	Order             []string // base chat handles, first-seen order
}

// ParseChatSpecs parses each entry of the form `@chat`, `@chat/<topic_id>`,
// `@chat#CITY`, or `@chat/<topic_id>#CITY`. Unknown CITY tags are dropped
// silently, the chat entry itself is kept.
func ParseChatSpecs(specs []string) ChatSpecs {
	out := ChatSpecs{
		AllowedTopics:    make(map[string]map[int]bool),
		TopicCity:        make(map[string]map[int]City),
		ChatCityOverride: make(map[string]City),
	}

	for _, raw := range specs {
		spec := strings.TrimSpace(raw)
		if spec == "" {
			continue
		}

		var cityTag City
		if idx := strings.IndexByte(spec, '#'); idx >= 0 {
			tag := strings.ToUpper(strings.TrimSpace(spec[idx+1:]))
			spec = spec[:idx]
			switch tag {
			case string(CityMoscow), "MSK":
				cityTag = CityMoscow
			case string(CitySPB), "SPB":
				cityTag = CitySPB
			case string(CityAll):
				cityTag = CityAll
			default:
				cityTag = cityNone // unknown tag, silently dropped
			}
		}

		chat := spec
		topicID := -1
		if idx := strings.IndexByte(spec, '/'); idx >= 0 {
			chat = spec[:idx]
			if n, err := strconv.Atoi(spec[idx+1:]); err == nil {
				topicID = n
			}
		}
		chat = normalizeChat(chat)
		if chat == "" {
			continue
		}

		if _, seen := out.AllowedTopics[chat]; !seen {
			out.AllowedTopics[chat] = make(map[int]bool)
			out.TopicCity[chat] = make(map[int]City)
			out.Order = append(out.Order, chat)
		}

		if topicID >= 0 {
			out.AllowedTopics[chat][topicID] = true
			if cityTag != cityNone {
				out.TopicCity[chat][topicID] = cityTag
			}
		} else if cityTag != cityNone {
			out.ChatCityOverride[chat] = cityTag
		}
	}

	return out
}

func normalizeChat(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}
