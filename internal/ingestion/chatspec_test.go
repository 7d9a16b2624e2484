package ingestion

import "testing"

func TestParseChatSpecsBasic(t *testing.T) {
	specs := ParseChatSpecs([]string{"chat1", "@chat2/55", "@chat3#МСК", "@chat4/10#СПБ", "@chat5#unknown"})

	if len(specs.Order) != 5 {
		t.Fatalf("Order = %v, want 5 entries", specs.Order)
	}
	if specs.Order[0] != "@chat1" {
		t.Errorf("normalizeChat did not prefix @: got %q", specs.Order[0])
	}

	if !specs.AllowedTopics["@chat2"][55] {
		t.Error("expected topic 55 allowed for @chat2")
	}

	if tag := specs.ChatCityOverride["@chat3"]; tag != CityMoscow {
		t.Errorf("ChatCityOverride[@chat3] = %q, want CityMoscow", tag)
	}

	if tag := specs.TopicCity["@chat4"][10]; tag != CitySPB {
		t.Errorf("TopicCity[@chat4][10] = %q, want CitySPB", tag)
	}

	if _, ok := specs.ChatCityOverride["@chat5"]; ok {
		t.Error("unknown city tag should have been dropped, not stored")
	}
	if _, ok := specs.AllowedTopics["@chat5"]; !ok {
		t.Error("@chat5 itself should still be kept despite unknown tag")
	}
}

func TestParseChatSpecsAsciiAliases(t *testing.T) {
	specs := ParseChatSpecs([]string{"@chat#MSK", "@chat2#SPB", "@chat3#ALL"})

	if tag := specs.ChatCityOverride["@chat"]; tag != CityMoscow {
		t.Errorf("MSK alias = %q, want CityMoscow", tag)
	}
	if tag := specs.ChatCityOverride["@chat2"]; tag != CitySPB {
		t.Errorf("SPB alias = %q, want CitySPB", tag)
	}
	if tag := specs.ChatCityOverride["@chat3"]; tag != CityAll {
		t.Errorf("ALL = %q, want CityAll", tag)
	}
}

func TestParseChatSpecsEmptyEntriesSkipped(t *testing.T) {
	specs := ParseChatSpecs([]string{"", "   ", "@chat"})
	if len(specs.Order) != 1 {
		t.Fatalf("Order = %v, want 1 entry", specs.Order)
	}
}
