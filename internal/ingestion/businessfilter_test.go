package ingestion

import (
	"testing"
	"time"

	"pvz-shift-monitor/internal/domain/extractor"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func intPtr(v int) *int { return &v }

func TestItemFilterMatches(t *testing.T) {
	f := ItemFilter{
		DateFrom:  day("2026-02-01"),
		DateTo:    day("2026-02-10"),
		MinPrice:  2000,
		MaxPrice:  3000,
		ShkFilter: shkAny,
	}

	ok := f.Matches(extractor.Extracted{Date: "2026-02-05", Price: intPtr(2500)})
	if !ok {
		t.Error("expected in-range item to match")
	}

	if f.Matches(extractor.Extracted{Date: "2026-03-01", Price: intPtr(2500)}) {
		t.Error("out-of-range date should not match")
	}
	if f.Matches(extractor.Extracted{Date: "2026-02-05", Price: intPtr(5000)}) {
		t.Error("out-of-range price should not match")
	}
	if f.Matches(extractor.Extracted{Date: "2026-02-05", Price: nil}) {
		t.Error("missing price should not match")
	}
}

func TestItemFilterShkRequirement(t *testing.T) {
	f := ItemFilter{
		DateFrom: day("2026-01-01"), DateTo: day("2026-12-31"),
		MinPrice: 0, MaxPrice: 100000, ShkFilter: "мало",
	}

	if f.Matches(extractor.Extracted{Date: "2026-02-05", Price: intPtr(100), Shk: ""}) {
		t.Error("missing shk should fail a specific shk filter")
	}
	if !f.Matches(extractor.Extracted{Date: "2026-02-05", Price: intPtr(100), Shk: "Мало"}) {
		t.Error("case-insensitive shk match should succeed")
	}
	if f.Matches(extractor.Extracted{Date: "2026-02-05", Price: intPtr(100), Shk: "много"}) {
		t.Error("mismatched shk tag should fail")
	}
}
