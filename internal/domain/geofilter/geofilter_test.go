package geofilter

import "testing"

func TestShouldTakeExcludesOnlyUnambiguousSignal(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.ShouldTakeForMoscow("требуется сотрудник, без упоминания города") {
		t.Error("no-signal text should be taken for Moscow")
	}
	if !f.ShouldTakeForSpb("требуется сотрудник, без упоминания города") {
		t.Error("no-signal text should be taken for SPB")
	}
}

func TestShouldTakeExcludesOppositeCity(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text := "требуется сотрудник, пункт в питере"
	if f.ShouldTakeForMoscow(text) {
		t.Error("explicit SPB alias should exclude from Moscow task")
	}
	if !f.ShouldTakeForSpb(text) {
		t.Error("explicit SPB alias should be taken for SPB task")
	}
}

func TestAliasCollisionTakenForBoth(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text := "работаю и в москве и в питере"
	if !f.ShouldTakeForMoscow(text) {
		t.Error("alias collision must be conservative: taken for Moscow")
	}
	if !f.ShouldTakeForSpb(text) {
		t.Error("alias collision must be conservative: taken for SPB")
	}

	mask, level := f.Classify(text)
	if mask != (Moscow | SPB) {
		t.Errorf("mask = %d, want collision (3)", mask)
	}
	if level != LevelExplicit {
		t.Errorf("level = %q, want explicit", level)
	}
}

func TestMetroStreetFallthrough(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Both-city metro collision falls through to streets; a unique SPB street
	// then resolves the mask to SPB only.
	text := "рядом метро девяткино и бульвар рокоссовского, на невском проспекте"
	mask, level := f.Classify(text)
	if mask != SPB {
		t.Errorf("mask = %d, want SPB-only after street fallthrough", mask)
	}
	if level != LevelStreet {
		t.Errorf("level = %q, want street", level)
	}
}

func TestCacheIsIdempotent(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text := "пункт выдачи в красногорске"
	first := f.ShouldTakeForMoscow(text)
	second := f.ShouldTakeForMoscow(text)
	if first != second {
		t.Error("cached result must be stable across repeated calls")
	}
}
