package dedup

import "testing"

func TestContentHashNormalizesCaseAndWhitespace(t *testing.T) {
	price := 2600
	h1 := ContentHash(&price, "Красногорск", "На пункт выдачи OZON требуется сотрудник")
	h2 := ContentHash(&price, "красногорск", "на пункт выдачи ozon требуется сотрудник ")
	if h1 != h2 {
		t.Errorf("hashes differ for case/whitespace-only variation: %q vs %q", h1, h2)
	}
}

func TestContentHashDiffersOnPrice(t *testing.T) {
	p1, p2 := 2600, 2700
	h1 := ContentHash(&p1, "Красногорск", "текст")
	h2 := ContentHash(&p2, "Красногорск", "текст")
	if h1 == h2 {
		t.Error("expected different hashes for different price")
	}
}

func TestContentHashNilPriceUsesEmptyString(t *testing.T) {
	h := ContentHash(nil, "", "текст")
	if h == "" {
		t.Error("expected non-empty hash even with nil price and empty location")
	}
}

func TestAuthorKeyFormat(t *testing.T) {
	price := 3000
	key := AuthorKey("ivan", "2026-02-03", &price)
	want := "ivan|2026-02-03|3000"
	if key != want {
		t.Errorf("AuthorKey = %q, want %q", key, want)
	}
}
