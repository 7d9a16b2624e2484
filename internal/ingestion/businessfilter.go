package ingestion

import (
	"time"

	"pvz-shift-monitor/internal/domain/extractor"
)

// ItemFilter narrows extracted announcements to a date window, a price
// range, and an optional shk requirement ("любое" accepts anything).
type ItemFilter struct {
	DateFrom   time.Time
	DateTo     time.Time
	MinPrice   int
	MaxPrice   int
	ShkFilter  string
}

const shkAny = "любое"

// Matches reports whether an extracted announcement satisfies the filter.
func (f ItemFilter) Matches(ex extractor.Extracted) bool {
	itemDate, err := time.Parse("2006-01-02", ex.Date)
	if err != nil {
		return false
	}
	if itemDate.Before(f.DateFrom) || itemDate.After(f.DateTo) {
		return false
	}

	if ex.Price == nil {
		return false
	}
	if *ex.Price < f.MinPrice || *ex.Price > f.MaxPrice {
		return false
	}

	if !equalFoldASCIIOrRu(f.ShkFilter, shkAny) {
		if ex.Shk == "" {
			return false
		}
		if !equalFoldASCIIOrRu(ex.Shk, f.ShkFilter) {
			return false
		}
	}

	return true
}

func equalFoldASCIIOrRu(a, b string) bool {
	return toLowerRu(a) == toLowerRu(b)
}

func toLowerRu(s string) string {
	r := []rune(s)
	for i, c := range r {
		switch {
		case c >= 'A' && c <= 'Z':
			r[i] = c + ('a' - 'A')
		case c >= 'А' && c <= 'Я':
			r[i] = c + ('а' - 'А')
		case c == 'Ё':
			r[i] = 'ё'
		}
	}
	return string(r)
}
