package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/kr/pretty"
)

func mustTime(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExtractEmployerBasic(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")
	got, ok := Extract("Требуется сотрудник на ПВЗ Озон, ставка 2600, шк 100", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Type != "employer" {
		t.Errorf("type = %q, want employer", got.Type)
	}
	if got.Price == nil || *got.Price != 2600 {
		t.Errorf("price = %v, want 2600", got.Price)
	}
	if got.Shk != "100" {
		t.Errorf("shk = %q, want 100", got.Shk)
	}
}

func TestExtractWorkerBasic(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")
	got, ok := Extract("Выйду завтра, ищу смену, 3000", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Type != "worker" {
		t.Errorf("type = %q, want worker", got.Type)
	}
	if got.Date != "2026-02-02" {
		t.Errorf("date = %q, want 2026-02-02", got.Date)
	}
}

func TestExtractDayRollover(t *testing.T) {
	msg := mustTime("2026-02-28 14:30")
	got, ok := Extract("Выйду 1.03, 3000, шк 100", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Date != "2026-03-01" {
		t.Errorf("date = %q, want 2026-03-01", got.Date)
	}
}

func TestExtractNoSignalReturnsFalse(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")
	_, ok := Extract("Доброе утро всем!", msg)
	if ok {
		t.Fatal("expected extraction to fail for unrelated text")
	}
}

func TestExtractPriceMinForWorkerMaxForEmployer(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")

	worker, ok := Extract("Ищу смену, рассмотрю варианты, 25000 или 30000", msg)
	if !ok {
		t.Fatal("expected worker extraction to succeed")
	}
	if worker.Price == nil || *worker.Price != 25000 {
		t.Errorf("worker price = %v, want min 25000", worker.Price)
	}

	employer, ok := Extract("Требуется сотрудник, оплата 25000 или 30000", msg)
	if !ok {
		t.Fatal("expected employer extraction to succeed")
	}
	if employer.Price == nil || *employer.Price != 30000 {
		t.Errorf("employer price = %v, want max 30000", employer.Price)
	}
}

func TestExtractShkRange(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")
	got, ok := Extract("Требуется сотрудник, 2500, шк 50-100", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Shk != "50-100" {
		t.Errorf("shk = %q, want 50-100", got.Shk)
	}
}

func TestExtractShkQualitative(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")
	got, ok := Extract("Требуется сотрудник, 2500, шк - мало", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Shk != "мало" {
		t.Errorf("shk = %q, want мало", got.Shk)
	}
}

func intPtr(v int) *int { return &v }

func TestExtractTable(t *testing.T) {
	msg := mustTime("2026-02-01 10:00")

	cases := []struct {
		name string
		text string
		want Extracted
	}{
		{
			name: "employer with shk",
			text: "Требуется сотрудник на ПВЗ Озон, ставка 2600, шк 100",
			want: Extracted{Type: "employer", Date: "2026-02-01", Price: intPtr(2600), Shk: "100"},
		},
		{
			name: "worker with relative date",
			text: "Выйду завтра, ищу смену, 3000",
			want: Extracted{Type: "worker", Date: "2026-02-02", Price: intPtr(3000)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Extract(tc.text, msg)
			if !ok {
				t.Fatal("expected extraction to succeed")
			}
			if got.Type != tc.want.Type || got.Date != tc.want.Date || got.Shk != tc.want.Shk ||
				(got.Price == nil) != (tc.want.Price == nil) ||
				(got.Price != nil && *got.Price != *tc.want.Price) {
				t.Errorf("Extract(%q) mismatch:\n%s", tc.text, strings.Join(pretty.Diff(tc.want, got), "\n"))
			}
		})
	}
}

func TestExtractDefaultsToMessageDate(t *testing.T) {
	msg := mustTime("2026-02-10 09:00")
	got, ok := Extract("Требуется сотрудник, оплата 2700", msg)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got.Date != "2026-02-10" {
		t.Errorf("date = %q, want message date fallback", got.Date)
	}
}
