package core

import (
	"testing"
	"time"
)

func TestProjectMonthsWindow(t *testing.T) {
	// One monthly record at 10 EUR anchored to 2025-03-15, clock at
	// 2025-01-10: Jan and Feb show 0, Mar through Dec show 10.00.
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s := sub(1000, "EUR", Monthly, NewDate(2025, 3, 15))

	buckets := ProjectMonths([]Subscription{s}, 12, now)
	if len(buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(buckets))
	}
	if buckets[0].Label != "Jan" || buckets[0].Year != 2025 || buckets[0].Month != 1 {
		t.Fatalf("unexpected first bucket: %+v", buckets[0])
	}
	if buckets[11].Label != "Dec" || buckets[11].Year != 2025 || buckets[11].Month != 12 {
		t.Fatalf("unexpected last bucket: %+v", buckets[11])
	}
	for i, b := range buckets {
		want := 10.0
		if i < 2 {
			want = 0
		}
		if b.Cost != want {
			t.Fatalf("bucket %s %d: expected %v, got %v", b.Label, b.Year, want, b.Cost)
		}
	}
}

func TestProjectMonthsQuarterlyCadence(t *testing.T) {
	// Quarterly record, 30 EUR, anchored to 2025-02-01: charges land in
	// Feb, May, Aug and Nov only.
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := sub(3000, "EUR", Quarterly, NewDate(2025, 2, 1))

	buckets := ProjectMonths([]Subscription{s}, 12, now)
	chargeMonths := map[int]bool{2: true, 5: true, 8: true, 11: true}
	for _, b := range buckets {
		want := 0.0
		if chargeMonths[b.Month] {
			want = 30
		}
		if b.Cost != want {
			t.Fatalf("bucket %s: expected %v, got %v", b.Label, want, b.Cost)
		}
	}
}

func TestProjectMonthsYearlyAndOneTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	yearly := sub(12000, "EUR", Yearly, NewDate(2025, 6, 12))
	oneTime := sub(5000, "EUR", OneTime, NewDate(2025, 4, 3))

	buckets := ProjectMonths([]Subscription{yearly, oneTime}, 12, now)
	for _, b := range buckets {
		var want float64
		switch b.Month {
		case 6:
			want = 120
		case 4:
			want = 50
		}
		if b.Cost != want {
			t.Fatalf("bucket %s: expected %v, got %v", b.Label, want, b.Cost)
		}
	}
}

func TestProjectMonthsYearRollover(t *testing.T) {
	now := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	buckets := ProjectMonths(nil, 4, now)
	want := []struct {
		label string
		year  int
		month int
	}{
		{"Nov", 2025, 11}, {"Dec", 2025, 12}, {"Jan", 2026, 1}, {"Feb", 2026, 2},
	}
	for i, w := range want {
		if buckets[i].Label != w.label || buckets[i].Year != w.year || buckets[i].Month != w.month {
			t.Fatalf("bucket %d: expected %v, got %+v", i, w, buckets[i])
		}
	}
}

func TestProjectMonthsExclusions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	paused := sub(1000, "EUR", Monthly, NewDate(2025, 1, 1))
	paused.Active = false
	noDate := sub(1000, "EUR", Monthly, Date{})

	buckets := ProjectMonths([]Subscription{paused, noDate}, 12, now)
	for _, b := range buckets {
		if b.Cost != 0 {
			t.Fatalf("excluded records must contribute nothing, bucket %s has %v", b.Label, b.Cost)
		}
	}
	// A record without a parseable date still counts as active occupancy.
	if buckets[0].ActiveCount != 1 {
		t.Fatalf("expected active count 1, got %d", buckets[0].ActiveCount)
	}
}

func TestProjectMonthsActiveCountIsFlat(t *testing.T) {
	// The per-bucket count reports all active records, not just the ones
	// charging in that month; the dashboard renders it as an occupancy
	// indicator.
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	yearly := sub(12000, "EUR", Yearly, NewDate(2025, 6, 12))
	monthly := sub(1000, "EUR", Monthly, NewDate(2025, 1, 1))

	buckets := ProjectMonths([]Subscription{yearly, monthly}, 12, now)
	for _, b := range buckets {
		if b.ActiveCount != 2 {
			t.Fatalf("bucket %s: expected flat count 2, got %d", b.Label, b.ActiveCount)
		}
	}
}

func TestProjectMonthsRounding(t *testing.T) {
	// 10 USD at 0.92 -> 9.2 each; three of them sum to 27.599999... which
	// must surface as 27.6 at the bucket boundary.
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := []Subscription{
		sub(1000, "USD", Monthly, NewDate(2025, 1, 1)),
		sub(1000, "USD", Monthly, NewDate(2025, 1, 1)),
		sub(1000, "USD", Monthly, NewDate(2025, 1, 1)),
	}
	buckets := ProjectMonths(subs, 1, now)
	if buckets[0].Cost != 27.6 {
		t.Fatalf("expected 27.6 after bucket rounding, got %v", buckets[0].Cost)
	}
}

func TestProjectMonthsDefaultHorizon(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := len(ProjectMonths(nil, 0, now)); got != DefaultHorizonMonths {
		t.Fatalf("expected default horizon %d, got %d", DefaultHorizonMonths, got)
	}
	if got := len(ProjectMonths(nil, -3, now)); got != DefaultHorizonMonths {
		t.Fatalf("negative horizon should fall back, got %d", got)
	}
}
