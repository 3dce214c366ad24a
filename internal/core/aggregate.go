package core

import (
	"math"
	"sort"
	"time"
)

type (
	// Summary holds the portfolio-level totals, all in reference units.
	Summary struct {
		MonthlyTotal    float64
		YearlyTotal     float64
		OneTimeThisYear float64
		ActiveCount     int
	}

	// CategoryTotal is one row of the category breakdown.
	CategoryTotal struct {
		Category     string
		Count        int
		MonthlyTotal float64
		// Percent of the monthly grand total, rounded to one decimal.
		// Zero when the grand total is zero.
		Percent float64
	}

	// RankedSubscription pairs a record with its monthly-equivalent cost for
	// the top-N ranking.
	RankedSubscription struct {
		Subscription
		MonthlyEUR float64
	}
)

// Summarize computes the portfolio totals over the record set. Paused records
// are excluded entirely; one-time records feed only OneTimeThisYear, and only
// when their payment date falls in the current calendar year.
func Summarize(subs []Subscription, now time.Time) Summary {
	var sum Summary
	for _, s := range subs {
		if !s.Active {
			continue
		}
		sum.ActiveCount++
		if s.Cycle == OneTime {
			if s.NextPayment.Known() && s.NextPayment.Year() == now.Year() {
				sum.OneTimeThisYear += s.PriceEUR()
			}
			continue
		}
		sum.MonthlyTotal += MonthlyCost(s)
		sum.YearlyTotal += YearlyCost(s, now)
	}
	return sum
}

// CategoryBreakdown groups active records by category with their monthly-
// equivalent totals, sorted descending by total. One-time records count
// toward a category's record count but contribute zero to its total.
// An empty active set yields an empty (non-nil) slice.
func CategoryBreakdown(subs []Subscription) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)
	order := make([]string, 0)
	var grand float64
	for _, s := range subs {
		if !s.Active {
			continue
		}
		ct, ok := totals[s.Category]
		if !ok {
			ct = &CategoryTotal{Category: s.Category}
			totals[s.Category] = ct
			order = append(order, s.Category)
		}
		ct.Count++
		m := MonthlyCost(s)
		ct.MonthlyTotal += m
		grand += m
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		out = append(out, *totals[cat])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MonthlyTotal > out[j].MonthlyTotal
	})
	for i := range out {
		if grand > 0 {
			out[i].Percent = math.Round(out[i].MonthlyTotal/grand*1000) / 10
		}
	}
	return out
}

// TopExpensive ranks active recurring records descending by monthly-
// equivalent cost and returns at most n of them. Ties keep input order.
// Fewer than n eligible records returns all of them without padding.
func TopExpensive(subs []Subscription, n int) []RankedSubscription {
	ranked := make([]RankedSubscription, 0, len(subs))
	for _, s := range subs {
		if !s.Active || s.Cycle == OneTime {
			continue
		}
		ranked = append(ranked, RankedSubscription{Subscription: s, MonthlyEUR: MonthlyCost(s)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MonthlyEUR > ranked[j].MonthlyEUR
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// UpcomingPayments returns active recurring records whose next payment falls
// within the next `days` days (inclusive of today), soonest first.
func UpcomingPayments(subs []Subscription, days int, now time.Time) []Subscription {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, days)
	out := make([]Subscription, 0)
	for _, s := range subs {
		if !s.Active || s.Cycle == OneTime || !s.NextPayment.Known() {
			continue
		}
		d := s.NextPayment.Time
		if d.Before(today) || d.After(cutoff) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextPayment.Time.Before(out[j].NextPayment.Time)
	})
	return out
}
