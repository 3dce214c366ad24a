package core

import (
	"math"
	"time"
)

// DefaultHorizonMonths is the standard forward-projection window.
const DefaultHorizonMonths = 12

// ForecastBucket is one calendar-month slot of the forward projection.
type ForecastBucket struct {
	// Label is the three-letter month abbreviation, e.g. "Mar".
	Label string
	Year  int
	// Month is 1-12.
	Month int
	// Cost is the expected outflow for this month in reference units,
	// rounded to two decimals after summation.
	Cost float64
	// ActiveCount is the flat count of active records, not the number of
	// records contributing to this bucket. The dashboard renders it as an
	// occupancy indicator per bucket.
	ActiveCount int
}

// ProjectMonths builds the forward cash-flow series: exactly `horizon`
// month buckets starting at the current calendar month. Per-cycle recurrence
// is anchored to each record's next-payment month:
//
//   - monthly records recur in every bucket at or after their anchor month
//   - quarterly records recur every third month from their anchor
//   - yearly and one-time records hit only the bucket matching their anchor
//
// Paused records and records with an unknown payment date contribute
// nothing. A non-positive horizon falls back to DefaultHorizonMonths.
func ProjectMonths(subs []Subscription, horizon int, now time.Time) []ForecastBucket {
	if horizon <= 0 {
		horizon = DefaultHorizonMonths
	}

	buckets := make([]ForecastBucket, horizon)
	startYear, startMonth := now.Year(), int(now.Month())
	for i := range buckets {
		y := startYear + (startMonth-1+i)/12
		m := (startMonth-1+i)%12 + 1
		buckets[i] = ForecastBucket{
			Label: time.Month(m).String()[:3],
			Year:  y,
			Month: m,
		}
	}

	activeCount := 0
	for _, s := range subs {
		if !s.Active {
			continue
		}
		activeCount++
		if !s.NextPayment.Known() {
			continue
		}
		price := s.PriceEUR()
		anchorY, anchorM := s.NextPayment.Year(), s.NextPayment.Month()
		for i := range buckets {
			diff := (buckets[i].Year-anchorY)*12 + (buckets[i].Month - anchorM)
			switch s.Cycle {
			case Quarterly:
				if diff >= 0 && diff%3 == 0 {
					buckets[i].Cost += price
				}
			case Yearly, OneTime:
				if diff == 0 {
					buckets[i].Cost += price
				}
			default:
				// Monthly and the unrecognized-cycle fallback: recurs
				// indefinitely from the anchor month on.
				if diff >= 0 {
					buckets[i].Cost += price
				}
			}
		}
	}

	for i := range buckets {
		buckets[i].Cost = math.Round(buckets[i].Cost*100) / 100
		buckets[i].ActiveCount = activeCount
	}
	return buckets
}
