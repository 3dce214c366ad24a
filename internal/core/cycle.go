package core

import "time"

// MonthlyCost is the record's contribution to the recurring monthly baseline,
// in reference units. One-time charges contribute nothing; an unrecognized
// cycle is treated as monthly (explicit forward-compatibility fallback, see
// ValidCycle for the boundary check).
func MonthlyCost(s Subscription) float64 {
	price := s.PriceEUR()
	switch s.Cycle {
	case OneTime:
		return 0
	case Quarterly:
		return price / 3
	case Yearly:
		return price / 12
	default:
		return price
	}
}

// YearlyCost is the record's yearly-equivalent contribution in reference
// units. For one-time records the contribution is point-in-time: it counts
// only when the payment date falls in the current calendar year, not in a
// rolling 12-month window.
func YearlyCost(s Subscription, now time.Time) float64 {
	price := s.PriceEUR()
	switch s.Cycle {
	case OneTime:
		if s.NextPayment.Known() && s.NextPayment.Year() == now.Year() {
			return price
		}
		return 0
	case Quarterly:
		return price * 4
	case Yearly:
		return price
	default:
		return price * 12
	}
}
