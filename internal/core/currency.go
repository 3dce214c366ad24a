package core

import "sort"

// ReferenceCurrency is the single currency all amounts are normalized into
// before aggregation. Totals never mix currencies.
const ReferenceCurrency = "EUR"

// exchangeRates is a static snapshot of conversion factors into the
// reference currency. Rates are compiled in and never fetched live; rate
// skew over time is an accepted limitation of this design.
var exchangeRates = map[string]float64{
	"EUR": 1.0,
	"USD": 0.92,
	"GBP": 1.17,
	"CHF": 1.05,
	"JPY": 0.0062,
	"CAD": 0.66,
	"AUD": 0.60,
}

// Rate returns the conversion factor from the given currency into the
// reference currency. Unknown codes fall back to 1.0 so malformed data never
// aborts an aggregation.
func Rate(currency string) float64 {
	if r, ok := exchangeRates[currency]; ok {
		return r
	}
	return 1.0
}

// ToEUR converts an amount in the given currency into reference units.
// No rounding happens here; rounding to two decimals belongs to the
// display and bucket boundaries.
func ToEUR(amount float64, currency string) float64 {
	return amount * Rate(currency)
}

// SupportedCurrencies lists the codes present in the rate table, reference
// currency first, the rest sorted. Derived from the table so the two cannot
// drift apart.
func SupportedCurrencies() []string {
	out := []string{ReferenceCurrency}
	for c := range exchangeRates {
		if c != ReferenceCurrency {
			out = append(out, c)
		}
	}
	sort.Strings(out[1:])
	return out
}

// KnownCurrency reports whether the code is present in the rate table.
func KnownCurrency(currency string) bool {
	_, ok := exchangeRates[currency]
	return ok
}

// PriceEUR is the record's price converted into reference units.
func (s Subscription) PriceEUR() float64 {
	return ToEUR(s.Price.Amount(), s.Currency)
}
