// Package core implements the monthly-cashflow projection and
// category-aggregation engine: pure functions that turn a list of
// heterogeneous billing records into normalized cost bases, a forward
// cash-flow projection, and category/ranking breakdowns.
//
// Every function here is side-effect free and safe for concurrent use.
// Functions that depend on the calendar take the current time as an explicit
// parameter; callers sample the clock once per pass.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxPriceCents bounds a record's price at 999,999.99 in its own currency.
const MaxPriceCents int64 = 99_999_999

// Money is a non-negative amount in cents of the record's own currency.
// Cents avoid float drift in storage and transport; the engine converts to
// reference-currency floats only when aggregating.
type Money struct {
	Cents int64
}

// ParsePrice converts a decimal string to Money. It accepts both dot and
// comma decimal separators and at most two fractional digits. Negative,
// non-numeric, and out-of-bound values are rejected; zero is allowed.
//
//	ParsePrice("12.34") -> {1234}
//	ParsePrice("12,3")  -> {1230}
//	ParsePrice("12.345") -> error (too many decimals)
func ParsePrice(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidPrice
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidPrice
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidPrice
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return Money{}, ErrInvalidPrice
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidPrice
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidPrice
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
		}
	}
	if iv > MaxPriceCents/100 {
		return Money{}, ErrInvalidPrice
	}
	cents := iv*100 + frac
	if cents > MaxPriceCents {
		return Money{}, ErrInvalidPrice
	}
	return Money{Cents: cents}, nil
}

// Validate checks the price bounds. Zero is a valid price (free tiers).
func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxPriceCents {
		return ErrInvalidPrice
	}
	return nil
}

// Amount returns the decimal value as a float64 for engine math and display.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "17.99".
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", m.Cents/100, m.Cents%100)
}
