package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Monthly   BillingCycle = "monthly"
	Quarterly BillingCycle = "quarterly"
	Yearly    BillingCycle = "yearly"
	OneTime   BillingCycle = "one_time"
)

// DefaultCategory is assigned to records whose category is unknown.
const DefaultCategory = "Other"

// Categories is the closed set of category labels.
var Categories = []string{
	"AI",
	"Hosting",
	"Entertainment",
	"Development",
	"Design",
	"Productivity",
	"Cloud Storage",
	"Security",
	DefaultCategory,
}

// PaymentMethods is the closed set of payment method labels.
var PaymentMethods = []string{"paypal", "credit_card", "sepa", "bank_transfer", "other"}

type (
	BillingCycle string

	// Date is a calendar day without a time component. The zero value means
	// "unknown"; records with an unknown next-payment date are excluded from
	// all date-dependent computations.
	Date struct {
		time.Time
	}

	// Subscription is the unit the aggregation engine operates on. Instances
	// are validated once at the record-source boundary; the engine assumes a
	// fully-typed, already-defaulted record.
	Subscription struct {
		ID            string
		Name          string
		Category      string
		Price         Money
		Currency      string
		Cycle         BillingCycle
		NextPayment   Date
		PaymentMethod string
		Color         string
		Website       string
		Notes         string
		ReminderDays  int
		Active        bool
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

var (
	ErrEmptyName      = errors.New("name is required")
	ErrNameTooLong    = errors.New("name too long (max 255 characters)")
	ErrInvalidPrice   = errors.New("invalid price")
	ErrInvalidCycle   = errors.New("invalid billing cycle")
	ErrInvalidDate    = errors.New("invalid date")
	ErrDateOutOfRange = errors.New("date too far in the past or future")
	ErrInvalidColor   = errors.New("invalid color (format: #RRGGBB)")
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ParseDate parses a YYYY-MM-DD calendar date. The empty string yields the
// zero Date without error; anything else unparseable is an error.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Known reports whether the date carries a real calendar value.
func (d Date) Known() bool {
	return !d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" for the zero value.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Year returns the calendar year, 0 for the zero value.
func (d Date) Year() int {
	if d.IsZero() {
		return 0
	}
	return d.Time.Year()
}

// Month returns the calendar month as 1-12, 0 for the zero value.
func (d Date) Month() int {
	if d.IsZero() {
		return 0
	}
	return int(d.Time.Month())
}

// ValidCycle reports whether c is one of the four closed billing cycles.
func ValidCycle(c BillingCycle) bool {
	switch c {
	case Monthly, Quarterly, Yearly, OneTime:
		return true
	}
	return false
}

// NormalizeCategory maps unknown category labels to DefaultCategory.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return DefaultCategory
}

// Recurring reports whether the record charges repeatedly. One-time records
// never contribute to the recurring monthly baseline.
func (s Subscription) Recurring() bool {
	return s.Cycle != OneTime
}

// Validate enforces the record-source boundary invariants. The engine itself
// never validates; malformed fields that slip past here degrade to zero
// contribution per the engine's fallback rules.
func (s Subscription) Validate(now time.Time) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 255 {
		return ErrNameTooLong
	}
	if err := s.Price.Validate(); err != nil {
		return err
	}
	if !ValidCycle(s.Cycle) {
		return ErrInvalidCycle
	}
	if !s.NextPayment.Known() {
		return ErrInvalidDate
	}
	// Reject dates more than ten years away in either direction.
	if s.NextPayment.Time.Before(now.AddDate(-10, 0, 0)) || s.NextPayment.Time.After(now.AddDate(10, 0, 0)) {
		return ErrDateOutOfRange
	}
	if s.Color != "" && !colorPattern.MatchString(s.Color) {
		return ErrInvalidColor
	}
	if len(s.Notes) > 2000 {
		return errors.New("notes too long (max 2000 characters)")
	}
	return nil
}
