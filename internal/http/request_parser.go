package http

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"subtrackr/internal/core"
)

// maxBodyBytes caps JSON request bodies. Receipt uploads have their own
// multipart limit.
const maxBodyBytes = 1 << 20

// subscriptionPayload is the wire shape of a create/update request. Price
// arrives as a decimal string or JSON number; both go through ParsePrice so
// float artifacts never reach the cent representation.
type subscriptionPayload struct {
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Price         json.Number `json:"price"`
	Currency      string      `json:"currency"`
	BillingCycle  string      `json:"billingCycle"`
	NextPayment   string      `json:"nextPayment"`
	PaymentMethod string      `json:"paymentMethod"`
	Color         string      `json:"color"`
	Website       string      `json:"website"`
	Notes         string      `json:"notes"`
	ReminderDays  int         `json:"reminderDays"`
	Active        *bool       `json:"active"`
}

func decodeSubscriptionPayload(body io.Reader) (subscriptionPayload, error) {
	var p subscriptionPayload
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return subscriptionPayload{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return p, nil
}

// toSubscription converts the payload into a typed record. Validation of the
// result happens in the service layer.
func (p subscriptionPayload) toSubscription() (core.Subscription, error) {
	price, err := core.ParsePrice(p.Price.String())
	if err != nil {
		return core.Subscription{}, err
	}

	next, err := core.ParseDate(strings.TrimSpace(p.NextPayment))
	if err != nil {
		return core.Subscription{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = core.ReferenceCurrency
	}

	active := true
	if p.Active != nil {
		active = *p.Active
	}

	return core.Subscription{
		Name:          strings.TrimSpace(p.Name),
		Category:      strings.TrimSpace(p.Category),
		Price:         price,
		Currency:      currency,
		Cycle:         core.BillingCycle(strings.TrimSpace(p.BillingCycle)),
		NextPayment:   next,
		PaymentMethod: strings.TrimSpace(p.PaymentMethod),
		Color:         strings.TrimSpace(p.Color),
		Website:       strings.TrimSpace(p.Website),
		Notes:         p.Notes,
		ReminderDays:  p.ReminderDays,
		Active:        active,
	}, nil
}
