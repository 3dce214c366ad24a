package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"subtrackr/internal/core"
	"subtrackr/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidPrice,
	core.ErrInvalidCycle,
	core.ErrInvalidDate,
	core.ErrDateOutOfRange,
	core.ErrInvalidColor,
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = "internal error"
	}
	respondError(w, status, msg)
}

type subscriptionJSON struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Price         string `json:"price"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	BillingCycle  string `json:"billingCycle"`
	NextPayment   string `json:"nextPayment,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Color         string `json:"color,omitempty"`
	Website       string `json:"website,omitempty"`
	Notes         string `json:"notes,omitempty"`
	ReminderDays  int    `json:"reminderDays"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func toSubscriptionJSON(s core.Subscription) subscriptionJSON {
	out := subscriptionJSON{
		ID:            s.ID,
		Name:          s.Name,
		Category:      s.Category,
		Price:         s.Price.String(),
		PriceCents:    s.Price.Cents,
		Currency:      s.Currency,
		BillingCycle:  string(s.Cycle),
		PaymentMethod: s.PaymentMethod,
		Color:         s.Color,
		Website:       s.Website,
		Notes:         s.Notes,
		ReminderDays:  s.ReminderDays,
		Active:        s.Active,
	}
	if s.NextPayment.Known() {
		out.NextPayment = s.NextPayment.String()
	}
	if !s.CreatedAt.IsZero() {
		out.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		out.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toSubscriptionList(subs []core.Subscription) []subscriptionJSON {
	out := make([]subscriptionJSON, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionJSON(s))
	}
	return out
}

type receiptDraftJSON struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Cycle       string `json:"billingCycle"`
	NextPayment string `json:"nextPayment,omitempty"`
}

type receiptJSON struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	OriginalFilename string            `json:"originalFilename"`
	FileType         string            `json:"fileType"`
	Draft            *receiptDraftJSON `json:"draft,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	CreatedAt        string            `json:"createdAt"`
	UpdatedAt        string            `json:"updatedAt"`
}

func toReceiptJSON(r storage.PendingReceipt) receiptJSON {
	out := receiptJSON{
		ID:               r.ID,
		Status:           r.Status,
		OriginalFilename: r.OriginalFilename,
		FileType:         r.FileType,
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.Draft.Name != "" {
		draft := &receiptDraftJSON{
			Name:     r.Draft.Name,
			Category: r.Draft.Category,
			Price:    core.Money{Cents: r.Draft.PriceCents}.String(),
			Currency: r.Draft.Currency,
			Cycle:    string(r.Draft.Cycle),
		}
		if r.Draft.NextPayment.Known() {
			draft.NextPayment = r.Draft.NextPayment.String()
		}
		out.Draft = draft
	}
	return out
}

func toReceiptList(receipts []storage.PendingReceipt) []receiptJSON {
	out := make([]receiptJSON, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, toReceiptJSON(r))
	}
	return out
}
