package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"subtrackr/internal/core"
)

func sampleSubscriptions() []core.Subscription {
	next, _ := core.ParseDate("2025-03-15")
	return []core.Subscription{
		{
			ID:           "1",
			Name:         "ChatGPT Plus",
			Category:     "AI",
			Price:        core.Money{Cents: 2300},
			Currency:     "USD",
			Cycle:        core.Monthly,
			NextPayment:  next,
			ReminderDays: 3,
			Active:       true,
			Website:      "https://openai.com",
			Notes:        `includes "Plus" tier`,
			CreatedAt:    time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:       "2",
			Name:     "Domain, example.org",
			Category: "Hosting",
			Price:    core.Money{Cents: 1200},
			Currency: "EUR",
			Cycle:    core.Yearly,
			Active:   false,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSubscriptions()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading generated CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(records))
	}
	if records[0][0] != "Name" || records[0][4] != "Cycle" {
		t.Errorf("header = %v", records[0])
	}

	first := records[1]
	if first[0] != "ChatGPT Plus" || first[2] != "23.00" || first[3] != "USD" || first[4] != "monthly" {
		t.Errorf("first row = %v", first)
	}
	if first[5] != "2025-03-15" || first[7] != "Yes" || first[10] != "2024-11-02" {
		t.Errorf("first row dates/active = %v", first)
	}
	if first[9] != `includes "Plus" tier` {
		t.Errorf("notes escaping lost: %q", first[9])
	}

	second := records[2]
	if second[0] != "Domain, example.org" {
		t.Errorf("comma in name must survive round trip, got %q", second[0])
	}
	if second[5] != "" || second[7] != "No" || second[10] != "" {
		t.Errorf("second row = %v", second)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); !errors.Is(err, ErrNoRecords) {
		t.Errorf("WriteCSV(nil) error = %v, want ErrNoRecords", err)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleSubscriptions()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Subscriptions")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(rows))
	}
	if rows[0][0] != "Name" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "ChatGPT Plus" || rows[1][2] != "23.00" {
		t.Errorf("first row = %v", rows[1])
	}
	if !strings.EqualFold(rows[2][4], "yearly") {
		t.Errorf("second row cycle = %q", rows[2][4])
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, []core.Subscription{}); !errors.Is(err, ErrNoRecords) {
		t.Errorf("WriteXLSX(empty) error = %v, want ErrNoRecords", err)
	}
}
