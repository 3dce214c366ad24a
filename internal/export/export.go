// Package export renders subscription lists as CSV and XLSX downloads.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"subtrackr/internal/core"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("export: no subscriptions to export")

var headers = []string{
	"Name",
	"Category",
	"Price",
	"Currency",
	"Cycle",
	"Next Payment",
	"Reminder (Days)",
	"Active",
	"Website",
	"Notes",
	"Created At",
}

func row(s core.Subscription) []string {
	active := "No"
	if s.Active {
		active = "Yes"
	}
	created := ""
	if !s.CreatedAt.IsZero() {
		created = s.CreatedAt.Format("2006-01-02")
	}
	return []string{
		s.Name,
		s.Category,
		s.Price.String(),
		s.Currency,
		string(s.Cycle),
		s.NextPayment.String(),
		fmt.Sprintf("%d", s.ReminderDays),
		active,
		s.Website,
		s.Notes,
		created,
	}
}

// WriteCSV writes the subscriptions as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, subs []core.Subscription) error {
	if len(subs) == 0 {
		return ErrNoRecords
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range subs {
		if err := cw.Write(row(s)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

const sheetName = "Subscriptions"

// WriteXLSX writes the subscriptions as a single-sheet workbook.
func WriteXLSX(w io.Writer, subs []core.Subscription) error {
	if len(subs) == 0 {
		return ErrNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("set header cell: %w", err)
		}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheetName, "A1", last, boldStyle)
	}

	for i, s := range subs {
		values := row(s)
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("set cell: %w", err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
