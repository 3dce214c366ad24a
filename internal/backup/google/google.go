// Package google mirrors subscription rows into a Google Sheets worksheet.
package google

import (
	"context"
	"errors"
	"fmt"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"subtrackr/internal/backup"
	"subtrackr/internal/core"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ backup.RecordWriter = (*Client)(nil)

// NewClient builds a Sheets client. When credentialsJSON is empty,
// Application Default Credentials are used.
func NewClient(ctx context.Context, spreadsheetID, sheetName, credentialsJSON string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Subscriptions"
	}

	opts := []goption.ClientOption{
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
	if credentialsJSON != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func recordRow(s core.Subscription) []interface{} {
	return []interface{}{
		s.ID,
		s.Name,
		s.Category,
		s.Price.String(),
		s.Currency,
		string(s.Cycle),
		s.NextPayment.String(),
		s.Active,
		s.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// Upsert writes the subscription to its row, appending when the ID is
// not present yet. Rows are keyed by the ID in column A.
func (c *Client) Upsert(ctx context.Context, s core.Subscription) error {
	rowNum, err := c.findRow(ctx, s.ID)
	if err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]interface{}{recordRow(s)}}

	if rowNum == 0 {
		_, err = c.svc.Spreadsheets.Values.
			Append(c.spreadsheetID, fmt.Sprintf("%s!A:I", c.sheetName), values).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append row: %w", err)
		}
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("%s!A%d:I%d", c.sheetName, rowNum, rowNum), values).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	return nil
}

// Remove clears the row holding the given ID. Unknown IDs are a no-op.
func (c *Client) Remove(ctx context.Context, id string) error {
	rowNum, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, fmt.Sprintf("%s!A%d:I%d", c.sheetName, rowNum, rowNum), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row: %w", err)
	}
	return nil
}

// findRow returns the 1-based row number holding the ID, or 0 when absent.
func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, fmt.Sprintf("%s!A:A", c.sheetName)).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column: %w", err)
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v, ok := row[0].(string); ok && v == id {
			return i + 1, nil
		}
	}
	return 0, nil
}
