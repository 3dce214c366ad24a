package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"subtrackr/internal/core"
)

// Receipt lifecycle states.
const (
	ReceiptUploading  = "uploading"
	ReceiptProcessing = "processing"
	ReceiptPending    = "pending"
	ReceiptConfirmed  = "confirmed"
	ReceiptRejected   = "rejected"
	ReceiptError      = "error"
)

// ValidReceiptStatus reports whether s is a known lifecycle state.
func ValidReceiptStatus(s string) bool {
	switch s {
	case ReceiptUploading, ReceiptProcessing, ReceiptPending,
		ReceiptConfirmed, ReceiptRejected, ReceiptError:
		return true
	}
	return false
}

// ReceiptDraft holds the extracted subscription fields awaiting review.
type ReceiptDraft struct {
	Name        string
	Category    string
	PriceCents  int64
	Currency    string
	Cycle       core.BillingCycle
	NextPayment core.Date
}

// PendingReceipt is an uploaded receipt moving through extraction and review.
type PendingReceipt struct {
	ID               string
	Status           string
	OriginalFilename string
	FileType         string
	StorageKey       string
	Draft            ReceiptDraft
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const receiptColumns = `id, status, original_filename, file_type, storage_key,
	draft_name, draft_category, draft_price_cents, draft_currency, draft_cycle,
	draft_next_payment, error_message, created_at, updated_at`

func scanReceipt(row interface{ Scan(...any) error }) (PendingReceipt, error) {
	var (
		p           PendingReceipt
		nextPayment string
	)
	err := row.Scan(&p.ID, &p.Status, &p.OriginalFilename, &p.FileType, &p.StorageKey,
		&p.Draft.Name, &p.Draft.Category, &p.Draft.PriceCents, &p.Draft.Currency,
		&p.Draft.Cycle, &nextPayment, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PendingReceipt{}, err
	}
	d, err := core.ParseDate(nextPayment)
	if err != nil {
		return PendingReceipt{}, fmt.Errorf("parse draft_next_payment: %w", err)
	}
	p.Draft.NextPayment = d
	return p, nil
}

// CreateReceipt inserts a new receipt in the uploading state.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, id, filename, fileType, storageKey string) (PendingReceipt, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_receipts (id, status, original_filename, file_type, storage_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ReceiptUploading, filename, fileType, storageKey, now, now)
	if err != nil {
		return PendingReceipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	return PendingReceipt{
		ID:               id,
		Status:           ReceiptUploading,
		OriginalFilename: filename,
		FileType:         fileType,
		StorageKey:       storageKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// GetReceipt returns a single receipt by ID.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (PendingReceipt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+receiptColumns+`
		FROM pending_receipts
		WHERE id = ?`, id)

	p, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingReceipt{}, ErrNotFound
	}
	if err != nil {
		return PendingReceipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return p, nil
}

// ListReceipts returns all receipts, newest first.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]PendingReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM pending_receipts
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []PendingReceipt
	for rows.Next() {
		p, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

// SetReceiptStatus moves a receipt to the given state, clearing any error message.
func (r *SQLiteRepository) SetReceiptStatus(ctx context.Context, id, status string) error {
	if !ValidReceiptStatus(status) {
		return fmt.Errorf("invalid receipt status %q", status)
	}
	return r.updateReceipt(ctx, id, `
		UPDATE pending_receipts
		SET status = ?, error_message = '', updated_at = ?
		WHERE id = ?`, status, time.Now().UTC(), id)
}

// SetReceiptDraft stores extracted fields and moves the receipt into review.
func (r *SQLiteRepository) SetReceiptDraft(ctx context.Context, id string, d ReceiptDraft) error {
	return r.updateReceipt(ctx, id, `
		UPDATE pending_receipts
		SET status = ?, draft_name = ?, draft_category = ?, draft_price_cents = ?,
			draft_currency = ?, draft_cycle = ?, draft_next_payment = ?,
			error_message = '', updated_at = ?
		WHERE id = ?`,
		ReceiptPending, d.Name, d.Category, d.PriceCents, d.Currency, d.Cycle,
		d.NextPayment.String(), time.Now().UTC(), id)
}

// SetReceiptError moves the receipt into the error state with a message.
func (r *SQLiteRepository) SetReceiptError(ctx context.Context, id, message string) error {
	return r.updateReceipt(ctx, id, `
		UPDATE pending_receipts
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`, ReceiptError, message, time.Now().UTC(), id)
}

func (r *SQLiteRepository) updateReceipt(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update receipt %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
