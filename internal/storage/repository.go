package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"subtrackr/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or has been soft deleted.
var ErrNotFound = errors.New("storage: not found")

// Sync states for the backup queue.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const subscriptionColumns = `id, name, category, price_cents, currency, billing_cycle,
	next_payment, payment_method, color, website, notes, reminder_days, active,
	created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (core.Subscription, error) {
	var (
		s           core.Subscription
		id          int64
		nextPayment sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(&id, &s.Name, &s.Category, &s.Price.Cents, &s.Currency, &s.Cycle,
		&nextPayment, &s.PaymentMethod, &s.Color, &s.Website, &s.Notes,
		&s.ReminderDays, &s.Active, &createdAt, &updatedAt)
	if err != nil {
		return core.Subscription{}, err
	}
	s.ID = strconv.FormatInt(id, 10)
	if nextPayment.Valid {
		d, err := core.ParseDate(nextPayment.String)
		if err != nil {
			return core.Subscription{}, fmt.Errorf("parse next_payment: %w", err)
		}
		s.NextPayment = d
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	return s, nil
}

func nullDate(d core.Date) sql.NullString {
	if !d.Known() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// CreateSubscription inserts a subscription and returns it with its assigned ID.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (name, category, price_cents, currency, billing_cycle,
			next_payment, payment_method, color, website, notes, reminder_days, active,
			sync_status, sync_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.Name, s.Category, s.Price.Cents, s.Currency, s.Cycle,
		nullDate(s.NextPayment), s.PaymentMethod, s.Color, s.Website, s.Notes,
		s.ReminderDays, s.Active, SyncPending, now, now)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("last insert id: %w", err)
	}

	s.ID = strconv.FormatInt(id, 10)
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

// GetSubscription returns a single live subscription by ID.
func (r *SQLiteRepository) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	numID, err := parseID(id)
	if err != nil {
		return core.Subscription{}, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = ? AND deleted_at IS NULL`, numID)

	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListSubscriptions returns all live subscriptions, newest first.
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// UpdateSubscription overwrites all mutable fields and bumps the sync version.
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	numID, err := parseID(s.ID)
	if err != nil {
		return core.Subscription{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = ?, category = ?, price_cents = ?, currency = ?, billing_cycle = ?,
			next_payment = ?, payment_method = ?, color = ?, website = ?, notes = ?,
			reminder_days = ?, active = ?,
			sync_status = ?, sync_version = sync_version + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		s.Name, s.Category, s.Price.Cents, s.Currency, s.Cycle,
		nullDate(s.NextPayment), s.PaymentMethod, s.Color, s.Website, s.Notes,
		s.ReminderDays, s.Active, SyncPending, now, numID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.Subscription{}, ErrNotFound
	}

	return r.GetSubscription(ctx, s.ID)
}

// DeleteSubscription soft deletes a subscription. The row is kept so the
// backup worker can propagate the removal.
func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, id string) error {
	numID, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET deleted_at = ?, sync_status = ?, sync_version = sync_version + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), SyncPending, time.Now().UTC(), numID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
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

// PendingSyncRecord is the minimal row handed to the backup worker.
type PendingSyncRecord struct {
	ID      int64
	Version int64
	Deleted bool
}

// GetPendingSyncSubscriptions returns rows waiting for a backup push,
// oldest first. Soft-deleted rows are included so deletions propagate.
func (r *SQLiteRepository) GetPendingSyncSubscriptions(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sync_version, deleted_at IS NOT NULL
		FROM subscriptions
		WHERE sync_status = ?
		ORDER BY updated_at ASC
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync subscriptions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncRecord
	for rows.Next() {
		var p PendingSyncRecord
		if err := rows.Scan(&p.ID, &p.Version, &p.Deleted); err != nil {
			return nil, fmt.Errorf("scan pending sync record: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync records: %w", err)
	}
	return pending, nil
}

// GetSubscriptionAnyState returns a subscription including soft-deleted rows.
// The backup worker needs deleted rows to mirror removals.
func (r *SQLiteRepository) GetSubscriptionAnyState(ctx context.Context, id int64) (core.Subscription, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`, deleted_at IS NOT NULL
		FROM subscriptions
		WHERE id = ?`, id)

	var (
		s           core.Subscription
		rawID       int64
		nextPayment sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
		deleted     bool
	)
	err := row.Scan(&rawID, &s.Name, &s.Category, &s.Price.Cents, &s.Currency, &s.Cycle,
		&nextPayment, &s.PaymentMethod, &s.Color, &s.Website, &s.Notes,
		&s.ReminderDays, &s.Active, &createdAt, &updatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, false, ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, false, fmt.Errorf("get subscription any state: %w", err)
	}
	s.ID = strconv.FormatInt(rawID, 10)
	if nextPayment.Valid {
		d, err := core.ParseDate(nextPayment.String)
		if err != nil {
			return core.Subscription{}, false, fmt.Errorf("parse next_payment: %w", err)
		}
		s.NextPayment = d
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	return s, deleted, nil
}

// GetSyncVersion returns the current sync version of a row, including
// soft-deleted rows.
func (r *SQLiteRepository) GetSyncVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		SELECT sync_version FROM subscriptions WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get sync version: %w", err)
	}
	return version, nil
}

// MarkSynced records a successful backup push. The version guard keeps a
// concurrent update from being flagged as synced.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET sync_status = ?
		WHERE id = ? AND sync_version = ?`, SyncSynced, id, version)
	if err != nil {
		return fmt.Errorf("mark subscription synced: %w", err)
	}
	return nil
}

// MarkSyncError records a failed backup push.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET sync_status = ?
		WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark subscription sync error: %w", err)
	}
	return nil
}

func parseID(id string) (int64, error) {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return numID, nil
}
