package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"subtrackr/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSubscription(name string) core.Subscription {
	next, _ := core.ParseDate("2025-03-15")
	return core.Subscription{
		Name:        name,
		Category:    "AI",
		Price:       core.Money{Cents: 1799},
		Currency:    "EUR",
		Cycle:       core.Monthly,
		NextPayment: next,
		Color:       "#3B82F6",
		Active:      true,
	}
}

func TestSubscriptionCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created, err := repo.CreateSubscription(ctx, testSubscription("ChatGPT Plus"))
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateSubscription() returned empty ID")
	}

	got, err := repo.GetSubscription(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if got.Name != "ChatGPT Plus" || got.Price.Cents != 1799 || got.Cycle != core.Monthly {
		t.Errorf("GetSubscription() = %+v, want created values", got)
	}
	if got.NextPayment.String() != "2025-03-15" {
		t.Errorf("NextPayment = %q, want 2025-03-15", got.NextPayment.String())
	}

	got.Name = "ChatGPT Pro"
	got.Price.Cents = 20000
	updated, err := repo.UpdateSubscription(ctx, got)
	if err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}
	if updated.Name != "ChatGPT Pro" || updated.Price.Cents != 20000 {
		t.Errorf("UpdateSubscription() = %+v, want updated values", updated)
	}

	if err := repo.DeleteSubscription(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSubscription() error = %v", err)
	}
	if _, err := repo.GetSubscription(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSubscription() after delete error = %v, want ErrNotFound", err)
	}

	subs, err := repo.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("ListSubscriptions() after delete returned %d rows, want 0", len(subs))
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.GetSubscription(ctx, "999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSubscription(999) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetSubscription(ctx, "not-a-number"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSubscription(not-a-number) error = %v, want ErrNotFound", err)
	}
}

func TestUnknownNextPaymentRoundTrips(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	s := testSubscription("No date")
	s.NextPayment = core.Date{}
	created, err := repo.CreateSubscription(ctx, s)
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	got, err := repo.GetSubscription(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if got.NextPayment.Known() {
		t.Errorf("NextPayment.Known() = true, want false")
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created, err := repo.CreateSubscription(ctx, testSubscription("Netflix"))
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	pending, err := repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after create = %d, want 1", len(pending))
	}
	if pending[0].Version != 1 || pending[0].Deleted {
		t.Errorf("pending record = %+v, want version 1, not deleted", pending[0])
	}

	if err := repo.MarkSynced(ctx, pending[0].ID, pending[0].Version); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	pending, err = repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after sync = %d, want 0", len(pending))
	}

	// Update bumps version and returns to pending.
	if _, err := repo.UpdateSubscription(ctx, created); err != nil {
		t.Fatalf("UpdateSubscription() error = %v", err)
	}
	pending, err = repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("pending after update = %+v, want one record at version 2", pending)
	}

	// A stale MarkSynced must not clear a newer pending version.
	if err := repo.MarkSynced(ctx, pending[0].ID, 1); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	pending, err = repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after stale sync = %d, want 1", len(pending))
	}

	// Deletion keeps the row visible to the sync queue.
	if err := repo.DeleteSubscription(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSubscription() error = %v", err)
	}
	pending, err = repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions() error = %v", err)
	}
	if len(pending) != 1 || !pending[0].Deleted {
		t.Fatalf("pending after delete = %+v, want one deleted record", pending)
	}

	_, deleted, err := repo.GetSubscriptionAnyState(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("GetSubscriptionAnyState() error = %v", err)
	}
	if !deleted {
		t.Error("GetSubscriptionAnyState() deleted = false, want true")
	}
}

func TestReceiptLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created, err := repo.CreateReceipt(ctx, "r-1", "invoice.pdf", "application/pdf", "receipts/r-1/invoice.pdf")
	if err != nil {
		t.Fatalf("CreateReceipt() error = %v", err)
	}
	if created.Status != ReceiptUploading {
		t.Errorf("status = %q, want %q", created.Status, ReceiptUploading)
	}

	if err := repo.SetReceiptStatus(ctx, "r-1", ReceiptProcessing); err != nil {
		t.Fatalf("SetReceiptStatus() error = %v", err)
	}

	next, _ := core.ParseDate("2025-04-01")
	draft := ReceiptDraft{
		Name:        "Figma",
		Category:    "Design",
		PriceCents:  1500,
		Currency:    "EUR",
		Cycle:       core.Monthly,
		NextPayment: next,
	}
	if err := repo.SetReceiptDraft(ctx, "r-1", draft); err != nil {
		t.Fatalf("SetReceiptDraft() error = %v", err)
	}

	got, err := repo.GetReceipt(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.Status != ReceiptPending {
		t.Errorf("status after draft = %q, want %q", got.Status, ReceiptPending)
	}
	if got.Draft.Name != "Figma" || got.Draft.PriceCents != 1500 {
		t.Errorf("draft = %+v, want stored values", got.Draft)
	}
	if got.Draft.NextPayment.String() != "2025-04-01" {
		t.Errorf("draft next payment = %q, want 2025-04-01", got.Draft.NextPayment.String())
	}

	if err := repo.SetReceiptError(ctx, "r-1", "extraction timed out"); err != nil {
		t.Fatalf("SetReceiptError() error = %v", err)
	}
	got, err = repo.GetReceipt(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.Status != ReceiptError || got.ErrorMessage != "extraction timed out" {
		t.Errorf("after error: status = %q message = %q", got.Status, got.ErrorMessage)
	}

	// Moving back to processing clears the message.
	if err := repo.SetReceiptStatus(ctx, "r-1", ReceiptProcessing); err != nil {
		t.Fatalf("SetReceiptStatus() error = %v", err)
	}
	got, err = repo.GetReceipt(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message after retry = %q, want empty", got.ErrorMessage)
	}

	if err := repo.SetReceiptStatus(ctx, "r-1", "bogus"); err == nil {
		t.Error("SetReceiptStatus(bogus) expected error")
	}
	if err := repo.SetReceiptStatus(ctx, "missing", ReceiptPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetReceiptStatus(missing) error = %v, want ErrNotFound", err)
	}
}
