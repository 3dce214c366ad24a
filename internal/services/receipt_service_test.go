package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"subtrackr/internal/blob"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

func receiptServiceSetup(t *testing.T) (*storage.SQLiteRepository, *blob.MemoryStore, *ReceiptService) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	h := hub.New(logger)
	store := blob.NewMemoryStore()
	subs := NewSubscriptionService(repo, nil, h, "record_changes", logger)
	svc := NewReceiptService(repo, store, nil, subs, h, "receipt_jobs", logger)
	return repo, store, svc
}

func TestUploadWithoutBrokerLandsInError(t *testing.T) {
	_, store, svc := receiptServiceSetup(t)
	ctx := context.Background()

	receipt, err := svc.Upload(ctx, "invoice.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	// The file is stored and the receipt exists, but queueing failed.
	if store.Len() != 1 {
		t.Errorf("stored objects = %d, want 1", store.Len())
	}
	if receipt.Status != storage.ReceiptError {
		t.Errorf("status = %q, want %q", receipt.Status, storage.ReceiptError)
	}
	if receipt.OriginalFilename != "invoice.pdf" {
		t.Errorf("filename = %q", receipt.OriginalFilename)
	}
	if !strings.HasPrefix(receipt.StorageKey, "receipts/"+receipt.ID+"/") {
		t.Errorf("storage key = %q, want receipts/<id>/ prefix", receipt.StorageKey)
	}
}

func TestConfirmCreatesSubscription(t *testing.T) {
	repo, store, svc := receiptServiceSetup(t)
	ctx := context.Background()

	receipt, err := svc.Upload(ctx, "invoice.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	_ = store

	draft := storage.ReceiptDraft{Name: "Figma", Category: "Design", PriceCents: 1500, Currency: "EUR", Cycle: "monthly"}
	if err := repo.SetReceiptDraft(ctx, receipt.ID, draft); err != nil {
		t.Fatalf("SetReceiptDraft() error = %v", err)
	}

	sub := validSubscription()
	sub.Name = "Figma"
	created, err := svc.Confirm(ctx, receipt.ID, sub)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if created.ID == "" || created.Name != "Figma" {
		t.Errorf("created = %+v", created)
	}

	got, err := repo.GetReceipt(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.Status != storage.ReceiptConfirmed {
		t.Errorf("status = %q, want %q", got.Status, storage.ReceiptConfirmed)
	}

	// Confirming twice must fail, the receipt is no longer pending.
	if _, err := svc.Confirm(ctx, receipt.ID, sub); err == nil {
		t.Error("second Confirm() expected error")
	}
}

func TestRejectRemovesStoredFile(t *testing.T) {
	repo, store, svc := receiptServiceSetup(t)
	ctx := context.Background()

	receipt, err := svc.Upload(ctx, "invoice.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := repo.SetReceiptDraft(ctx, receipt.ID, storage.ReceiptDraft{Name: "x", Currency: "EUR", Cycle: "monthly"}); err != nil {
		t.Fatalf("SetReceiptDraft() error = %v", err)
	}

	if err := svc.Reject(ctx, receipt.ID); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("stored objects after reject = %d, want 0", store.Len())
	}
	got, err := repo.GetReceipt(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.Status != storage.ReceiptRejected {
		t.Errorf("status = %q, want %q", got.Status, storage.ReceiptRejected)
	}
}

func TestRetryRequiresErrorState(t *testing.T) {
	repo, _, svc := receiptServiceSetup(t)
	ctx := context.Background()

	receipt, err := svc.Upload(ctx, "invoice.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	// Upload without a broker already left it in error state; retry is
	// allowed but fails again for the same reason.
	if _, err := svc.Retry(ctx, receipt.ID); err == nil {
		t.Error("Retry() without broker expected error")
	}

	if err := repo.SetReceiptDraft(ctx, receipt.ID, storage.ReceiptDraft{Name: "x", Currency: "EUR", Cycle: "monthly"}); err != nil {
		t.Fatalf("SetReceiptDraft() error = %v", err)
	}
	if _, err := svc.Retry(ctx, receipt.ID); err == nil {
		t.Error("Retry() on pending receipt expected error")
	}
}
