package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"subtrackr/internal/amqp"
	"subtrackr/internal/blob"
	"subtrackr/internal/core"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

// ErrReceiptState signals a lifecycle transition attempted from the wrong
// state, e.g. confirming a receipt that is not pending review.
var ErrReceiptState = errors.New("receipt is not in the required state")

// ReceiptService drives the receipt lifecycle: upload to blob storage,
// queue extraction, then confirm or reject the extracted draft.
type ReceiptService struct {
	storage       *storage.SQLiteRepository
	blob          blob.Store
	amqpClient    *amqp.Client
	subscriptions *SubscriptionService
	hub           *hub.Hub
	jobQueue      string
	logger        *log.Logger
}

func NewReceiptService(st *storage.SQLiteRepository, store blob.Store, amqpClient *amqp.Client, subs *SubscriptionService, h *hub.Hub, jobQueue string, logger *log.Logger) *ReceiptService {
	return &ReceiptService{
		storage:       st,
		blob:          store,
		amqpClient:    amqpClient,
		subscriptions: subs,
		hub:           h,
		jobQueue:      jobQueue,
		logger:        logger.WithComponent(log.ComponentReceipts),
	}
}

// Upload stores the file and queues it for extraction. When queueing
// fails the receipt lands in the error state so the user can retry.
func (s *ReceiptService) Upload(ctx context.Context, filename, contentType string, body io.Reader) (storage.PendingReceipt, error) {
	id := uuid.NewString()
	key := fmt.Sprintf("receipts/%s/%s", id, path.Base(filename))

	if err := s.blob.Put(ctx, key, contentType, body); err != nil {
		return storage.PendingReceipt{}, fmt.Errorf("store receipt file: %w", err)
	}

	receipt, err := s.storage.CreateReceipt(ctx, id, filename, contentType, key)
	if err != nil {
		return storage.PendingReceipt{}, fmt.Errorf("save receipt: %w", err)
	}

	if err := s.queueExtraction(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to queue receipt extraction",
			log.FieldReceipt, id, log.FieldError, err)
		if markErr := s.storage.SetReceiptError(ctx, id, "could not queue extraction"); markErr != nil {
			s.logger.ErrorContext(ctx, "Failed to mark receipt error",
				log.FieldReceipt, id, log.FieldError, markErr)
		}
		return s.storage.GetReceipt(ctx, id)
	}

	receipt, err = s.storage.GetReceipt(ctx, id)
	if err != nil {
		return storage.PendingReceipt{}, err
	}
	s.broadcast(receipt, string(core.OpInsert))
	return receipt, nil
}

// Get returns one receipt by ID.
func (s *ReceiptService) Get(ctx context.Context, id string) (storage.PendingReceipt, error) {
	return s.storage.GetReceipt(ctx, id)
}

// List returns all receipts, newest first.
func (s *ReceiptService) List(ctx context.Context) ([]storage.PendingReceipt, error) {
	return s.storage.ListReceipts(ctx)
}

// Confirm turns a reviewed draft into a subscription. The caller may
// override any draft field through sub.
func (s *ReceiptService) Confirm(ctx context.Context, id string, sub core.Subscription) (core.Subscription, error) {
	receipt, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}
	if receipt.Status != storage.ReceiptPending {
		return core.Subscription{}, fmt.Errorf("receipt %s is %s, expected %s: %w", id, receipt.Status, storage.ReceiptPending, ErrReceiptState)
	}

	created, err := s.subscriptions.Create(ctx, sub)
	if err != nil {
		return core.Subscription{}, err
	}

	if err := s.storage.SetReceiptStatus(ctx, id, storage.ReceiptConfirmed); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark receipt confirmed",
			log.FieldReceipt, id, log.FieldError, err)
	}

	if receipt, err := s.storage.GetReceipt(ctx, id); err == nil {
		s.broadcast(receipt, string(core.OpUpdate))
	}
	return created, nil
}

// Reject discards a draft and removes the stored file.
func (s *ReceiptService) Reject(ctx context.Context, id string) error {
	receipt, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.SetReceiptStatus(ctx, id, storage.ReceiptRejected); err != nil {
		return err
	}

	if receipt.StorageKey != "" {
		if err := s.blob.Delete(ctx, receipt.StorageKey); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete receipt file",
				log.FieldReceipt, id,
				log.FieldStorageKey, receipt.StorageKey,
				log.FieldError, err)
		}
	}

	if receipt, err := s.storage.GetReceipt(ctx, id); err == nil {
		s.broadcast(receipt, string(core.OpUpdate))
	}
	return nil
}

// Retry requeues a failed receipt for extraction.
func (s *ReceiptService) Retry(ctx context.Context, id string) (storage.PendingReceipt, error) {
	receipt, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return storage.PendingReceipt{}, err
	}
	if receipt.Status != storage.ReceiptError {
		return storage.PendingReceipt{}, fmt.Errorf("receipt %s is %s, expected %s: %w", id, receipt.Status, storage.ReceiptError, ErrReceiptState)
	}

	if err := s.queueExtraction(ctx, receipt); err != nil {
		return storage.PendingReceipt{}, fmt.Errorf("requeue extraction: %w", err)
	}

	receipt, err = s.storage.GetReceipt(ctx, id)
	if err != nil {
		return storage.PendingReceipt{}, err
	}
	s.broadcast(receipt, string(core.OpUpdate))
	return receipt, nil
}

func (s *ReceiptService) queueExtraction(ctx context.Context, receipt storage.PendingReceipt) error {
	if s.amqpClient == nil {
		return fmt.Errorf("AMQP client not available")
	}

	if err := s.storage.SetReceiptStatus(ctx, receipt.ID, storage.ReceiptProcessing); err != nil {
		return fmt.Errorf("mark receipt processing: %w", err)
	}

	msg := amqp.NewReceiptJobMessage(receipt.ID, receipt.StorageKey, receipt.FileType)
	return s.amqpClient.PublishReceiptJob(ctx, s.jobQueue, msg)
}

func (s *ReceiptService) broadcast(receipt storage.PendingReceipt, op string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(hub.Event{Kind: "receipt", Op: op, Data: receipt})
}
