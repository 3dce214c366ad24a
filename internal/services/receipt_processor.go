package services

import (
	"context"
	"fmt"
	"time"

	"subtrackr/internal/amqp"
	"subtrackr/internal/blob"
	"subtrackr/internal/core"
	"subtrackr/internal/extract"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

// ReceiptProcessor runs in the worker. It pulls the stored file, calls
// the extraction webhook and writes the resulting draft back. Failures
// move the receipt to the error state instead of requeueing so the user
// decides whether to retry.
type ReceiptProcessor struct {
	storage   *storage.SQLiteRepository
	blob      blob.Store
	extractor extract.Extractor
	logger    *log.Logger
}

func NewReceiptProcessor(st *storage.SQLiteRepository, store blob.Store, extractor extract.Extractor, logger *log.Logger) *ReceiptProcessor {
	return &ReceiptProcessor{
		storage:   st,
		blob:      store,
		extractor: extractor,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReceiptJob processes one extraction job.
func (p *ReceiptProcessor) HandleReceiptJob(ctx context.Context, msg *amqp.ReceiptJobMessage) error {
	p.logger.InfoContext(ctx, "Processing receipt job", log.FieldReceipt, msg.ReceiptID)

	receipt, err := p.storage.GetReceipt(ctx, msg.ReceiptID)
	if err != nil {
		return fmt.Errorf("get receipt %s: %w", msg.ReceiptID, err)
	}

	switch receipt.Status {
	case storage.ReceiptConfirmed, storage.ReceiptRejected:
		p.logger.WarnContext(ctx, "Skipping finished receipt",
			log.FieldReceipt, receipt.ID,
			log.FieldStatus, receipt.Status)
		return nil
	}

	file, err := p.blob.Get(ctx, receipt.StorageKey)
	if err != nil {
		p.fail(ctx, receipt.ID, fmt.Sprintf("read stored file: %v", err))
		return nil
	}
	defer file.Close()

	result, err := p.extractor.Extract(ctx, receipt.OriginalFilename, receipt.FileType, file)
	if err != nil {
		p.fail(ctx, receipt.ID, fmt.Sprintf("extraction failed: %v", err))
		return nil
	}

	draft, err := buildDraft(result)
	if err != nil {
		p.fail(ctx, receipt.ID, fmt.Sprintf("invalid extraction result: %v", err))
		return nil
	}

	if err := p.storage.SetReceiptDraft(ctx, receipt.ID, draft); err != nil {
		return fmt.Errorf("store draft for %s: %w", receipt.ID, err)
	}

	p.logger.InfoContext(ctx, "Receipt draft ready",
		log.FieldReceipt, receipt.ID,
		log.FieldName, draft.Name,
		log.FieldPriceCents, draft.PriceCents)
	return nil
}

func (p *ReceiptProcessor) fail(ctx context.Context, id, message string) {
	p.logger.WarnContext(ctx, "Receipt processing failed",
		log.FieldReceipt, id,
		"reason", message)
	if err := p.storage.SetReceiptError(ctx, id, message); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark receipt error",
			log.FieldReceipt, id, log.FieldError, err)
	}
}

// buildDraft validates the webhook output into a storable draft.
// Unknown cycles fall back to monthly, unknown currencies to EUR.
func buildDraft(r extract.Result) (storage.ReceiptDraft, error) {
	if r.Name == "" {
		return storage.ReceiptDraft{}, fmt.Errorf("missing name")
	}

	price, err := core.ParsePrice(r.Price)
	if err != nil {
		return storage.ReceiptDraft{}, fmt.Errorf("price %q: %w", r.Price, err)
	}

	cycle := core.BillingCycle(r.BillingCycle)
	if !core.ValidCycle(cycle) {
		cycle = core.Monthly
	}

	currency := r.Currency
	if !core.KnownCurrency(currency) {
		currency = core.ReferenceCurrency
	}

	next, err := core.ParseDate(r.NextPayment)
	if err != nil {
		// A bad date is not fatal, the user fixes it during review.
		next = core.Date{}
	}

	return storage.ReceiptDraft{
		Name:        r.Name,
		Category:    core.NormalizeCategory(r.Category),
		PriceCents:  price.Cents,
		Currency:    currency,
		Cycle:       cycle,
		NextPayment: next,
	}, nil
}

// Run consumes receipt jobs until ctx ends.
func (p *ReceiptProcessor) Run(ctx context.Context, client *amqp.Client, queue string) error {
	return client.Consume(ctx, queue, func(body []byte) error {
		msg, err := amqp.ReceiptJobMessageFromJSON(body)
		if err != nil {
			p.logger.ErrorContext(ctx, "Dropping malformed receipt job", log.FieldError, err)
			return nil
		}

		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		return p.HandleReceiptJob(jobCtx, msg)
	})
}
