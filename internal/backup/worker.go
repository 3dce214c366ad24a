package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subtrackr/internal/amqp"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

// SyncWorker pushes changed subscription rows to the mirror. It is fed
// by AMQP change messages, with a periodic pending scan as backstop for
// lost deliveries.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    RecordWriter
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(st *storage.SQLiteRepository, writer RecordWriter, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		storage:   st,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentBackup),
	}
}

// HandleChangeMessage processes a single record change message.
func (w *SyncWorker) HandleChangeMessage(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing record change",
		"id", msg.ID,
		"version", msg.Version,
		"op", msg.Op)

	return w.syncRecord(ctx, msg.ID, msg.Version)
}

// ProcessPending mirrors any rows still flagged pending. Run
// periodically to recover from lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck drains pending rows left over from downtime with a
// larger batch than the periodic scan.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.processBatch(ctx, w.batchSize*5)
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) error {
	pending, err := w.storage.GetPendingSyncSubscriptions(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending subscriptions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending subscriptions", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := w.syncRecord(ctx, p.ID, p.Version); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync subscription",
				"id", p.ID,
				log.FieldError, err)
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced)
	return nil
}

func (w *SyncWorker) syncRecord(ctx context.Context, id, version int64) error {
	sub, deleted, err := w.storage.GetSubscriptionAnyState(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Subscription vanished before sync", "id", id)
		return nil
	}
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", "id", id, log.FieldError, markErr)
		}
		return fmt.Errorf("get subscription: %w", err)
	}

	if deleted {
		err = w.writer.Remove(ctx, sub.ID)
	} else {
		err = w.writer.Upsert(ctx, sub)
	}
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", "id", id, log.FieldError, markErr)
		}
		return fmt.Errorf("mirror subscription: %w", err)
	}

	// A stale version leaves the row pending so a later scan retries
	// with the newer data.
	if err := w.storage.MarkSynced(ctx, id, version); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", "id", id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Subscription mirrored",
		"id", id,
		"deleted", deleted)
	return nil
}

// Run consumes change messages and scans for stragglers until ctx ends.
func (w *SyncWorker) Run(ctx context.Context, client *amqp.Client, queue string, scanInterval time.Duration) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync check failed", log.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Pending scan failed", log.FieldError, err)
				}
			}
		}
	}()

	return client.Consume(ctx, queue, func(body []byte) error {
		msg, err := amqp.RecordChangeMessageFromJSON(body)
		if err != nil {
			w.logger.ErrorContext(ctx, "Dropping malformed change message", log.FieldError, err)
			return nil
		}
		return w.HandleChangeMessage(ctx, msg)
	})
}
