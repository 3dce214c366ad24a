package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"subtrackr/internal/amqp"
	"subtrackr/internal/backup"
	gsheet "subtrackr/internal/backup/google"
	"subtrackr/internal/blob"
	"subtrackr/internal/config"
	"subtrackr/internal/extract"
	"subtrackr/internal/log"
	"subtrackr/internal/services"
	"subtrackr/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting subtrackr-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		cfg.ReceiptJobsQueue, cfg.ChangeEventsQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	// Receipt extraction pipeline, driven by the jobs queue.
	if cfg.ReceiptProcessingEnabled() {
		store, err := blob.NewS3Store(ctx, blob.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logger.Error("Failed to initialize blob store", log.FieldError, err)
			os.Exit(1)
		}

		extractor := extract.NewWebhookExtractor(cfg.WebhookURL, cfg.WebhookAPIKey, cfg.WebhookTimeout)
		processor := services.NewReceiptProcessor(repo, store, extractor, logger)

		group.Go(func() error {
			return processor.Run(ctx, amqpClient, cfg.ReceiptJobsQueue)
		})
		logger.Info("Receipt processor started", log.FieldQueue, cfg.ReceiptJobsQueue)
	} else {
		logger.Info("Receipt processing disabled - no webhook configured")
	}

	// Google Sheets mirror, driven by the change queue plus a periodic
	// pending scan.
	if cfg.BackupEnabled() {
		sheetsClient, err := gsheet.NewClient(ctx, cfg.SpreadsheetID, cfg.SheetName, cfg.CredentialsJSON)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}

		syncWorker := backup.NewSyncWorker(repo, sheetsClient, cfg.SyncBatchSize, logger)
		group.Go(func() error {
			return syncWorker.Run(ctx, amqpClient, cfg.ChangeEventsQueue, cfg.SyncInterval)
		})
		logger.Info("Backup sync worker started",
			"spreadsheet_id", cfg.SpreadsheetID, log.FieldQueue, cfg.ChangeEventsQueue)
	} else {
		logger.Info("Sheets backup disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
