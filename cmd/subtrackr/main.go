package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrackr/internal/amqp"
	"subtrackr/internal/blob"
	"subtrackr/internal/config"
	apphttp "subtrackr/internal/http"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/services"
	"subtrackr/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting subtrackr")

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

	// AMQP is optional; without it changes stay pending in SQLite until a
	// worker with a broker connection picks them up.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			cfg.ReceiptJobsQueue, cfg.ChangeEventsQueue, cfg.ReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode",
				log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", log.FieldExchange, cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - changes will not fan out to workers")
	}

	feed := hub.New(logger)

	subscriptionService := services.NewSubscriptionService(repo, amqpClient, feed, cfg.ChangeEventsQueue, logger)

	var receiptService *services.ReceiptService
	if cfg.ReceiptProcessingEnabled() {
		store, err := blob.NewS3Store(context.Background(), blob.Config{
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
		receiptService = services.NewReceiptService(repo, store, amqpClient,
			subscriptionService, feed, cfg.ReceiptJobsQueue, logger)
		logger.Info("Receipt intake enabled", "bucket", cfg.S3Bucket)
	} else {
		logger.Info("Receipt intake disabled - no webhook configured")
	}

	srv := apphttp.NewServer(":"+cfg.Port, subscriptionService, receiptService, feed, logger)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting HTTP server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
