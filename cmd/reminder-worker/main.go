package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"subtrackr/internal/amqp"
	"subtrackr/internal/config"
	"subtrackr/internal/log"
	"subtrackr/internal/services"
	"subtrackr/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting reminder-worker")

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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	scanner := services.NewReminderScanner(repo, amqpClient, cfg.ReminderQueue, logger)
	logger.Info("Reminder scanner configured",
		"interval", cfg.ReminderInterval, log.FieldQueue, cfg.ReminderQueue)

	if err := scanner.Run(ctx, cfg.ReminderInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Reminder scanner failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Reminder worker stopped gracefully")
}
