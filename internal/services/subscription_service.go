// Package services orchestrates storage, messaging and the live feed.
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"subtrackr/internal/amqp"
	"subtrackr/internal/core"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

// SubscriptionService writes to SQLite first, then fans the change out
// to the backup queue and connected dashboards. Publish failures never
// fail the request, the row is already saved and the pending scan will
// catch up.
type SubscriptionService struct {
	storage     *storage.SQLiteRepository
	amqpClient  *amqp.Client
	hub         *hub.Hub
	changeQueue string
	logger      *log.Logger
}

func NewSubscriptionService(st *storage.SQLiteRepository, amqpClient *amqp.Client, h *hub.Hub, changeQueue string, logger *log.Logger) *SubscriptionService {
	return &SubscriptionService{
		storage:     st,
		amqpClient:  amqpClient,
		hub:         h,
		changeQueue: changeQueue,
		logger:      logger.WithComponent(log.ComponentSubscriptions),
	}
}

// Create validates and saves a new subscription.
func (s *SubscriptionService) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.Category = core.NormalizeCategory(sub.Category)
	if err := sub.Validate(time.Now()); err != nil {
		return core.Subscription{}, err
	}

	created, err := s.storage.CreateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	s.fanOut(ctx, created, string(core.OpInsert))
	return created, nil
}

// Get returns one subscription by ID.
func (s *SubscriptionService) Get(ctx context.Context, id string) (core.Subscription, error) {
	return s.storage.GetSubscription(ctx, id)
}

// List returns all live subscriptions.
func (s *SubscriptionService) List(ctx context.Context) ([]core.Subscription, error) {
	return s.storage.ListSubscriptions(ctx)
}

// Update validates and overwrites an existing subscription.
func (s *SubscriptionService) Update(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.Category = core.NormalizeCategory(sub.Category)
	if err := sub.Validate(time.Now()); err != nil {
		return core.Subscription{}, err
	}

	updated, err := s.storage.UpdateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, err
	}

	s.fanOut(ctx, updated, string(core.OpUpdate))
	return updated, nil
}

// Delete soft deletes a subscription.
func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteSubscription(ctx, id); err != nil {
		return err
	}

	s.fanOut(ctx, sub, string(core.OpDelete))
	return nil
}

// fanOut publishes the change for the backup worker and pushes it to
// connected dashboards.
func (s *SubscriptionService) fanOut(ctx context.Context, sub core.Subscription, op string) {
	if s.hub != nil {
		s.hub.Broadcast(hub.Event{Kind: "subscription", Op: op, Data: sub})
	}

	if s.amqpClient == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping change message")
		return
	}

	id, err := strconv.ParseInt(sub.ID, 10, 64)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to parse subscription ID", "id", sub.ID, log.FieldError, err)
		return
	}

	version, err := s.storage.GetSyncVersion(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read sync version", "id", id, log.FieldError, err)
		return
	}

	msg := amqp.NewRecordChangeMessage(id, version, op)
	if err := s.amqpClient.PublishRecordChange(ctx, s.changeQueue, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			"id", id, log.FieldError, err)
	}
}

// Close releases storage and broker connections.
func (s *SubscriptionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close subscription service: %v", errs)
	}
	return nil
}
