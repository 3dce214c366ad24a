package services

import (
	"context"
	"fmt"
	"time"

	"subtrackr/internal/amqp"
	"subtrackr/internal/core"
	"subtrackr/internal/log"
	"subtrackr/internal/storage"
)

// ReminderDue reports whether a subscription sits inside its reminder
// window: the next payment is today or within ReminderDays days.
// Paused subscriptions, unknown dates and a zero window never fire.
func ReminderDue(s core.Subscription, now time.Time) (daysLeft int, due bool) {
	if !s.Active || !s.NextPayment.Known() || s.ReminderDays <= 0 {
		return 0, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	p := s.NextPayment
	payday := time.Date(p.Year(), time.Month(p.Month()), p.Day(), 0, 0, 0, 0, time.UTC)

	days := int(payday.Sub(today).Hours() / 24)
	if days < 0 || days > s.ReminderDays {
		return 0, false
	}
	return days, true
}

// ReminderScanner periodically publishes a reminder for every
// subscription inside its window. Each subscription fires at most once
// per calendar day regardless of the scan interval.
type ReminderScanner struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	queue      string
	logger     *log.Logger

	sent map[string]string // subscription ID -> last reminded date
}

func NewReminderScanner(st *storage.SQLiteRepository, amqpClient *amqp.Client, queue string, logger *log.Logger) *ReminderScanner {
	return &ReminderScanner{
		storage:    st,
		amqpClient: amqpClient,
		queue:      queue,
		logger:     logger.WithComponent(log.ComponentReminder),
		sent:       make(map[string]string),
	}
}

// Scan publishes reminders for all due subscriptions as of now.
func (r *ReminderScanner) Scan(ctx context.Context, now time.Time) error {
	subs, err := r.storage.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	today := now.Format("2006-01-02")
	published := 0
	for _, s := range subs {
		daysLeft, due := ReminderDue(s, now)
		if !due || r.sent[s.ID] == today {
			continue
		}

		msg := amqp.NewReminderMessage(s.ID, s.Name, s.NextPayment.String(), daysLeft)
		if err := r.amqpClient.PublishReminder(ctx, r.queue, msg); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish reminder",
				log.FieldSubscription, s.ID, log.FieldError, err)
			continue
		}
		r.sent[s.ID] = today
		published++
	}

	if published > 0 {
		r.logger.InfoContext(ctx, "Reminder scan completed", "published", published)
	}
	return nil
}

// Run scans on the given interval until ctx ends. The first scan runs
// immediately.
func (r *ReminderScanner) Run(ctx context.Context, interval time.Duration) error {
	if err := r.Scan(ctx, time.Now()); err != nil {
		r.logger.ErrorContext(ctx, "Reminder scan failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Scan(ctx, time.Now()); err != nil {
				r.logger.ErrorContext(ctx, "Reminder scan failed", log.FieldError, err)
			}
		}
	}
}
