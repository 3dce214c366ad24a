package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
)

// Client owns one connection and channel against a direct exchange.
// Each queue is bound with its own name as routing key. Publishes go
// through a circuit breaker so a dead broker fails fast instead of
// stalling request handlers.
type Client struct {
	url          string
	exchangeName string
	queues       []string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName string, queues ...string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queues); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(channel *amqp091.Channel, exchangeName string, queues []string) error {
	err := channel.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range queues {
		_, err = channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		err = channel.QueueBind(
			queue,
			queue, // routing key matches queue name on a direct exchange
			exchangeName,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Second * time.Duration(1<<uint(attempt))
	if backoff > openTimeout {
		backoff = openTimeout
	}
	return backoff
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}

	c.mu.Lock()
	elapsed := time.Since(c.lastFailure)
	c.mu.Unlock()

	if elapsed > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// reconnect rebuilds the connection with backoff. Called when a publish
// hits a connection-level error.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	for attempt := 0; ; attempt++ {
		if err := c.connect(); err == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP broker", "attempts", attempt+1)
			return nil
		} else if attempt >= 3 {
			return fmt.Errorf("reconnect: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}
}

// Publish sends a persistent JSON message to the named queue.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: circuit breaker is open", queue)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.publish(ctx, queue, body)
	if err != nil && isConnectionError(err) {
		if rerr := c.reconnect(ctx); rerr == nil {
			err = c.publish(ctx, queue, body)
		}
	}
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	c.recordSuccess()
	return nil
}

func (c *Client) publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	return channel.PublishWithContext(
		ctx,
		c.exchangeName,
		queue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishReceiptJob enqueues extraction work for an uploaded receipt.
func (c *Client) PublishReceiptJob(ctx context.Context, queue string, msg *ReceiptJobMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal receipt job: %w", err)
	}
	if err := c.Publish(ctx, queue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published receipt job",
		"receipt_id", msg.ReceiptID,
		"queue", queue)
	return nil
}

// PublishRecordChange enqueues a subscription change for the backup worker.
func (c *Client) PublishRecordChange(ctx context.Context, queue string, msg *RecordChangeMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal record change: %w", err)
	}
	if err := c.Publish(ctx, queue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published record change",
		"id", msg.ID,
		"version", msg.Version,
		"op", msg.Op,
		"queue", queue)
	return nil
}

// PublishReminder enqueues an upcoming payment notification.
func (c *Client) PublishReminder(ctx context.Context, queue string, msg *ReminderMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	if err := c.Publish(ctx, queue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published payment reminder",
		"subscription_id", msg.SubscriptionID,
		"days_left", msg.DaysLeft,
		"queue", queue)
	return nil
}

// Consume runs a manual-ack loop on the named queue until ctx is cancelled.
// Handler errors requeue the delivery.
func (c *Client) Consume(ctx context.Context, queue string, handler func([]byte) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed for %s", queue)
			}

			if err := handler(delivery.Body); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"queue", queue)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
