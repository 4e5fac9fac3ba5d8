package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// WakeupConsumer feeds wake-ups to a handler. A wake-up whose handler fails
// is requeued once and dead-lettered when it fails again.
type WakeupConsumer struct {
	broker   *Broker
	prefetch int
	logger   *zap.Logger
}

func NewWakeupConsumer(broker *Broker, prefetch int, logger *zap.Logger) *WakeupConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WakeupConsumer{
		broker:   broker,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks until ctx is done, resubscribing after channel failures.
func (c *WakeupConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.broker == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	for failures := 0; ; {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		delay := redialDelay(failures)
		c.logger.Warn("wakeup subscription lost",
			zap.String("queue", queue),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (c *WakeupConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.broker.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, connectionName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery settles d exactly once. Only a failed ack, nack or reject
// is returned.
func (c *WakeupConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	msg, err := decodeWakeup(d.Body)
	if err != nil {
		c.logger.Warn("dead-lettering malformed wakeup",
			zap.String("messageId", d.MessageId),
			zap.Error(err),
		)
		return settle(d.Reject(false), "reject")
	}

	logger := c.logger.With(zap.String("entryId", msg.EntryID), zap.Bool("redelivered", d.Redelivered))

	if err := handler(ctx, msg); err != nil {
		if d.Redelivered {
			logger.Error("wakeup failed twice, dead-lettering", zap.Error(err))
			return settle(d.Nack(false, false), "nack")
		}
		logger.Warn("wakeup failed, requeueing", zap.Error(err))
		return settle(d.Nack(false, true), "nack")
	}

	return settle(d.Ack(false), "ack")
}

func decodeWakeup(body []byte) (WakeupMessage, error) {
	var msg WakeupMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return WakeupMessage{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return WakeupMessage{}, err
	}
	return msg, nil
}

func settle(err error, action string) error {
	if err != nil {
		return fmt.Errorf("failed to %s delivery: %w", action, err)
	}
	return nil
}

func (c *WakeupConsumer) Close() error {
	if c == nil || c.broker == nil {
		return nil
	}
	return c.broker.Close()
}
