package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// WakeupPublisher publishes persistent wake-ups and waits for the broker to
// confirm each one.
type WakeupPublisher struct {
	broker *Broker
	now    func() time.Time
}

func NewWakeupPublisher(broker *Broker) *WakeupPublisher {
	return &WakeupPublisher{broker: broker, now: time.Now}
}

func (p *WakeupPublisher) Publish(ctx context.Context, queue string, msg WakeupMessage) error {
	if p == nil || p.broker == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := p.publishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.broker.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish wakeup for entry %s: %w", msg.EntryID, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wakeup confirm for entry %s: %w", msg.EntryID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked wakeup for entry %s", msg.EntryID)
	}
	return nil
}

func (p *WakeupPublisher) publishing(msg WakeupMessage) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid wakeup message: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal wakeup message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     p.now().UTC(),
		MessageId:     msg.EntryID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.NotificationType.String(),
		Body:          body,
	}, nil
}

func (p *WakeupPublisher) Close() error {
	if p == nil || p.broker == nil {
		return nil
	}
	return p.broker.Close()
}
