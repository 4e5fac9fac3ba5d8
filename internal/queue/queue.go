package queue

import (
	"context"
	"fmt"
)

// Publisher publishes wake-up messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg WakeupMessage) error
	Close() error
}

// MessageHandler handles a consumed wake-up message.
type MessageHandler func(ctx context.Context, msg WakeupMessage) error

// Consumer consumes wake-up messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// WakeupQueue receives one message per enqueued notification.
	WakeupQueue = "notifications.wakeup"

	wakeupRoutingKey = "notifications.wakeup"
)

// DLQName returns the dead-letter queue name for a work queue, e.g.
// dlq.notifications.wakeup.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
