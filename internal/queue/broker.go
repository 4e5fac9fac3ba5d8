package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dlxExchangeName   = "notifier.dlx"
	connectionName    = "prize-notifier"
	heartbeatInterval = 10 * time.Second
	dialTimeout       = 15 * time.Second

	minRedialDelay = time.Second
	maxRedialDelay = 30 * time.Second
)

// Broker owns the AMQP connection shared by the wake-up publisher and
// consumer. The wake-up topology is declared once per connection.
type Broker struct {
	url    string
	logger *zap.Logger

	mu       sync.RWMutex
	conn     *amqp.Connection
	declared *amqp.Connection

	dialMu sync.Mutex
}

func NewBroker(url string, logger *zap.Logger) (*Broker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Broker{url: url, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if _, err := b.connection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Ping reports whether the broker is reachable, redialing a dropped connection.
func (b *Broker) Ping(ctx context.Context) error {
	_, err := b.connection(ctx)
	return err
}

func (b *Broker) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.declared = nil
	b.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// openChannel returns a channel on a live connection with the wake-up
// topology in place. Callers close it.
func (b *Broker) openChannel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		// The connection can die between the liveness check and Channel().
		if conn, err = b.redial(ctx, conn); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
	}

	if err := b.ensureTopology(conn, ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (b *Broker) connection(ctx context.Context) (*amqp.Connection, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}
	return b.redial(ctx, conn)
}

// redial replaces stale with a fresh connection. Concurrent callers that saw
// the same stale connection share one dial.
func (b *Broker) redial(ctx context.Context, stale *amqp.Connection) (*amqp.Connection, error) {
	b.dialMu.Lock()
	defer b.dialMu.Unlock()

	b.mu.RLock()
	current := b.conn
	b.mu.RUnlock()
	if current != nil && current != stale && !current.IsClosed() {
		return current, nil
	}

	for attempt := 1; ; attempt++ {
		conn, err := b.dial()
		if err == nil {
			b.mu.Lock()
			b.conn = conn
			b.mu.Unlock()

			if current != nil && !current.IsClosed() {
				_ = current.Close()
			}
			if attempt > 1 {
				b.logger.Info("rabbitmq reconnected", zap.Int("attempt", attempt))
			}
			return conn, nil
		}

		delay := redialDelay(attempt)
		b.logger.Warn("rabbitmq dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (b *Broker) dial() (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	return amqp.DialConfig(b.url, amqp.Config{
		Heartbeat:  heartbeatInterval,
		Properties: props,
	})
}

func (b *Broker) ensureTopology(conn *amqp.Connection, ch *amqp.Channel) error {
	b.mu.RLock()
	done := b.declared == conn
	b.mu.RUnlock()
	if done {
		return nil
	}

	if err := declareWakeupTopology(ch); err != nil {
		return err
	}

	b.mu.Lock()
	b.declared = conn
	b.mu.Unlock()
	return nil
}

// redialDelay doubles from one second per attempt and caps at thirty.
func redialDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := minRedialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRedialDelay {
			return maxRedialDelay
		}
	}
	return delay
}

// declareWakeupTopology declares notifications.wakeup dead-lettering into
// dlq.notifications.wakeup through the notifier.dlx direct exchange.
func declareWakeupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", dlxExchangeName, err)
	}

	dlq := DLQName(WakeupQueue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, wakeupRoutingKey, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(WakeupQueue, true, false, false, false, wakeupQueueArgs()); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", WakeupQueue, err)
	}
	return nil
}

func wakeupQueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": wakeupRoutingKey,
	}
}
