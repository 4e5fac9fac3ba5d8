package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/ratelimit"
	"go.uber.org/zap"
)

// Notification kinds, used as metric labels.
const (
	KindPrizeValidated = "prize_validated"
	KindFirstReminder  = "reminder_3d"
	KindSecondReminder = "reminder_7d"
	KindAchievements   = "achievements"
	KindAccessCode     = "access_code"
	KindChatbotReply   = "chatbot_reply"
)

// Notifier is the single path from the application to the WhatsApp gateway.
type Notifier struct {
	gateway provider.Gateway
	limiter ratelimit.RateLimiter
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewNotifier(gateway provider.Gateway, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Notifier, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		gateway: gateway,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (n *Notifier) WithMetrics(metrics *observability.Metrics) *Notifier {
	n.metrics = metrics
	return n
}

// SendPrize normalizes phone, renders the prize template and sends it.
func (n *Notifier) SendPrize(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error) {
	meta := provider.DeliveryMeta{
		CustomerName: payload.CustomerName,
		PrizeName:    payload.PrizeName,
		SerialCode:   payload.SerialCode,
	}
	return n.send(ctx, kind, phone, message.Compose(payload), meta)
}

// SendText sends free text, e.g. chatbot replies, bypassing the template.
func (n *Notifier) SendText(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error) {
	return n.send(ctx, kind, phone, text, provider.DeliveryMeta{})
}

func (n *Notifier) send(ctx context.Context, kind string, phone string, text string, meta provider.DeliveryMeta) (*provider.SendResult, error) {
	number, err := message.NormalizePhone(phone)
	if err != nil {
		n.metrics.IncNotificationFailed(kind, failureReason(err))
		return nil, err
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx, ratelimit.GatewayBucket); err != nil {
			n.metrics.IncNotificationFailed(kind, "rate_limit")
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	result, err := n.gateway.SendText(ctx, provider.TextMessage{
		Number: number,
		Text:   text,
		Meta:   meta,
	})
	if err != nil {
		n.metrics.IncNotificationFailed(kind, failureReason(err))
		observability.WithContextLogger(n.logger, ctx).Warn("whatsapp send failed",
			zap.String("kind", kind),
			observability.CustomerPhone(number),
			zap.Error(err),
		)
		return nil, err
	}

	n.metrics.IncNotificationSent(kind)
	return result, nil
}

func failureReason(err error) string {
	var gatewayErr *provider.GatewayError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &gatewayErr):
		if gatewayErr.Transient {
			return "gateway_transient"
		}
		return "gateway_rejected"
	default:
		return "internal"
	}
}
