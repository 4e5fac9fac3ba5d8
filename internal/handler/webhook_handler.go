package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/service"
	"go.uber.org/zap"
)

type WebhookEventHandler interface {
	HandleEvent(ctx context.Context, event service.WebhookEvent) (int, error)
}

// WebhookHandler receives Evolution API callbacks for the chatbot.
type WebhookHandler struct {
	chatbot WebhookEventHandler
	logger  *zap.Logger
}

func NewWebhookHandler(chatbot WebhookEventHandler, logger *zap.Logger) (*WebhookHandler, error) {
	if chatbot == nil {
		return nil, fmt.Errorf("chatbot service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{chatbot: chatbot, logger: logger}, nil
}

func RegisterWebhookRoutes(router fiber.Router, chatbot WebhookEventHandler, logger *zap.Logger) error {
	h, err := NewWebhookHandler(chatbot, logger)
	if err != nil {
		return err
	}

	router.Post("/v1/webhooks/whatsapp", h.ReceiveWhatsApp)
	return nil
}

func (h *WebhookHandler) ReceiveWhatsApp(c *fiber.Ctx) error {
	var event service.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return invalidBody()
	}

	answered, err := h.chatbot.HandleEvent(c.UserContext(), event)
	if err != nil {
		return err
	}

	if answered > 0 {
		observability.WithContextLogger(h.logger, c.UserContext()).Debug("webhook answered",
			zap.String("event", event.Event),
			zap.Int("answered", answered),
		)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
