package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

const webhookEventMessagesUpsert = "messages.upsert"

// WebhookEvent is the subset of the Evolution API webhook payload the bot reads.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Messages []WebhookMessage `json:"messages"`
}

type WebhookMessage struct {
	Key     WebhookKey     `json:"key"`
	Message WebhookContent `json:"message"`
}

type WebhookKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

type WebhookContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
}

type ExtendedTextMessage struct {
	Text string `json:"text"`
}

func (m WebhookMessage) Text() string {
	if text := strings.TrimSpace(m.Message.Conversation); text != "" {
		return text
	}
	if m.Message.ExtendedTextMessage != nil {
		return strings.TrimSpace(m.Message.ExtendedTextMessage.Text)
	}
	return ""
}

// TextSender sends free text without the prize template.
type TextSender interface {
	SendText(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error)
}

// ChatbotService answers inbound WhatsApp commands.
type ChatbotService struct {
	messages      repository.ChatMessageRepository
	loyalty       repository.LoyaltyRepository
	achievements  repository.AchievementRepository
	registrations repository.RegistrationRepository
	sender        TextSender
	logger        *zap.Logger
	now           func() time.Time
}

func NewChatbotService(
	messages repository.ChatMessageRepository,
	loyalty repository.LoyaltyRepository,
	achievements repository.AchievementRepository,
	registrations repository.RegistrationRepository,
	sender TextSender,
	logger *zap.Logger,
) (*ChatbotService, error) {
	if messages == nil || loyalty == nil || achievements == nil || registrations == nil {
		return nil, fmt.Errorf("chatbot repositories are required")
	}
	if sender == nil {
		return nil, fmt.Errorf("text sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChatbotService{
		messages:      messages,
		loyalty:       loyalty,
		achievements:  achievements,
		registrations: registrations,
		sender:        sender,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// HandleEvent answers every inbound text in a messages.upsert event and
// returns how many were answered. Other events are ignored.
func (s *ChatbotService) HandleEvent(ctx context.Context, event WebhookEvent) (int, error) {
	if event.Event != webhookEventMessagesUpsert {
		return 0, nil
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	answered := 0
	for _, msg := range event.Data.Messages {
		if msg.Key.FromMe {
			continue
		}
		text := msg.Text()
		if text == "" {
			continue
		}

		phone, err := message.PhoneFromJID(msg.Key.RemoteJID)
		if err != nil {
			logger.Warn("skipping message from unsupported sender",
				zap.String("remoteJid", msg.Key.RemoteJID),
				zap.Error(err),
			)
			continue
		}

		if err := s.answer(ctx, msg.Key.RemoteJID, phone, text); err != nil {
			return answered, err
		}
		answered++
	}

	return answered, nil
}

func (s *ChatbotService) answer(ctx context.Context, jid string, phone string, text string) error {
	if err := s.messages.Create(ctx, &domain.ChatMessage{
		ID:            uuid.NewString(),
		CustomerPhone: jid,
		MessageText:   text,
		MessageType:   domain.ChatMessageReceived,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to store inbound message: %w", err)
	}

	reply, err := s.Reply(ctx, phone, text)
	if err != nil {
		return err
	}

	if err := s.messages.Create(ctx, &domain.ChatMessage{
		ID:            uuid.NewString(),
		CustomerPhone: jid,
		MessageText:   reply,
		MessageType:   domain.ChatMessageSent,
		BotResponse:   &reply,
		Processed:     true,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to store bot reply: %w", err)
	}

	if _, err := s.sender.SendText(ctx, KindChatbotReply, phone, reply); err != nil {
		// Configuration gaps and gateway outages must not make the webhook retry forever.
		observability.WithContextLogger(s.logger, ctx).Warn("failed to send bot reply",
			observability.CustomerPhone(phone),
			zap.Error(err),
		)
	}
	return nil
}

// Reply computes the bot answer for text sent by phone.
func (s *ChatbotService) Reply(ctx context.Context, phone string, text string) (string, error) {
	switch message.ParseCommand(text) {
	case message.CommandBalance:
		loyalty, err := s.loyalty.GetByPhone(ctx, phone)
		if errors.Is(err, domain.ErrNotFound) {
			return message.BalanceReply(nil), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to load loyalty: %w", err)
		}
		return message.BalanceReply(loyalty), nil
	case message.CommandHistory:
		registrations, err := s.registrations.RecentByPhone(ctx, phone, message.HistoryLimit)
		if err != nil {
			return "", fmt.Errorf("failed to load registrations: %w", err)
		}
		return message.HistoryReply(registrations), nil
	case message.CommandAchievements:
		unlocked, err := s.achievements.ListUnlocked(ctx, phone)
		if err != nil {
			return "", fmt.Errorf("failed to load achievements: %w", err)
		}
		return message.AchievementsReply(unlocked), nil
	case message.CommandHelp:
		return message.HelpReply(), nil
	default:
		return message.GreetingReply(), nil
	}
}
