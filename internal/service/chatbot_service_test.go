package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"go.uber.org/zap"
)

type chatbotFixture struct {
	messages      *fakeChatMessageRepo
	loyalty       *fakeLoyaltyRepo
	achievements  *fakeAchievementRepo
	registrations *fakeRegistrationRepo
	sender        *fakePrizeSender
	svc           *ChatbotService
}

func newChatbotFixture(t *testing.T) *chatbotFixture {
	t.Helper()

	f := &chatbotFixture{
		messages:      &fakeChatMessageRepo{},
		loyalty:       &fakeLoyaltyRepo{customers: map[string]*domain.CustomerLoyalty{"5511987654321": newLoyaltyCustomer()}},
		achievements:  &fakeAchievementRepo{},
		registrations: &fakeRegistrationRepo{},
		sender:        &fakePrizeSender{},
	}
	svc, err := NewChatbotService(f.messages, f.loyalty, f.achievements, f.registrations, f.sender, zap.NewNop())
	if err != nil {
		t.Fatalf("NewChatbotService() error = %v", err)
	}
	f.svc = svc
	return f
}

func textEvent(jid string, text string) WebhookEvent {
	return WebhookEvent{
		Event: "messages.upsert",
		Data: WebhookData{Messages: []WebhookMessage{{
			Key:     WebhookKey{RemoteJID: jid},
			Message: WebhookContent{Conversation: text},
		}}},
	}
}

func TestChatbotServiceReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		setup func(f *chatbotFixture)
		want  string
	}{
		{name: "balance", text: "Quantos PONTOS eu tenho?", want: "Pontos: 600"},
		{
			name:  "balance outside program",
			text:  "saldo",
			setup: func(f *chatbotFixture) { f.loyalty.customers = nil },
			want:  "não está no programa",
		},
		{
			name: "history",
			text: "meus prêmios",
			setup: func(f *chatbotFixture) {
				f.registrations.recentFn = func(ctx context.Context, phone string, limit int) ([]domain.Registration, error) {
					return []domain.Registration{{SerialCode: "RSP-0001", PrizeName: ptr("Fone"), Redeemed: true}}, nil
				}
			},
			want: "RSP-0001",
		},
		{
			name: "achievements",
			text: "conquistas",
			setup: func(f *chatbotFixture) {
				f.achievements.unlocked = []domain.CustomerAchievement{{
					AchievementID: "a1",
					Achievement:   &domain.Achievement{ID: "a1", Name: "Primeiro Prêmio", Icon: "🏆"},
				}}
			},
			want: "Primeiro Prêmio",
		},
		{name: "help", text: "ajuda", want: "PONTOS"},
		{name: "greeting", text: "bom dia", want: "Olá"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newChatbotFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			got, err := f.svc.Reply(context.Background(), "5511987654321", tt.text)
			if err != nil {
				t.Fatalf("Reply() error = %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("Reply() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestChatbotServiceHandleEventStoresAndReplies(t *testing.T) {
	t.Parallel()

	f := newChatbotFixture(t)
	var sentTo string
	f.sender.textFn = func(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error) {
		sentTo = phone
		return &provider.SendResult{StatusCode: 200, Attempts: 1}, nil
	}

	answered, err := f.svc.HandleEvent(context.Background(), textEvent("5511987654321@s.whatsapp.net", "saldo"))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if answered != 1 {
		t.Fatalf("answered = %d, want 1", answered)
	}

	if len(f.messages.messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(f.messages.messages))
	}
	received, sent := f.messages.messages[0], f.messages.messages[1]
	if received.MessageType != domain.ChatMessageReceived || received.MessageText != "saldo" {
		t.Fatalf("received row = %+v", received)
	}
	if received.CustomerPhone != "5511987654321@s.whatsapp.net" {
		t.Fatalf("received phone = %q, want raw jid", received.CustomerPhone)
	}
	if sent.MessageType != domain.ChatMessageSent || !sent.Processed || sent.BotResponse == nil {
		t.Fatalf("sent row = %+v", sent)
	}
	if sentTo != "5511987654321" {
		t.Fatalf("reply sent to %q, want normalized phone", sentTo)
	}
	if len(f.sender.texts) != 1 || f.sender.texts[0] != *sent.BotResponse {
		t.Fatalf("texts = %v, want stored reply", f.sender.texts)
	}
}

func TestChatbotServiceHandleEventIgnores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event WebhookEvent
	}{
		{name: "other event", event: WebhookEvent{Event: "connection.update"}},
		{
			name: "own message",
			event: WebhookEvent{Event: "messages.upsert", Data: WebhookData{Messages: []WebhookMessage{{
				Key:     WebhookKey{RemoteJID: "5511987654321@s.whatsapp.net", FromMe: true},
				Message: WebhookContent{Conversation: "saldo"},
			}}}},
		},
		{name: "empty text", event: textEvent("5511987654321@s.whatsapp.net", "   ")},
		{name: "group sender", event: textEvent("120363025@g.us", "saldo")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newChatbotFixture(t)
			answered, err := f.svc.HandleEvent(context.Background(), tt.event)
			if err != nil {
				t.Fatalf("HandleEvent() error = %v", err)
			}
			if answered != 0 || len(f.messages.messages) != 0 || len(f.sender.texts) != 0 {
				t.Fatalf("answered = %d, stored = %d, sent = %d, want nothing", answered, len(f.messages.messages), len(f.sender.texts))
			}
		})
	}
}

func TestChatbotServiceExtendedText(t *testing.T) {
	t.Parallel()

	msg := WebhookMessage{Message: WebhookContent{ExtendedTextMessage: &ExtendedTextMessage{Text: " ajuda "}}}
	if got := msg.Text(); got != "ajuda" {
		t.Fatalf("Text() = %q, want ajuda", got)
	}
}

func TestChatbotServiceSendFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	f := newChatbotFixture(t)
	f.sender.textFn = func(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error) {
		return nil, provider.ErrNotConfigured
	}

	answered, err := f.svc.HandleEvent(context.Background(), textEvent("5511987654321@s.whatsapp.net", "oi"))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if answered != 1 {
		t.Fatalf("answered = %d, want 1", answered)
	}
}

func TestChatbotServiceStorageFailure(t *testing.T) {
	t.Parallel()

	f := newChatbotFixture(t)
	f.messages.err = errors.New("db unavailable")

	if _, err := f.svc.HandleEvent(context.Background(), textEvent("5511987654321@s.whatsapp.net", "oi")); err == nil {
		t.Fatal("expected storage error")
	}
	if len(f.sender.texts) != 0 {
		t.Fatal("no reply expected when the inbound message cannot be stored")
	}
}
