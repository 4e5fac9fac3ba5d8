package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/queue"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

type RegisterInput struct {
	SerialCode    string
	CustomerName  string
	CustomerPhone string
	CustomerEmail *string
}

type RedeemInput struct {
	SerialCode    string
	AttendantName string
	Notes         *string
}

type RegisterResult struct {
	Registration *domain.Registration
	Card         *domain.ScratchCard
	Enqueued     []*domain.QueueEntry
}

type RedeemResult struct {
	Registration *domain.Registration
	Redemption   *domain.Redemption
	Enqueued     []*domain.QueueEntry
}

// PrizeService moves scratch cards through registration and redemption.
// Notifications are written to notification_queue in the same transaction
// as the card change, then announced to workers best-effort.
type PrizeService struct {
	cards     repository.CardRepository
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewPrizeService(cards repository.CardRepository, publisher queue.Publisher, logger *zap.Logger) (*PrizeService, error) {
	if cards == nil {
		return nil, fmt.Errorf("card repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PrizeService{
		cards:     cards,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *PrizeService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	serial := strings.TrimSpace(in.SerialCode)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial code is required", domain.ErrValidation)
	}
	phone, err := message.NormalizePhone(in.CustomerPhone)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reg := &domain.Registration{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: phone,
		CustomerEmail: in.CustomerEmail,
		RegisteredAt:  now,
	}

	card, entries, err := s.cards.Register(ctx, serial, reg, func(card domain.ScratchCard, reg domain.Registration) []*domain.QueueEntry {
		return []*domain.QueueEntry{
			prizeValidatedEntry(card, reg, now),
			achievementCheckEntry(reg, now),
		}
	})
	if err != nil {
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("card registered",
		zap.String("serialCode", serial),
		zap.String("registrationId", reg.ID),
		zap.Int("enqueued", len(entries)),
	)
	s.wakeup(ctx, entries)

	return &RegisterResult{Registration: reg, Card: card, Enqueued: entries}, nil
}

func (s *PrizeService) Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	serial := strings.TrimSpace(in.SerialCode)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial code is required", domain.ErrValidation)
	}
	attendant := strings.TrimSpace(in.AttendantName)
	if attendant == "" {
		return nil, fmt.Errorf("%w: attendant name is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	redemption := &domain.Redemption{
		AttendantName: attendant,
		Notes:         in.Notes,
		RedeemedAt:    now,
	}

	reg, entries, err := s.cards.Redeem(ctx, serial, redemption, func(card domain.ScratchCard, reg domain.Registration) []*domain.QueueEntry {
		return []*domain.QueueEntry{achievementCheckEntry(reg, now)}
	})
	if err != nil {
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("card redeemed",
		zap.String("serialCode", serial),
		zap.String("redemptionId", redemption.ID),
	)
	s.wakeup(ctx, entries)

	return &RedeemResult{Registration: reg, Redemption: redemption, Enqueued: entries}, nil
}

// wakeup never fails the caller: the periodic sweep picks entries up anyway.
func (s *PrizeService) wakeup(ctx context.Context, entries []*domain.QueueEntry) {
	if s.publisher == nil {
		return
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	for _, entry := range entries {
		msg := queue.WakeupFromEntry(entry)
		msg.CorrelationID = correlationID
		if err := s.publisher.Publish(ctx, queue.WakeupQueue, msg); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to publish wakeup",
				zap.String("entryId", entry.ID),
				zap.Error(err),
			)
		}
	}
}

func prizeValidatedEntry(card domain.ScratchCard, reg domain.Registration, now time.Time) *domain.QueueEntry {
	serial := card.SerialCode
	regID := reg.ID
	return &domain.QueueEntry{
		NotificationType: domain.NotificationTypeStandard,
		CustomerName:     reg.CustomerName,
		CustomerPhone:    reg.CustomerPhone,
		PrizeName:        card.PrizeName,
		SerialCode:       &serial,
		RegistrationID:   &regID,
		ScheduledFor:     now,
	}
}

func achievementCheckEntry(reg domain.Registration, now time.Time) *domain.QueueEntry {
	regID := reg.ID
	return &domain.QueueEntry{
		NotificationType: domain.NotificationTypeAchievementCheck,
		CustomerName:     reg.CustomerName,
		CustomerPhone:    reg.CustomerPhone,
		RegistrationID:   &regID,
		ScheduledFor:     now,
	}
}
