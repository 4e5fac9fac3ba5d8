package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

var _ AchievementChecker = (*AchievementService)(nil)

// AchievementService unlocks achievements a customer has earned and
// announces them on WhatsApp.
type AchievementService struct {
	loyalty      repository.LoyaltyRepository
	achievements repository.AchievementRepository
	sender       PrizeSender
	logger       *zap.Logger
	now          func() time.Time
}

func NewAchievementService(
	loyalty repository.LoyaltyRepository,
	achievements repository.AchievementRepository,
	sender PrizeSender,
	logger *zap.Logger,
) (*AchievementService, error) {
	if loyalty == nil {
		return nil, fmt.Errorf("loyalty repository is required")
	}
	if achievements == nil {
		return nil, fmt.Errorf("achievement repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("prize sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AchievementService{
		loyalty:      loyalty,
		achievements: achievements,
		sender:       sender,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Check returns the achievements newly unlocked by this call. A customer
// outside the loyalty program unlocks nothing. The unlocks are final once
// stored, so a failed announcement is logged and not returned.
func (s *AchievementService) Check(ctx context.Context, phone string) ([]domain.Achievement, error) {
	phone, err := message.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(observability.CustomerPhone(phone))

	loyalty, err := s.loyalty.GetByPhone(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("customer not in loyalty program")
		return []domain.Achievement{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loyalty: %w", err)
	}

	all, err := s.achievements.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}

	unlocked, err := s.achievements.ListUnlocked(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked achievements: %w", err)
	}
	unlockedIDs := make(map[string]struct{}, len(unlocked))
	for _, ua := range unlocked {
		unlockedIDs[ua.AchievementID] = struct{}{}
	}

	now := s.now().UTC()
	newUnlocks := make([]domain.Achievement, 0)
	for _, achievement := range all {
		if _, ok := unlockedIDs[achievement.ID]; ok {
			continue
		}
		if !achievement.UnlockedBy(*loyalty) {
			continue
		}

		err := s.achievements.Unlock(ctx, &domain.CustomerAchievement{
			CustomerPhone: phone,
			AchievementID: achievement.ID,
			UnlockedAt:    now,
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unlock achievement %s: %w", achievement.ID, err)
		}

		logger.Info("achievement unlocked", zap.String("achievement", achievement.Name))
		newUnlocks = append(newUnlocks, achievement)
	}

	if len(newUnlocks) == 0 {
		return newUnlocks, nil
	}

	payload := message.AchievementPayload(loyalty.CustomerName, newUnlocks)
	if _, err := s.sender.SendPrize(ctx, KindAchievements, phone, payload); err != nil {
		logger.Warn("failed to announce achievements",
			zap.Int("unlocked", len(newUnlocks)),
			zap.Error(err),
		)
	}

	return newUnlocks, nil
}
