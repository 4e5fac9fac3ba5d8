package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

// ErrInvalidAccessCode is returned for a wrong, expired or already used code.
var ErrInvalidAccessCode = fmt.Errorf("%w: invalid or expired access code", domain.ErrValidation)

// LoyaltyService issues and verifies the short-lived codes customers use to
// open their points dashboard.
type LoyaltyService struct {
	loyalty repository.LoyaltyRepository
	sender  PrizeSender
	logger  *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func NewLoyaltyService(loyalty repository.LoyaltyRepository, sender PrizeSender, logger *zap.Logger) (*LoyaltyService, error) {
	if loyalty == nil {
		return nil, fmt.Errorf("loyalty repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("prize sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LoyaltyService{
		loyalty: loyalty,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
		newCode: randomAccessCode,
	}, nil
}

// SendAccessCode stores a fresh code for phone and delivers it on WhatsApp.
// Unknown customers get ErrNotFound.
func (s *LoyaltyService) SendAccessCode(ctx context.Context, phone string) error {
	phone, err := message.NormalizePhone(phone)
	if err != nil {
		return err
	}

	customer, err := s.loyalty.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: customer %s is not in the loyalty program", domain.ErrNotFound, phone)
		}
		return fmt.Errorf("failed to load loyalty: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("failed to generate access code: %w", err)
	}

	expiresAt := s.now().UTC().Add(domain.AccessCodeTTL)
	if err := s.loyalty.SetAccessCode(ctx, phone, code, expiresAt); err != nil {
		return fmt.Errorf("failed to store access code: %w", err)
	}

	if _, err := s.sender.SendPrize(ctx, KindAccessCode, phone, message.AccessCodePayload(customer.CustomerName, code)); err != nil {
		return err
	}

	observability.WithContextLogger(s.logger, ctx).Info("access code sent",
		observability.CustomerPhone(phone),
		zap.Time("expiresAt", expiresAt),
	)
	return nil
}

// VerifyAccessCode consumes a valid code and returns the customer.
func (s *LoyaltyService) VerifyAccessCode(ctx context.Context, phone string, code string) (*domain.CustomerLoyalty, error) {
	phone, err := message.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.loyalty.GetByPhone(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidAccessCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loyalty: %w", err)
	}

	now := s.now().UTC()
	if !customer.AccessCodeValid(code, now) {
		return nil, ErrInvalidAccessCode
	}

	if err := s.loyalty.ConsumeAccessCode(ctx, phone, now); err != nil {
		return nil, fmt.Errorf("failed to consume access code: %w", err)
	}

	customer.AuthCode = nil
	customer.AuthCodeExpiresAt = nil
	customer.LastLoginAt = &now
	return customer, nil
}

// randomAccessCode returns a uniformly drawn code in [100000, 999999].
func randomAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", domain.AccessCodeLength, n.Int64()+100000), nil
}
