package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/receipt"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

const receiptPath = "/v1/receipts/"

type ReceiptResult struct {
	Receipt *domain.Receipt
	Created bool
}

// ReceiptService issues one digital receipt per registration and renders it
// on demand.
type ReceiptService struct {
	receipts repository.ReceiptRepository
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

func NewReceiptService(receipts repository.ReceiptRepository, baseURL string, logger *zap.Logger) (*ReceiptService, error) {
	if receipts == nil {
		return nil, fmt.Errorf("receipt repository is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("public base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReceiptService{
		receipts: receipts,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Generate returns the registration's receipt, creating it on first call.
func (s *ReceiptService) Generate(ctx context.Context, registrationID string) (*ReceiptResult, error) {
	registrationID = strings.TrimSpace(registrationID)
	if _, err := uuid.Parse(registrationID); err != nil {
		return nil, fmt.Errorf("%w: invalid registration id %q", domain.ErrValidation, registrationID)
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("registrationId", registrationID))

	existing, err := s.receipts.GetByRegistration(ctx, registrationID)
	if err == nil {
		return &ReceiptResult{Receipt: existing}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}

	details, err := s.receipts.Details(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	now := s.now().UTC()
	code := domain.NewVerificationCode(details.SerialCode, now)
	rec := &domain.Receipt{
		ID:               uuid.NewString(),
		RegistrationID:   registrationID,
		ReceiptURL:       s.baseURL + receiptPath + url.PathEscape(code),
		VerificationCode: code,
		GeneratedAt:      now,
	}

	err = s.receipts.Create(ctx, rec)
	if errors.Is(err, domain.ErrConflict) {
		// Issued concurrently; hand back the stored one.
		existing, err := s.receipts.GetByRegistration(ctx, registrationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load receipt: %w", err)
		}
		return &ReceiptResult{Receipt: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	logger.Info("receipt generated", zap.String("serialCode", details.SerialCode))
	return &ReceiptResult{Receipt: rec, Created: true}, nil
}

// Render writes the HTML receipt identified by its verification code.
func (s *ReceiptService) Render(ctx context.Context, w io.Writer, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: verification code is required", domain.ErrValidation)
	}

	rec, err := s.receipts.GetByVerificationCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load receipt: %w", err)
	}
	details, err := s.receipts.Details(ctx, rec.RegistrationID)
	if err != nil {
		return fmt.Errorf("failed to load registration: %w", err)
	}

	return receipt.Render(w, receipt.Document{
		Details:          *details,
		VerificationCode: rec.VerificationCode,
		GeneratedAt:      rec.GeneratedAt,
	})
}
