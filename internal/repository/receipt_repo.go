package repository

import (
	"context"
	"errors"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	GetByRegistration(ctx context.Context, registrationID string) (*domain.Receipt, error)
	GetByVerificationCode(ctx context.Context, code string) (*domain.Receipt, error)
	Create(ctx context.Context, receipt *domain.Receipt) error
	Details(ctx context.Context, registrationID string) (*domain.ReceiptDetails, error)
}

type receiptDetailsRow struct {
	RegistrationID string
	CustomerName   string
	CustomerPhone  string
	SerialCode     string
	PrizeName      *string
	PrizeValue     *float64
	RegisteredAt   time.Time
	RedeemedAt     *time.Time
	AttendantName  *string
}

type GormReceiptRepo struct {
	db *gorm.DB
}

func NewGormReceiptRepo(db *gorm.DB) *GormReceiptRepo {
	return &GormReceiptRepo{db: db}
}

func (r *GormReceiptRepo) GetByRegistration(ctx context.Context, registrationID string) (*domain.Receipt, error) {
	return r.first(ctx, "registration_id = ?", registrationID)
}

func (r *GormReceiptRepo) GetByVerificationCode(ctx context.Context, code string) (*domain.Receipt, error) {
	return r.first(ctx, "qr_code_data = ?", code)
}

// Create stores a receipt. A second receipt for the same registration is
// reported as ErrConflict.
func (r *GormReceiptRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	err := r.db.WithContext(ctx).Create(receiptModelFromDomain(receipt)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

// Details loads the registration with its card, prize and latest redemption.
func (r *GormReceiptRepo) Details(ctx context.Context, registrationID string) (*domain.ReceiptDetails, error) {
	var row receiptDetailsRow
	err := r.db.WithContext(ctx).
		Table("registrations AS r").
		Select(`r.id AS registration_id, r.customer_name, r.customer_phone, r.registered_at,
			sc.serial_code, p.name AS prize_name, p.prize_value,
			rd.redeemed_at, rd.attendant_name`).
		Joins("JOIN scratch_cards sc ON sc.id = r.scratch_card_id").
		Joins("LEFT JOIN prizes p ON p.id = sc.prize_id").
		Joins("LEFT JOIN redemptions rd ON rd.scratch_card_id = r.scratch_card_id").
		Where("r.id = ?", registrationID).
		Order("rd.redeemed_at DESC NULLS LAST").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	details := &domain.ReceiptDetails{
		RegistrationID: row.RegistrationID,
		CustomerName:   row.CustomerName,
		CustomerPhone:  row.CustomerPhone,
		SerialCode:     row.SerialCode,
		PrizeName:      row.PrizeName,
		RegisteredAt:   row.RegisteredAt,
		RedeemedAt:     row.RedeemedAt,
		AttendantName:  row.AttendantName,
	}
	if row.PrizeValue != nil {
		details.PrizeValue = *row.PrizeValue
	}
	return details, nil
}

func (r *GormReceiptRepo) first(ctx context.Context, query string, arg any) (*domain.Receipt, error) {
	var model DigitalReceiptModel
	err := r.db.WithContext(ctx).Where(query, arg).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return receiptModelToDomain(&model), nil
}
