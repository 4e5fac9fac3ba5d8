package repository

import (
	"context"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
)

type RegistrationRepository interface {
	DueExpiries(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	ExpireCards(ctx context.Context, cardIDs []string) (int64, error)
	DueFirstReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	DueSecondReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
	MarkSecondReminded(ctx context.Context, id string, at time.Time) error
	RecentByPhone(ctx context.Context, phone string, limit int) ([]domain.Registration, error)
}

// registrationRow is a registration joined with its card and prize.
type registrationRow struct {
	ID               string
	ScratchCardID    string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    *string
	RegisteredAt     time.Time
	RemindedAt       *time.Time
	SecondRemindedAt *time.Time
	CardStatus       domain.CardStatus
	SerialCode       string
	PrizeName        *string
	Redeemed         bool
}

func (row registrationRow) toDomain() domain.Registration {
	return domain.Registration{
		ID:               row.ID,
		ScratchCardID:    row.ScratchCardID,
		CustomerName:     row.CustomerName,
		CustomerPhone:    row.CustomerPhone,
		CustomerEmail:    row.CustomerEmail,
		RegisteredAt:     row.RegisteredAt,
		RemindedAt:       row.RemindedAt,
		SecondRemindedAt: row.SecondRemindedAt,
		CardStatus:       row.CardStatus,
		SerialCode:       row.SerialCode,
		PrizeName:        row.PrizeName,
		Redeemed:         row.Redeemed,
	}
}

type GormRegistrationRepo struct {
	db *gorm.DB
}

func NewGormRegistrationRepo(db *gorm.DB) *GormRegistrationRepo {
	return &GormRegistrationRepo{db: db}
}

// DueExpiries returns registrations whose card is still registered and at
// least RegistrationExpiry old, oldest first.
func (r *GormRegistrationRepo) DueExpiries(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	return r.findRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("sc.status = ? AND r.registered_at <= ?",
			domain.CardStatusRegistered,
			now.Add(-domain.RegistrationExpiry),
		).Order("r.registered_at ASC").Limit(limit)
	})
}

// ExpireCards moves the given cards to expired. Cards no longer in registered
// are left alone.
func (r *GormRegistrationRepo) ExpireCards(ctx context.Context, cardIDs []string) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&ScratchCardModel{}).
		Where("status = ? AND id IN ?", domain.CardStatusRegistered, cardIDs).
		Update("status", domain.CardStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormRegistrationRepo) DueFirstReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	return r.findRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("sc.status = ? AND r.reminded_at IS NULL AND r.registered_at <= ? AND r.registered_at >= ?",
			domain.CardStatusRegistered,
			now.Add(-domain.FirstReminderAge),
			now.Add(-domain.SecondReminderAge),
		).Order("r.registered_at ASC").Limit(limit)
	})
}

func (r *GormRegistrationRepo) DueSecondReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	return r.findRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("sc.status = ? AND r.reminded_at IS NOT NULL AND r.second_reminded_at IS NULL AND r.registered_at <= ? AND r.reminded_at <= ?",
			domain.CardStatusRegistered,
			now.Add(-domain.SecondReminderAge),
			now.Add(-domain.SecondReminderGap),
		).Order("r.registered_at ASC").Limit(limit)
	})
}

func (r *GormRegistrationRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return r.stamp(ctx, id, "reminded_at", at)
}

func (r *GormRegistrationRepo) MarkSecondReminded(ctx context.Context, id string, at time.Time) error {
	return r.stamp(ctx, id, "second_reminded_at", at)
}

func (r *GormRegistrationRepo) RecentByPhone(ctx context.Context, phone string, limit int) ([]domain.Registration, error) {
	return r.findRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("r.customer_phone = ?", phone).
			Order("r.registered_at DESC").
			Limit(limit)
	})
}

func (r *GormRegistrationRepo) stamp(ctx context.Context, id string, column string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&RegistrationModel{}).
		Where("id = ?", id).
		Update(column, at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRegistrationRepo) findRows(ctx context.Context, scope func(q *gorm.DB) *gorm.DB) ([]domain.Registration, error) {
	var rows []registrationRow
	query := r.db.WithContext(ctx).
		Table("registrations AS r").
		Select(`r.id, r.scratch_card_id, r.customer_name, r.customer_phone, r.customer_email,
			r.registered_at, r.reminded_at, r.second_reminded_at,
			sc.status AS card_status, sc.serial_code AS serial_code, p.name AS prize_name,
			EXISTS (SELECT 1 FROM redemptions rd WHERE rd.scratch_card_id = r.scratch_card_id) AS redeemed`).
		Joins("JOIN scratch_cards sc ON sc.id = r.scratch_card_id").
		Joins("LEFT JOIN prizes p ON p.id = sc.prize_id")

	if err := scope(query).Scan(&rows).Error; err != nil {
		return nil, err
	}

	registrations := make([]domain.Registration, 0, len(rows))
	for _, row := range rows {
		registrations = append(registrations, row.toDomain())
	}
	return registrations, nil
}
