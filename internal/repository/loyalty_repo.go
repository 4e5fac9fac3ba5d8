package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
)

type LoyaltyRepository interface {
	GetByPhone(ctx context.Context, phone string) (*domain.CustomerLoyalty, error)
	SetAccessCode(ctx context.Context, phone string, code string, expiresAt time.Time) error
	ConsumeAccessCode(ctx context.Context, phone string, at time.Time) error
}

type AchievementRepository interface {
	ListAll(ctx context.Context) ([]domain.Achievement, error)
	ListUnlocked(ctx context.Context, phone string) ([]domain.CustomerAchievement, error)
	Unlock(ctx context.Context, unlocked *domain.CustomerAchievement) error
}

type GormLoyaltyRepo struct {
	db *gorm.DB
}

func NewGormLoyaltyRepo(db *gorm.DB) *GormLoyaltyRepo {
	return &GormLoyaltyRepo{db: db}
}

func (r *GormLoyaltyRepo) GetByPhone(ctx context.Context, phone string) (*domain.CustomerLoyalty, error) {
	var model CustomerLoyaltyModel
	err := r.db.WithContext(ctx).First(&model, "customer_phone = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return loyaltyModelToDomain(&model), nil
}

func (r *GormLoyaltyRepo) SetAccessCode(ctx context.Context, phone string, code string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&CustomerLoyaltyModel{}).
		Where("customer_phone = ?", phone).
		Updates(map[string]any{
			"auth_code":            code,
			"auth_code_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumeAccessCode clears the code so it cannot be reused and stamps the login.
func (r *GormLoyaltyRepo) ConsumeAccessCode(ctx context.Context, phone string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&CustomerLoyaltyModel{}).
		Where("customer_phone = ?", phone).
		Updates(map[string]any{
			"auth_code":            nil,
			"auth_code_expires_at": nil,
			"last_login_at":        at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type GormAchievementRepo struct {
	db *gorm.DB
}

func NewGormAchievementRepo(db *gorm.DB) *GormAchievementRepo {
	return &GormAchievementRepo{db: db}
}

func (r *GormAchievementRepo) ListAll(ctx context.Context) ([]domain.Achievement, error) {
	var models []AchievementModel
	if err := r.db.WithContext(ctx).Order("requirement_value ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	achievements := make([]domain.Achievement, 0, len(models))
	for i := range models {
		achievements = append(achievements, *achievementModelToDomain(&models[i]))
	}
	return achievements, nil
}

func (r *GormAchievementRepo) ListUnlocked(ctx context.Context, phone string) ([]domain.CustomerAchievement, error) {
	var models []CustomerAchievementModel
	err := r.db.WithContext(ctx).
		Preload("Achievement").
		Where("customer_phone = ?", phone).
		Order("unlocked_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	unlocked := make([]domain.CustomerAchievement, 0, len(models))
	for i := range models {
		unlocked = append(unlocked, domain.CustomerAchievement{
			ID:            models[i].ID,
			CustomerPhone: models[i].CustomerPhone,
			AchievementID: models[i].AchievementID,
			UnlockedAt:    models[i].UnlockedAt,
			Achievement:   achievementModelToDomain(models[i].Achievement),
		})
	}
	return unlocked, nil
}

// Unlock inserts the pair, returning ErrConflict if it already exists.
func (r *GormAchievementRepo) Unlock(ctx context.Context, unlocked *domain.CustomerAchievement) error {
	if unlocked.ID == "" {
		unlocked.ID = uuid.NewString()
	}
	if unlocked.UnlockedAt.IsZero() {
		unlocked.UnlockedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Create(&CustomerAchievementModel{
		ID:            unlocked.ID,
		CustomerPhone: unlocked.CustomerPhone,
		AchievementID: unlocked.AchievementID,
		UnlockedAt:    unlocked.UnlockedAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}
