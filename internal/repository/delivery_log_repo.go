package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
)

type DeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
}

type GormDeliveryLogRepo struct {
	db *gorm.DB
}

func NewGormDeliveryLogRepo(db *gorm.DB) *GormDeliveryLogRepo {
	return &GormDeliveryLogRepo{db: db}
}

func (r *GormDeliveryLogRepo) Create(ctx context.Context, log *domain.DeliveryLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	model := deliveryLogModelFromDomain(log)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*log = *deliveryLogModelToDomain(model)
	return nil
}
