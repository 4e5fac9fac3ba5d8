package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
}

type GormChatMessageRepo struct {
	db *gorm.DB
}

func NewGormChatMessageRepo(db *gorm.DB) *GormChatMessageRepo {
	return &GormChatMessageRepo{db: db}
}

func (r *GormChatMessageRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(chatMessageModelFromDomain(msg)).Error
}
