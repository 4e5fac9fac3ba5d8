package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const staleLeaseMessage = "processing lease expired"

type QueueRepository interface {
	Enqueue(ctx context.Context, entry *domain.QueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.QueueEntry, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	Release(ctx context.Context, id string, errorMessage string) error
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

func (r *GormQueueRepo) Enqueue(ctx context.Context, entry *domain.QueueEntry) error {
	return enqueueEntries(r.db.WithContext(ctx), []*domain.QueueEntry{entry})
}

func (r *GormQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	var model QueueEntryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return queueEntryModelToDomain(&model), nil
}

// ClaimDue moves up to limit due pending entries to processing, counting the
// attempt, and returns them in scheduled_for order. Rows locked by a
// concurrent sweep are skipped.
func (r *GormQueueRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	var claimed []domain.QueueEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []QueueEntryModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_for <= ? AND attempts < ?",
				domain.QueueStatusPending, now, domain.MaxQueueAttempts).
			Order("scheduled_for ASC").
			Limit(limit).
			Find(&models).Error
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]string, 0, len(models))
		for i := range models {
			ids = append(ids, models[i].ID)
		}

		err = tx.Model(&QueueEntryModel{}).
			Where("id IN ? AND status = ?", ids, domain.QueueStatusPending).
			Updates(map[string]any{
				"status":          domain.QueueStatusProcessing,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_attempt_at": now,
				"updated_at":      now,
			}).Error
		if err != nil {
			return err
		}

		claimed = make([]domain.QueueEntry, 0, len(models))
		for i := range models {
			models[i].Status = domain.QueueStatusProcessing
			models[i].Attempts++
			models[i].LastAttemptAt = &now
			claimed = append(claimed, *queueEntryModelToDomain(&models[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (r *GormQueueRepo) MarkSent(ctx context.Context, id string) error {
	return r.finishProcessing(ctx, id, map[string]any{
		"status":        domain.QueueStatusSent,
		"error_message": nil,
	})
}

func (r *GormQueueRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	return r.finishProcessing(ctx, id, map[string]any{
		"status":        domain.QueueStatusFailed,
		"error_message": errorMessage,
	})
}

func (r *GormQueueRepo) Release(ctx context.Context, id string, errorMessage string) error {
	return r.finishProcessing(ctx, id, map[string]any{
		"status":        domain.QueueStatusPending,
		"error_message": errorMessage,
	})
}

// ReleaseStale returns entries abandoned in processing since cutoff to
// pending, or to failed once their attempts are spent.
func (r *GormQueueRepo) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&QueueEntryModel{}).
			Where("status = ? AND last_attempt_at <= ?", domain.QueueStatusProcessing, cutoff).
			Session(&gorm.Session{})

		failed := stale.
			Where("attempts >= ?", domain.MaxQueueAttempts).
			Updates(map[string]any{
				"status":        domain.QueueStatusFailed,
				"error_message": staleLeaseMessage,
			})
		if failed.Error != nil {
			return failed.Error
		}

		released := stale.
			Where("attempts < ?", domain.MaxQueueAttempts).
			Updates(map[string]any{
				"status":        domain.QueueStatusPending,
				"error_message": staleLeaseMessage,
			})
		if released.Error != nil {
			return released.Error
		}

		total = failed.RowsAffected + released.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *GormQueueRepo) finishProcessing(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&QueueEntryModel{}).
		Where("id = ? AND status = ?", id, domain.QueueStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// enqueueEntries inserts entries on db, which may be a transaction.
func enqueueEntries(db *gorm.DB, entries []*domain.QueueEntry) error {
	models := make([]QueueEntryModel, 0, len(entries))
	modelIndexes := make([]int, 0, len(entries))
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.Status == "" {
			entry.Status = domain.QueueStatusPending
		}
		if entry.ScheduledFor.IsZero() {
			entry.ScheduledFor = time.Now().UTC()
		}
		models = append(models, *queueEntryModelFromDomain(entry))
		modelIndexes = append(modelIndexes, i)
	}

	if len(models) == 0 {
		return nil
	}

	if err := db.Create(&models).Error; err != nil {
		return err
	}

	for i := range models {
		*entries[modelIndexes[i]] = *queueEntryModelToDomain(&models[i])
	}
	return nil
}
