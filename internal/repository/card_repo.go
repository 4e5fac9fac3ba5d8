package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxBuilder returns the queue entries committed together with a card transition.
type OutboxBuilder func(card domain.ScratchCard, reg domain.Registration) []*domain.QueueEntry

type CardRepository interface {
	Register(ctx context.Context, serialCode string, reg *domain.Registration, outbox OutboxBuilder) (*domain.ScratchCard, []*domain.QueueEntry, error)
	Redeem(ctx context.Context, serialCode string, redemption *domain.Redemption, outbox OutboxBuilder) (*domain.Registration, []*domain.QueueEntry, error)
}

type GormCardRepo struct {
	db *gorm.DB
}

func NewGormCardRepo(db *gorm.DB) *GormCardRepo {
	return &GormCardRepo{db: db}
}

// Register claims an available card for a customer and writes the outbox
// entries in the same transaction.
func (r *GormCardRepo) Register(
	ctx context.Context,
	serialCode string,
	reg *domain.Registration,
	outbox OutboxBuilder,
) (*domain.ScratchCard, []*domain.QueueEntry, error) {
	if err := reg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		card    *domain.ScratchCard
		entries []*domain.QueueEntry
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, prizeName, err := lockCard(tx, serialCode)
		if err != nil {
			return err
		}
		if model.Status != domain.CardStatusAvailable {
			return fmt.Errorf("%w: card %s is %s", domain.ErrConflict, serialCode, model.Status)
		}

		if reg.ID == "" {
			reg.ID = uuid.NewString()
		}
		if reg.RegisteredAt.IsZero() {
			reg.RegisteredAt = time.Now().UTC()
		}
		reg.ScratchCardID = model.ID
		if err := tx.Create(registrationModelFromDomain(reg)).Error; err != nil {
			return err
		}

		if err := tx.Model(model).Update("status", domain.CardStatusRegistered).Error; err != nil {
			return err
		}
		model.Status = domain.CardStatusRegistered

		card = cardModelToDomain(model, prizeName)
		reg.CardStatus = card.Status
		reg.SerialCode = card.SerialCode
		reg.PrizeName = prizeName

		if outbox != nil {
			entries = outbox(*card, *reg)
		}
		return enqueueEntries(tx, entries)
	})
	if err != nil {
		return nil, nil, err
	}

	return card, entries, nil
}

// Redeem marks a registered card as redeemed, records the redemption and
// writes the outbox entries in the same transaction.
func (r *GormCardRepo) Redeem(
	ctx context.Context,
	serialCode string,
	redemption *domain.Redemption,
	outbox OutboxBuilder,
) (*domain.Registration, []*domain.QueueEntry, error) {
	var (
		reg     *domain.Registration
		entries []*domain.QueueEntry
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, prizeName, err := lockCard(tx, serialCode)
		if err != nil {
			return err
		}
		if model.Status != domain.CardStatusRegistered {
			return fmt.Errorf("%w: card %s is %s", domain.ErrConflict, serialCode, model.Status)
		}

		var regModel RegistrationModel
		err = tx.Where("scratch_card_id = ?", model.ID).
			Order("registered_at DESC").
			First(&regModel).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: card %s has no registration", domain.ErrConflict, serialCode)
		}
		if err != nil {
			return err
		}

		if redemption.ID == "" {
			redemption.ID = uuid.NewString()
		}
		if redemption.RedeemedAt.IsZero() {
			redemption.RedeemedAt = time.Now().UTC()
		}
		redemption.ScratchCardID = model.ID
		if err := tx.Create(&RedemptionModel{
			ID:            redemption.ID,
			ScratchCardID: redemption.ScratchCardID,
			AttendantName: redemption.AttendantName,
			Notes:         redemption.Notes,
			RedeemedAt:    redemption.RedeemedAt,
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(model).Update("status", domain.CardStatusRedeemed).Error; err != nil {
			return err
		}
		model.Status = domain.CardStatusRedeemed

		card := cardModelToDomain(model, prizeName)
		reg = &domain.Registration{
			ID:               regModel.ID,
			ScratchCardID:    regModel.ScratchCardID,
			CustomerName:     regModel.CustomerName,
			CustomerPhone:    regModel.CustomerPhone,
			CustomerEmail:    regModel.CustomerEmail,
			RegisteredAt:     regModel.RegisteredAt,
			RemindedAt:       regModel.RemindedAt,
			SecondRemindedAt: regModel.SecondRemindedAt,
			CardStatus:       card.Status,
			SerialCode:       card.SerialCode,
			PrizeName:        prizeName,
			Redeemed:         true,
		}

		if outbox != nil {
			entries = outbox(*card, *reg)
		}
		return enqueueEntries(tx, entries)
	})
	if err != nil {
		return nil, nil, err
	}

	return reg, entries, nil
}

func lockCard(tx *gorm.DB, serialCode string) (*ScratchCardModel, *string, error) {
	var model ScratchCardModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "serial_code = ?", serialCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, serialCode)
	}
	if err != nil {
		return nil, nil, err
	}

	if model.PrizeID == nil {
		return &model, nil, nil
	}

	var prize PrizeModel
	err = tx.Select("name").First(&prize, "id = ?", *model.PrizeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &model, &prize.Name, nil
}
