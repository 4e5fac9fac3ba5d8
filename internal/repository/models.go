package repository

import (
	"encoding/json"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"gorm.io/datatypes"
)

// QueueEntryModel is the persistence model for the notification_queue table.
type QueueEntryModel struct {
	ID               string                  `gorm:"type:uuid;primaryKey"`
	NotificationType domain.NotificationType `gorm:"type:varchar(32);not null;default:standard"`
	CustomerName     string                  `gorm:"type:varchar(255);not null;default:''"`
	CustomerPhone    string                  `gorm:"type:varchar(32);not null"`
	PrizeName        *string                 `gorm:"type:varchar(255)"`
	SerialCode       *string                 `gorm:"type:varchar(64)"`
	RegistrationID   *string                 `gorm:"type:uuid"`
	ScheduledFor     time.Time               `gorm:"type:timestamptz;not null"`
	Status           domain.QueueStatus      `gorm:"type:varchar(16);not null;default:pending"`
	Attempts         int                     `gorm:"not null;default:0"`
	LastAttemptAt    *time.Time              `gorm:"type:timestamptz"`
	ErrorMessage     *string                 `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (QueueEntryModel) TableName() string {
	return "notification_queue"
}

// DeliveryLogModel is the persistence model for whatsapp_logs.
type DeliveryLogModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	CustomerPhone  string                `gorm:"type:varchar(32);not null"`
	CustomerName   string                `gorm:"type:varchar(255);not null;default:''"`
	PrizeName      *string               `gorm:"type:varchar(255)"`
	SerialCode     *string               `gorm:"type:text"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(16);not null"`
	Attempts       int                   `gorm:"not null;default:1"`
	ErrorMessage   *string               `gorm:"type:text"`
	ResponseStatus *int                  `gorm:"type:int"`
	ResponseBody   datatypes.JSON        `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (DeliveryLogModel) TableName() string {
	return "whatsapp_logs"
}

type PrizeModel struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	Name       string  `gorm:"type:varchar(255);not null"`
	PrizeValue float64 `gorm:"type:numeric(10,2);not null;default:0"`
	CreatedAt  time.Time
}

func (PrizeModel) TableName() string {
	return "prizes"
}

type ScratchCardModel struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	SerialCode string            `gorm:"type:varchar(64);not null;uniqueIndex"`
	PrizeID    *string           `gorm:"type:uuid"`
	CompanyID  *string           `gorm:"type:uuid"`
	Status     domain.CardStatus `gorm:"type:varchar(16);not null;default:available"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ScratchCardModel) TableName() string {
	return "scratch_cards"
}

type RegistrationModel struct {
	ID               string     `gorm:"type:uuid;primaryKey"`
	ScratchCardID    string     `gorm:"type:uuid;not null"`
	CustomerName     string     `gorm:"type:varchar(255);not null"`
	CustomerPhone    string     `gorm:"type:varchar(32);not null"`
	CustomerEmail    *string    `gorm:"type:varchar(255)"`
	RegisteredAt     time.Time  `gorm:"type:timestamptz;not null"`
	RemindedAt       *time.Time `gorm:"type:timestamptz"`
	SecondRemindedAt *time.Time `gorm:"type:timestamptz"`
}

func (RegistrationModel) TableName() string {
	return "registrations"
}

type RedemptionModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	ScratchCardID string    `gorm:"type:uuid;not null"`
	AttendantName string    `gorm:"type:varchar(255);not null"`
	Notes         *string   `gorm:"type:text"`
	RedeemedAt    time.Time `gorm:"type:timestamptz;not null"`
}

func (RedemptionModel) TableName() string {
	return "redemptions"
}

type CustomerLoyaltyModel struct {
	ID                string      `gorm:"type:uuid;primaryKey"`
	CustomerPhone     string      `gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerName      string      `gorm:"type:varchar(255);not null"`
	Points            int         `gorm:"not null;default:0"`
	Tier              domain.Tier `gorm:"type:varchar(16);not null;default:bronze"`
	TotalPrizesWon    int         `gorm:"not null;default:0"`
	AuthCode          *string     `gorm:"type:varchar(6)"`
	AuthCodeExpiresAt *time.Time  `gorm:"type:timestamptz"`
	LastLoginAt       *time.Time  `gorm:"type:timestamptz"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CustomerLoyaltyModel) TableName() string {
	return "customer_loyalty"
}

type AchievementModel struct {
	ID               string                 `gorm:"type:uuid;primaryKey"`
	Name             string                 `gorm:"type:varchar(255);not null"`
	Description      string                 `gorm:"type:text;not null;default:''"`
	Icon             string                 `gorm:"type:varchar(16);not null;default:''"`
	RequirementType  domain.RequirementType `gorm:"type:varchar(16);not null"`
	RequirementValue int                    `gorm:"not null;default:0"`
	CreatedAt        time.Time
}

func (AchievementModel) TableName() string {
	return "achievements"
}

type CustomerAchievementModel struct {
	ID            string            `gorm:"type:uuid;primaryKey"`
	CustomerPhone string            `gorm:"type:varchar(32);not null;uniqueIndex:idx_customer_achievement"`
	AchievementID string            `gorm:"type:uuid;not null;uniqueIndex:idx_customer_achievement"`
	UnlockedAt    time.Time         `gorm:"type:timestamptz;not null"`
	Achievement   *AchievementModel `gorm:"foreignKey:AchievementID"`
}

func (CustomerAchievementModel) TableName() string {
	return "customer_achievements"
}

type ChatMessageModel struct {
	ID            string                 `gorm:"type:uuid;primaryKey"`
	CustomerPhone string                 `gorm:"type:varchar(64);not null"`
	MessageText   string                 `gorm:"type:text;not null"`
	MessageType   domain.ChatMessageType `gorm:"type:varchar(16);not null"`
	BotResponse   *string                `gorm:"type:text"`
	Processed     bool                   `gorm:"not null;default:false"`
	CreatedAt     time.Time
}

func (ChatMessageModel) TableName() string {
	return "whatsapp_messages"
}

type DigitalReceiptModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	RegistrationID string    `gorm:"type:uuid;not null;uniqueIndex"`
	ReceiptURL     string    `gorm:"type:text;not null"`
	QRCodeData     string    `gorm:"column:qr_code_data;type:varchar(128);not null;uniqueIndex"`
	GeneratedAt    time.Time `gorm:"type:timestamptz;not null"`
}

func (DigitalReceiptModel) TableName() string {
	return "digital_receipts"
}

func queueEntryModelFromDomain(e *domain.QueueEntry) *QueueEntryModel {
	if e == nil {
		return nil
	}

	return &QueueEntryModel{
		ID:               e.ID,
		NotificationType: e.NotificationType,
		CustomerName:     e.CustomerName,
		CustomerPhone:    e.CustomerPhone,
		PrizeName:        e.PrizeName,
		SerialCode:       e.SerialCode,
		RegistrationID:   e.RegistrationID,
		ScheduledFor:     e.ScheduledFor,
		Status:           e.Status,
		Attempts:         e.Attempts,
		LastAttemptAt:    e.LastAttemptAt,
		ErrorMessage:     e.ErrorMessage,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func queueEntryModelToDomain(m *QueueEntryModel) *domain.QueueEntry {
	if m == nil {
		return nil
	}

	return &domain.QueueEntry{
		ID:               m.ID,
		NotificationType: m.NotificationType,
		CustomerName:     m.CustomerName,
		CustomerPhone:    m.CustomerPhone,
		PrizeName:        m.PrizeName,
		SerialCode:       m.SerialCode,
		RegistrationID:   m.RegistrationID,
		ScheduledFor:     m.ScheduledFor,
		Status:           m.Status,
		Attempts:         m.Attempts,
		LastAttemptAt:    m.LastAttemptAt,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func deliveryLogModelFromDomain(l *domain.DeliveryLog) *DeliveryLogModel {
	if l == nil {
		return nil
	}

	var body datatypes.JSON
	if len(l.ResponseBody) > 0 && json.Valid(l.ResponseBody) {
		body = datatypes.JSON(l.ResponseBody)
	}

	return &DeliveryLogModel{
		ID:             l.ID,
		CustomerPhone:  l.CustomerPhone,
		CustomerName:   l.CustomerName,
		PrizeName:      l.PrizeName,
		SerialCode:     l.SerialCode,
		Status:         l.Status,
		Attempts:       l.Attempts,
		ErrorMessage:   l.ErrorMessage,
		ResponseStatus: l.ResponseStatus,
		ResponseBody:   body,
		CreatedAt:      l.CreatedAt,
	}
}

func deliveryLogModelToDomain(m *DeliveryLogModel) *domain.DeliveryLog {
	if m == nil {
		return nil
	}

	return &domain.DeliveryLog{
		ID:             m.ID,
		CustomerPhone:  m.CustomerPhone,
		CustomerName:   m.CustomerName,
		PrizeName:      m.PrizeName,
		SerialCode:     m.SerialCode,
		Status:         m.Status,
		Attempts:       m.Attempts,
		ErrorMessage:   m.ErrorMessage,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   json.RawMessage(m.ResponseBody),
		CreatedAt:      m.CreatedAt,
	}
}

func cardModelToDomain(m *ScratchCardModel, prizeName *string) *domain.ScratchCard {
	if m == nil {
		return nil
	}

	return &domain.ScratchCard{
		ID:         m.ID,
		SerialCode: m.SerialCode,
		PrizeID:    m.PrizeID,
		PrizeName:  prizeName,
		CompanyID:  m.CompanyID,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func registrationModelFromDomain(r *domain.Registration) *RegistrationModel {
	if r == nil {
		return nil
	}

	return &RegistrationModel{
		ID:               r.ID,
		ScratchCardID:    r.ScratchCardID,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		CustomerEmail:    r.CustomerEmail,
		RegisteredAt:     r.RegisteredAt,
		RemindedAt:       r.RemindedAt,
		SecondRemindedAt: r.SecondRemindedAt,
	}
}

func loyaltyModelToDomain(m *CustomerLoyaltyModel) *domain.CustomerLoyalty {
	if m == nil {
		return nil
	}

	return &domain.CustomerLoyalty{
		ID:                m.ID,
		CustomerPhone:     m.CustomerPhone,
		CustomerName:      m.CustomerName,
		Points:            m.Points,
		Tier:              m.Tier,
		TotalPrizesWon:    m.TotalPrizesWon,
		AuthCode:          m.AuthCode,
		AuthCodeExpiresAt: m.AuthCodeExpiresAt,
		LastLoginAt:       m.LastLoginAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func achievementModelToDomain(m *AchievementModel) *domain.Achievement {
	if m == nil {
		return nil
	}

	return &domain.Achievement{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		Icon:             m.Icon,
		RequirementType:  m.RequirementType,
		RequirementValue: m.RequirementValue,
	}
}

func chatMessageModelFromDomain(c *domain.ChatMessage) *ChatMessageModel {
	if c == nil {
		return nil
	}

	return &ChatMessageModel{
		ID:            c.ID,
		CustomerPhone: c.CustomerPhone,
		MessageText:   c.MessageText,
		MessageType:   c.MessageType,
		BotResponse:   c.BotResponse,
		Processed:     c.Processed,
		CreatedAt:     c.CreatedAt,
	}
}

func receiptModelFromDomain(r *domain.Receipt) *DigitalReceiptModel {
	return &DigitalReceiptModel{
		ID:             r.ID,
		RegistrationID: r.RegistrationID,
		ReceiptURL:     r.ReceiptURL,
		QRCodeData:     r.VerificationCode,
		GeneratedAt:    r.GeneratedAt,
	}
}

func receiptModelToDomain(m *DigitalReceiptModel) *domain.Receipt {
	return &domain.Receipt{
		ID:               m.ID,
		RegistrationID:   m.RegistrationID,
		ReceiptURL:       m.ReceiptURL,
		VerificationCode: m.QRCodeData,
		GeneratedAt:      m.GeneratedAt,
	}
}
