package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType selects how a queued entry is dispatched.
type NotificationType string

const (
	NotificationTypeStandard         NotificationType = "standard"
	NotificationTypeAchievementCheck NotificationType = "achievement_check"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeStandard, NotificationTypeAchievementCheck:
		return true
	}
	return false
}

func ParseNotificationTypeFromString(s string) (NotificationType, error) {
	nt := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	if !nt.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return nt, nil
}

// QueueStatus represents the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

func (s QueueStatus) String() string { return string(s) }

func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusSent, QueueStatusFailed:
		return true
	}
	return false
}

func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed
}

func ParseQueueStatusFromString(s string) (QueueStatus, error) {
	st := QueueStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid queue status %q", ErrValidation, s)
	}
	return st, nil
}

const (
	// MaxQueueAttempts is the processing ceiling for a queue entry.
	MaxQueueAttempts = 3

	DefaultQueuedPrizeName = "Seu prêmio"
)

// QueueEntry is a deferred notification waiting for the queue sweep.
type QueueEntry struct {
	ID               string
	NotificationType NotificationType
	CustomerName     string
	CustomerPhone    string
	PrizeName        *string
	SerialCode       *string
	RegistrationID   *string
	ScheduledFor     time.Time
	Status           QueueStatus
	Attempts         int
	LastAttemptAt    *time.Time
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (e *QueueEntry) Validate() error {
	if !e.NotificationType.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, e.NotificationType)
	}
	if strings.TrimSpace(e.CustomerPhone) == "" {
		return fmt.Errorf("%w: customer phone is required", ErrValidation)
	}
	if e.NotificationType == NotificationTypeStandard && strings.TrimSpace(e.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if e.Attempts < 0 || e.Attempts > MaxQueueAttempts {
		return fmt.Errorf("%w: attempts must be between 0 and %d", ErrValidation, MaxQueueAttempts)
	}
	return nil
}

// Exhausted reports whether the entry may not be attempted again.
func (e QueueEntry) Exhausted() bool {
	return e.Attempts >= MaxQueueAttempts
}

// PrizeNameOrDefault returns the prize label used when the entry is delivered.
func (e QueueEntry) PrizeNameOrDefault() string {
	if e.PrizeName == nil || strings.TrimSpace(*e.PrizeName) == "" {
		return DefaultQueuedPrizeName
	}
	return *e.PrizeName
}

func (e QueueEntry) SerialCodeOrEmpty() string {
	if e.SerialCode == nil {
		return ""
	}
	return *e.SerialCode
}
