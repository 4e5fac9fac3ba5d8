package domain

import (
	"fmt"
	"strings"
	"time"
)

// CardStatus represents the lifecycle state of a scratch card.
type CardStatus string

const (
	CardStatusAvailable  CardStatus = "available"
	CardStatusRegistered CardStatus = "registered"
	CardStatusRedeemed   CardStatus = "redeemed"
	CardStatusExpired    CardStatus = "expired"
)

func (s CardStatus) String() string { return string(s) }

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusAvailable, CardStatusRegistered, CardStatusRedeemed, CardStatusExpired:
		return true
	}
	return false
}

func ParseCardStatusFromString(s string) (CardStatus, error) {
	st := CardStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid card status %q", ErrValidation, s)
	}
	return st, nil
}

// Reminder windows, measured from registered_at.
const (
	FirstReminderAge   = 3 * 24 * time.Hour
	SecondReminderAge  = 7 * 24 * time.Hour
	SecondReminderGap  = 4 * 24 * time.Hour
	RegistrationExpiry = 30 * 24 * time.Hour

	DefaultReminderPrizeName = "Prêmio"
)

type ScratchCard struct {
	ID         string
	SerialCode string
	PrizeID    *string
	PrizeName  *string
	CompanyID  *string
	Status     CardStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Registration links a customer to a scratch card. Card fields are loaded
// alongside it for the reminder passes.
type Registration struct {
	ID               string
	ScratchCardID    string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    *string
	RegisteredAt     time.Time
	RemindedAt       *time.Time
	SecondRemindedAt *time.Time

	CardStatus CardStatus
	SerialCode string
	PrizeName  *string
	Redeemed   bool
}

func (r *Registration) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if strings.TrimSpace(r.CustomerPhone) == "" {
		return fmt.Errorf("%w: customer phone is required", ErrValidation)
	}
	return nil
}

// DueForFirstReminder reports whether the 3-day pass selects r at now.
func (r Registration) DueForFirstReminder(now time.Time) bool {
	if r.CardStatus != CardStatusRegistered || r.RemindedAt != nil {
		return false
	}
	return !r.RegisteredAt.After(now.Add(-FirstReminderAge)) &&
		!r.RegisteredAt.Before(now.Add(-SecondReminderAge))
}

// DueForSecondReminder reports whether the 7-day pass selects r at now.
func (r Registration) DueForSecondReminder(now time.Time) bool {
	if r.CardStatus != CardStatusRegistered || r.RemindedAt == nil || r.SecondRemindedAt != nil {
		return false
	}
	return !r.RegisteredAt.After(now.Add(-SecondReminderAge)) &&
		!r.RemindedAt.After(now.Add(-SecondReminderGap))
}

// DueForExpiry reports whether the expiry pass moves r's card to expired.
func (r Registration) DueForExpiry(now time.Time) bool {
	return r.CardStatus == CardStatusRegistered && !r.RegisteredAt.After(now.Add(-RegistrationExpiry))
}

func (r Registration) PrizeNameOrDefault() string {
	if r.PrizeName == nil || strings.TrimSpace(*r.PrizeName) == "" {
		return DefaultReminderPrizeName
	}
	return *r.PrizeName
}

type Redemption struct {
	ID            string
	ScratchCardID string
	AttendantName string
	Notes         *string
	RedeemedAt    time.Time
}
