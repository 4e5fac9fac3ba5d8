package domain

import (
	"fmt"
	"strings"
	"time"
)

// Receipt is the digital proof of a registered (and possibly redeemed) prize.
// A registration has at most one receipt.
type Receipt struct {
	ID               string
	RegistrationID   string
	ReceiptURL       string
	VerificationCode string
	GeneratedAt      time.Time
}

// ReceiptDetails is what a receipt document shows.
type ReceiptDetails struct {
	RegistrationID string
	CustomerName   string
	CustomerPhone  string
	SerialCode     string
	PrizeName      *string
	PrizeValue     float64
	RegisteredAt   time.Time
	RedeemedAt     *time.Time
	AttendantName  *string
}

func (d ReceiptDetails) PrizeNameOrDefault() string {
	if d.PrizeName == nil || strings.TrimSpace(*d.PrizeName) == "" {
		return DefaultReminderPrizeName
	}
	return *d.PrizeName
}

func (d ReceiptDetails) Redeemed() bool {
	return d.RedeemedAt != nil
}

// NewVerificationCode is the code printed under the receipt QR.
func NewVerificationCode(serialCode string, at time.Time) string {
	return fmt.Sprintf("%s-%d", serialCode, at.UnixMilli())
}
