package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the terminal outcome of a gateway invocation.
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusSuccess, DeliveryStatusFailed:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryLog is an append-only audit row for one gateway invocation.
type DeliveryLog struct {
	ID             string
	CustomerPhone  string
	CustomerName   string
	PrizeName      *string
	SerialCode     *string
	Status         DeliveryStatus
	Attempts       int
	ErrorMessage   *string
	ResponseStatus *int
	ResponseBody   json.RawMessage
	CreatedAt      time.Time
}
