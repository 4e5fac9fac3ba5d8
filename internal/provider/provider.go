package provider

import (
	"context"
	"encoding/json"
)

// Gateway is the outbound WhatsApp delivery port.
type Gateway interface {
	SendText(ctx context.Context, msg TextMessage) (*SendResult, error)
}

// TextMessage is one outbound WhatsApp text. Meta is only used for the delivery log.
type TextMessage struct {
	Number string
	Text   string
	Meta   DeliveryMeta
}

type DeliveryMeta struct {
	CustomerName string
	PrizeName    string
	SerialCode   string
}

// SendResult stores gateway call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	Body       json.RawMessage
	Attempts   int
}

// DeliveryRecord describes the terminal outcome of one SendText invocation.
type DeliveryRecord struct {
	Number       string
	Meta         DeliveryMeta
	Success      bool
	Attempts     int
	StatusCode   int
	Body         json.RawMessage
	ErrorMessage string
}

// DeliveryRecorder receives exactly one record per SendText invocation.
type DeliveryRecorder interface {
	Record(ctx context.Context, record DeliveryRecord)
}
