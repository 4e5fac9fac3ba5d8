package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

var ErrNotConfigured = fmt.Errorf("%w: whatsapp gateway is not configured", domain.ErrConfiguration)

// GatewayError classifies gateway call failures as transient/permanent.
type GatewayError struct {
	StatusCode   int
	Body         string
	ResponseBody json.RawMessage
	Attempts     int
	Transient    bool
	Cause        error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "gateway error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		parts = append(parts, body)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func errorMessage(err error) string {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) && strings.TrimSpace(gatewayErr.Body) != "" {
		return strings.TrimSpace(gatewayErr.Body)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
