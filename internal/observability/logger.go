package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON logger for one binary ("api" or "worker").
// Sampling is off so that every delivery outcome reaches the logs.
func NewLogger(level string, component string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	fields := map[string]any{"service": "prize-notifier"}
	if component = strings.TrimSpace(component); component != "" {
		fields["component"] = component
	}
	cfg.InitialFields = fields

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// CustomerPhone logs a phone with everything but the country/area prefix and
// the last four digits masked.
func CustomerPhone(phone string) zap.Field {
	return zap.String("customerPhone", MaskPhone(phone))
}

func MaskPhone(phone string) string {
	const keepHead, keepTail = 4, 4
	if len(phone) <= keepHead+keepTail {
		return strings.Repeat("*", len(phone))
	}
	return phone[:keepHead] + strings.Repeat("*", len(phone)-keepHead-keepTail) + phone[len(phone)-keepTail:]
}
