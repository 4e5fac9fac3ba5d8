package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

var _ provider.DeliveryRecorder = (*DeliveryLogger)(nil)

// DeliveryLogger appends one whatsapp_logs row per gateway invocation.
// Persistence problems are logged and counted, never returned to the sender.
type DeliveryLogger struct {
	logs    repository.DeliveryLogRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewDeliveryLogger(logs repository.DeliveryLogRepository, logger *zap.Logger) *DeliveryLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryLogger{
		logs:   logs,
		logger: logger,
		now:    time.Now,
	}
}

func (l *DeliveryLogger) WithMetrics(metrics *observability.Metrics) *DeliveryLogger {
	l.metrics = metrics
	return l
}

func (l *DeliveryLogger) Record(ctx context.Context, record provider.DeliveryRecord) {
	if l == nil || l.logs == nil {
		return
	}

	entry := deliveryLogFromRecord(record, l.now().UTC())

	// The send already happened; a canceled request must not drop its audit row.
	if err := l.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		l.metrics.IncDeliveryLogFailure()
		observability.WithContextLogger(l.logger, ctx).Warn("failed to write delivery log",
			observability.CustomerPhone(record.Number),
			zap.String("status", entry.Status.String()),
			zap.Error(err),
		)
	}
}

func deliveryLogFromRecord(record provider.DeliveryRecord, createdAt time.Time) *domain.DeliveryLog {
	status := domain.DeliveryStatusFailed
	if record.Success {
		status = domain.DeliveryStatusSuccess
	}

	entry := &domain.DeliveryLog{
		ID:            uuid.NewString(),
		CustomerPhone: record.Number,
		CustomerName:  record.Meta.CustomerName,
		PrizeName:     optionalString(record.Meta.PrizeName),
		SerialCode:    optionalString(record.Meta.SerialCode),
		Status:        status,
		Attempts:      record.Attempts,
		ErrorMessage:  optionalString(record.ErrorMessage),
		ResponseBody:  record.Body,
		CreatedAt:     createdAt,
	}
	if record.StatusCode > 0 {
		code := record.StatusCode
		entry.ResponseStatus = &code
	}
	return entry
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
