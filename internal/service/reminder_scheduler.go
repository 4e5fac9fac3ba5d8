package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

const (
	ReminderLockKey = "reminders:lock"
	reminderLockTTL = 10 * time.Minute

	// A run stops this long before its lock can lapse.
	defaultReminderRunBudget = reminderLockTTL - time.Minute
	defaultReminderBatchSize = 100
)

// Locker grants a cross-process lock on key for ttl.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

type ReminderSummary struct {
	Expired           int64
	ThreeDayReminders int
	SevenDayReminders int
	Skipped           bool
	// Truncated is set when the run budget ran out before every pass finished.
	Truncated bool
}

// ReminderScheduler expires stale registrations and nudges customers who
// have not collected their prize.
type ReminderScheduler struct {
	registrations repository.RegistrationRepository
	sender        PrizeSender
	locker        Locker
	logger        *zap.Logger
	metrics       *observability.Metrics
	batchSize     int
	budget        time.Duration
	now           func() time.Time
}

func NewReminderScheduler(
	registrations repository.RegistrationRepository,
	sender PrizeSender,
	locker Locker,
	logger *zap.Logger,
) (*ReminderScheduler, error) {
	if registrations == nil {
		return nil, fmt.Errorf("registration repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("prize sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScheduler{
		registrations: registrations,
		sender:        sender,
		locker:        locker,
		logger:        logger,
		batchSize:     defaultReminderBatchSize,
		budget:        defaultReminderRunBudget,
		now:           time.Now,
	}, nil
}

func (s *ReminderScheduler) WithMetrics(metrics *observability.Metrics) *ReminderScheduler {
	s.metrics = metrics
	return s
}

// Run executes the expiry, 3-day and 7-day passes in that order. Each pass
// loads at most one batch and rows are re-checked against the domain rules
// before anything is changed or sent. Send failures are logged per
// registration and do not stop the run. The run ends early, without error,
// once its budget is spent; what is left is picked up by the next run.
func (s *ReminderScheduler) Run(ctx context.Context) (ReminderSummary, error) {
	logger := observability.WithContextLogger(s.logger, ctx)

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, ReminderLockKey, reminderLockTTL)
		if err != nil {
			return ReminderSummary{}, fmt.Errorf("failed to acquire reminder lock: %w", err)
		}
		if !ok {
			logger.Info("reminder run skipped, lock held elsewhere")
			return ReminderSummary{Skipped: true}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release reminder lock", zap.Error(err))
			}
		}()
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	now := s.now().UTC()
	var summary ReminderSummary

	expired, err := s.expire(ctx, now)
	if err != nil {
		return s.finish(parent, ctx, summary, fmt.Errorf("failed to expire registered cards: %w", err))
	}
	summary.Expired = expired
	s.metrics.AddReminders("expired", int(expired))

	first, err := s.registrations.DueFirstReminders(ctx, now, s.batchSize)
	if err != nil {
		return s.finish(parent, ctx, summary, fmt.Errorf("failed to load 3-day reminders: %w", err))
	}
	summary.ThreeDayReminders = s.remindAll(ctx, now, KindFirstReminder, first,
		domain.Registration.DueForFirstReminder, s.registrations.MarkReminded)
	s.metrics.AddReminders("three_day", summary.ThreeDayReminders)
	if ctx.Err() != nil {
		return s.finish(parent, ctx, summary, nil)
	}

	second, err := s.registrations.DueSecondReminders(ctx, now, s.batchSize)
	if err != nil {
		return s.finish(parent, ctx, summary, fmt.Errorf("failed to load 7-day reminders: %w", err))
	}
	summary.SevenDayReminders = s.remindAll(ctx, now, KindSecondReminder, second,
		domain.Registration.DueForSecondReminder, s.registrations.MarkSecondReminded)
	s.metrics.AddReminders("seven_day", summary.SevenDayReminders)

	return s.finish(parent, ctx, summary, nil)
}

// finish turns a spent run budget into a truncated summary. Cancellation of
// the caller's context is still reported as an error.
func (s *ReminderScheduler) finish(parent, ctx context.Context, summary ReminderSummary, err error) (ReminderSummary, error) {
	logger := observability.WithContextLogger(s.logger, parent)

	if ctx.Err() != nil && parent.Err() == nil {
		summary.Truncated = true
		err = nil
		logger.Warn("reminder run budget exhausted", zap.Duration("budget", s.budget))
	}
	if err != nil {
		return summary, err
	}
	if parent.Err() != nil {
		return summary, parent.Err()
	}

	logger.Info("reminder run finished",
		zap.Int64("expired", summary.Expired),
		zap.Int("threeDayReminders", summary.ThreeDayReminders),
		zap.Int("sevenDayReminders", summary.SevenDayReminders),
		zap.Bool("truncated", summary.Truncated),
	)
	return summary, nil
}

func (s *ReminderScheduler) expire(ctx context.Context, now time.Time) (int64, error) {
	due, err := s.registrations.DueExpiries(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	cardIDs := make([]string, 0, len(due))
	for _, reg := range due {
		if reg.DueForExpiry(now) {
			cardIDs = append(cardIDs, reg.ScratchCardID)
		}
	}
	return s.registrations.ExpireCards(ctx, cardIDs)
}

// remindAll sends kind to every registration still due and stamps it. The
// stamp lands whatever the delivery outcome so a broken number is not retried
// hourly, unless the send was cut short by the run budget.
func (s *ReminderScheduler) remindAll(
	ctx context.Context,
	now time.Time,
	kind string,
	regs []domain.Registration,
	due func(domain.Registration, time.Time) bool,
	stamp func(ctx context.Context, id string, at time.Time) error,
) int {
	logger := observability.WithContextLogger(s.logger, ctx)

	reminded := 0
	for _, reg := range regs {
		if ctx.Err() != nil {
			break
		}
		if !due(reg, now) {
			logger.Warn("registration no longer due, skipped",
				zap.String("kind", kind),
				zap.String("registrationId", reg.ID),
			)
			continue
		}

		s.remind(ctx, kind, reg)
		if ctx.Err() != nil {
			break
		}
		if err := stamp(context.WithoutCancel(ctx), reg.ID, now); err != nil {
			logger.Error("failed to stamp reminder",
				zap.String("kind", kind),
				zap.String("registrationId", reg.ID),
				zap.Error(err),
			)
		}
		reminded++
	}
	return reminded
}

func (s *ReminderScheduler) remind(ctx context.Context, kind string, reg domain.Registration) {
	_, err := s.sender.SendPrize(ctx, kind, reg.CustomerPhone, message.ReminderPayload(reg))
	if err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("reminder send failed",
			zap.String("kind", kind),
			zap.String("registrationId", reg.ID),
			zap.Error(err),
		)
	}
}
