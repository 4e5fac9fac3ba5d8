package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/queue"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepBatchSize  = 50
	defaultProcessingLease = 10 * time.Minute
	defaultEntryPause      = time.Second

	sweepCanceledMessage = "sweep canceled before processing"
)

// PrizeSender sends a rendered prize-template message.
type PrizeSender interface {
	SendPrize(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error)
}

// AchievementChecker evaluates and announces unlocked achievements.
type AchievementChecker interface {
	Check(ctx context.Context, phone string) ([]domain.Achievement, error)
}

type SweepSummary struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   bool
}

// QueueProcessor drains due notification_queue entries.
type QueueProcessor struct {
	entries      repository.QueueRepository
	sender       PrizeSender
	achievements AchievementChecker
	logger       *zap.Logger
	metrics      *observability.Metrics
	batchSize    int
	lease        time.Duration
	pause        time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	running      atomic.Bool
}

func NewQueueProcessor(
	entries repository.QueueRepository,
	sender PrizeSender,
	achievements AchievementChecker,
	logger *zap.Logger,
) (*QueueProcessor, error) {
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("prize sender is required")
	}
	if achievements == nil {
		return nil, fmt.Errorf("achievement checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QueueProcessor{
		entries:      entries,
		sender:       sender,
		achievements: achievements,
		logger:       logger,
		batchSize:    defaultSweepBatchSize,
		lease:        defaultProcessingLease,
		pause:        defaultEntryPause,
		now:          time.Now,
		sleep:        sleepWithContext,
	}, nil
}

func (p *QueueProcessor) WithMetrics(metrics *observability.Metrics) *QueueProcessor {
	p.metrics = metrics
	return p
}

// Sweep claims up to one batch of due entries and processes them in
// scheduled_for order. Per-entry failures are recorded on the entry and
// counted; only repository failures around the claim are returned.
func (p *QueueProcessor) Sweep(ctx context.Context) (SweepSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return SweepSummary{Skipped: true}, nil
	}
	defer p.running.Store(false)

	logger := observability.WithContextLogger(p.logger, ctx)
	now := p.now().UTC()

	released, err := p.entries.ReleaseStale(ctx, now.Add(-p.lease))
	if err != nil {
		return SweepSummary{}, fmt.Errorf("failed to release stale entries: %w", err)
	}
	if released > 0 {
		logger.Warn("released stale processing entries", zap.Int64("count", released))
	}

	claimed, err := p.entries.ClaimDue(ctx, now, p.batchSize)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("failed to claim due entries: %w", err)
	}

	logger.Info("sweep claimed entries", zap.Int("count", len(claimed)))

	var summary SweepSummary
	for i := range claimed {
		if i > 0 {
			if err := p.sleep(ctx, p.pause); err != nil {
				p.releaseUnprocessed(ctx, claimed[i:])
				return summary, err
			}
		}

		summary.Processed++
		if p.processEntry(ctx, claimed[i]) {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	logger.Info("sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// HandleWakeup runs a sweep for a broker wake-up. The entry rows are the
// source of truth and the periodic sweep retries them, so a failed sweep is
// logged and acknowledged. Only a sweep cut short by cancellation returns an
// error, which hands the message back to the broker.
func (p *QueueProcessor) HandleWakeup(ctx context.Context, msg queue.WakeupMessage) error {
	ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)

	summary, err := p.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		observability.WithContextLogger(p.logger, ctx).Error("wakeup sweep failed",
			zap.String("entryId", msg.EntryID),
			zap.Error(err),
		)
		return nil
	}
	if summary.Skipped {
		p.logger.Debug("wakeup coalesced into running sweep", zap.String("entryId", msg.EntryID))
	}
	return nil
}

func (p *QueueProcessor) processEntry(ctx context.Context, entry domain.QueueEntry) bool {
	logger := observability.WithContextLogger(p.logger, ctx).With(
		zap.String("entryId", entry.ID),
		zap.String("notificationType", entry.NotificationType.String()),
		zap.Int("attempt", entry.Attempts),
	)

	dispatchErr := p.dispatch(ctx, entry)

	// The outcome must land even if the sweep is being canceled.
	persistCtx := context.WithoutCancel(ctx)

	if dispatchErr == nil {
		if err := p.entries.MarkSent(persistCtx, entry.ID); err != nil {
			logger.Error("failed to mark entry sent", zap.Error(err))
		}
		p.metrics.IncSweepEntry("sent")
		return true
	}

	logger.Warn("entry dispatch failed", zap.Error(dispatchErr))

	if entry.Exhausted() {
		if err := p.entries.MarkFailed(persistCtx, entry.ID, dispatchErr.Error()); err != nil {
			logger.Error("failed to mark entry failed", zap.Error(err))
		}
		p.metrics.IncSweepEntry("failed")
		return false
	}

	if err := p.entries.Release(persistCtx, entry.ID, dispatchErr.Error()); err != nil {
		logger.Error("failed to release entry for retry", zap.Error(err))
	}
	p.metrics.IncSweepEntry("retry")
	return false
}

func (p *QueueProcessor) dispatch(ctx context.Context, entry domain.QueueEntry) error {
	switch entry.NotificationType {
	case domain.NotificationTypeAchievementCheck:
		_, err := p.achievements.Check(ctx, entry.CustomerPhone)
		return err
	case domain.NotificationTypeStandard:
		_, err := p.sender.SendPrize(ctx, KindPrizeValidated, entry.CustomerPhone, message.Payload{
			CustomerName: entry.CustomerName,
			PrizeName:    entry.PrizeNameOrDefault(),
			SerialCode:   entry.SerialCodeOrEmpty(),
		})
		return err
	default:
		return fmt.Errorf("%w: unknown notification type %q", domain.ErrValidation, entry.NotificationType)
	}
}

// releaseUnprocessed hands claimed entries back when a sweep stops early.
func (p *QueueProcessor) releaseUnprocessed(ctx context.Context, entries []domain.QueueEntry) {
	releaseCtx := context.WithoutCancel(ctx)
	for i := range entries {
		err := p.entries.Release(releaseCtx, entries[i].ID, sweepCanceledMessage)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			p.logger.Error("failed to release unprocessed entry",
				zap.String("entryId", entries[i].ID),
				zap.Error(err),
			)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
