package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PeriodicJob runs Run once at start and then on every Interval tick until
// the context ends. Errors are logged, never fatal.
type PeriodicJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger
}

func NewPeriodicJob(name string, interval time.Duration, run func(ctx context.Context) error, logger *zap.Logger) (*PeriodicJob, error) {
	if run == nil {
		return nil, fmt.Errorf("job %q has no run func", name)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("job %q interval must be positive", name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PeriodicJob{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger.With(zap.String("job", name)),
	}, nil
}

func (j *PeriodicJob) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := j.run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("initial run failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				j.logger.Error("run failed", zap.Error(err))
			}
		}
	}
}

// SweepJob adapts QueueProcessor.Sweep to a PeriodicJob run func.
func SweepJob(p *QueueProcessor) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Sweep(ctx)
		return err
	}
}

// ReminderJob adapts ReminderScheduler.Run to a PeriodicJob run func.
func ReminderJob(s *ReminderScheduler) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Run(ctx)
		return err
	}
}
