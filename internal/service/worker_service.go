package service

import (
	"context"
	"fmt"

	"github.com/raspapremio/prize-notifier/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerService runs the periodic jobs and the broker wake-up consumer
// until the context ends or one of them fails.
type WorkerService struct {
	consumer queue.Consumer
	handler  queue.MessageHandler
	jobs     []*PeriodicJob
	logger   *zap.Logger
}

func NewWorkerService(consumer queue.Consumer, handler queue.MessageHandler, jobs []*PeriodicJob, logger *zap.Logger) (*WorkerService, error) {
	if consumer != nil && handler == nil {
		return nil, fmt.Errorf("wakeup handler is required with a consumer")
	}
	if consumer == nil && len(jobs) == 0 {
		return nil, fmt.Errorf("worker has nothing to run")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer: consumer,
		handler:  handler,
		jobs:     jobs,
		logger:   logger,
	}, nil
}

func (s *WorkerService) Start(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)

	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.logger.Info("job started", zap.String("job", job.name), zap.Duration("interval", job.interval))
			err := job.Start(groupCtx)
			s.logger.Info("job stopped", zap.String("job", job.name))
			return err
		})
	}

	if s.consumer != nil {
		g.Go(func() error {
			s.logger.Info("wakeup consumer started", zap.String("queue", queue.WakeupQueue))

			if err := s.consumer.Consume(groupCtx, queue.WakeupQueue, s.handler); err != nil {
				s.logger.Error("wakeup consumer stopped with error",
					zap.String("queue", queue.WakeupQueue),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("wakeup consumer stopped", zap.String("queue", queue.WakeupQueue))
			return nil
		})
	}

	return g.Wait()
}
