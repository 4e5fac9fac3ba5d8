package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/raspapremio/prize-notifier/internal/bootstrap"
	"github.com/raspapremio/prize-notifier/internal/config"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/queue"
	"github.com/raspapremio/prize-notifier/internal/service"
	"go.uber.org/zap"
)

const consumerPrefetch = 1

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "worker")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	infra, err := bootstrap.OpenInfra(cfg, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", zap.Error(err))
	}
	defer infra.Close() //nolint:errcheck

	services, err := bootstrap.NewServices(cfg, infra, observability.NewMetrics(), logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	sweep, err := service.NewPeriodicJob("queue-sweep", cfg.QueueSweepInterval(), service.SweepJob(services.Processor), logger)
	if err != nil {
		logger.Fatal("sweep job initialization failed", zap.Error(err))
	}
	reminders, err := service.NewPeriodicJob("reminders", cfg.ReminderInterval(), service.ReminderJob(services.Reminders), logger)
	if err != nil {
		logger.Fatal("reminder job initialization failed", zap.Error(err))
	}

	consumer := queue.NewWakeupConsumer(infra.Broker, consumerPrefetch, logger)
	defer consumer.Close() //nolint:errcheck

	worker, err := service.NewWorkerService(consumer, services.Processor.HandleWakeup, []*service.PeriodicJob{sweep, reminders}, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("prize-notifier worker started",
		zap.Duration("sweepInterval", cfg.QueueSweepInterval()),
		zap.Duration("reminderInterval", cfg.ReminderInterval()),
	)
	if err := worker.Start(ctx); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("prize-notifier worker stopped")
}
