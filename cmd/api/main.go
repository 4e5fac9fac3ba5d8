package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/raspapremio/prize-notifier/internal/bootstrap"
	"github.com/raspapremio/prize-notifier/internal/config"
	"github.com/raspapremio/prize-notifier/internal/handler"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	infra, err := bootstrap.OpenInfra(cfg, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", zap.Error(err))
	}
	defer infra.Close() //nolint:errcheck

	metrics := observability.NewMetrics()
	services, err := bootstrap.NewServices(cfg, infra, metrics, logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(infra.SQL),
		handler.RedisCheck(infra.Redis),
		handler.ReadinessCheck{Name: "rabbitmq", Ping: infra.Broker.Ping},
	)
	if err := registerRoutes(app, services, logger); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("prize-notifier api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

func registerRoutes(app *fiber.App, services *bootstrap.Services, logger *zap.Logger) error {
	if err := handler.RegisterJobRoutes(app, services.Processor, services.Reminders); err != nil {
		return err
	}
	if err := handler.RegisterNotificationRoutes(app, services.Notifier, services.Achievements); err != nil {
		return err
	}
	if err := handler.RegisterWebhookRoutes(app, services.Chatbot, logger); err != nil {
		return err
	}
	if err := handler.RegisterPrizeRoutes(app, services.Prizes); err != nil {
		return err
	}
	if err := handler.RegisterLoyaltyRoutes(app, services.Loyalty); err != nil {
		return err
	}
	return handler.RegisterReceiptRoutes(app, services.Receipts)
}
