// Package bootstrap wires infrastructure and services shared by the api
// and worker binaries.
package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/raspapremio/prize-notifier/internal/config"
	"github.com/raspapremio/prize-notifier/internal/infra/postgresql"
	"github.com/raspapremio/prize-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/raspapremio/prize-notifier/internal/infra/redis"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/queue"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"github.com/raspapremio/prize-notifier/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Infra struct {
	DB     *gorm.DB
	SQL    *sql.DB
	Redis  *redis.Client
	Broker *queue.Broker
}

// OpenInfra connects to postgres (running migrations), redis and rabbitmq.
func OpenInfra(cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	infra := &Infra{DB: db, SQL: sqlDB}

	infra.Redis, err = infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	infra.Broker, err = queue.NewBroker(cfg.RabbitMQURL, logger)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Broker != nil {
		errs = append(errs, i.Broker.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.SQL != nil {
		errs = append(errs, i.SQL.Close())
	}
	return errors.Join(errs...)
}

type Services struct {
	Notifier     *service.Notifier
	Processor    *service.QueueProcessor
	Reminders    *service.ReminderScheduler
	Achievements *service.AchievementService
	Chatbot      *service.ChatbotService
	Prizes       *service.PrizeService
	Loyalty      *service.LoyaltyService
	Receipts     *service.ReceiptService
}

func NewServices(cfg *config.Config, infra *Infra, metrics *observability.Metrics, logger *zap.Logger) (*Services, error) {
	queueRepo := repository.NewGormQueueRepo(infra.DB)
	registrationRepo := repository.NewGormRegistrationRepo(infra.DB)
	loyaltyRepo := repository.NewGormLoyaltyRepo(infra.DB)
	achievementRepo := repository.NewGormAchievementRepo(infra.DB)

	limiter, err := infraredis.NewGatewayLimiter(infra.Redis, cfg.GatewayRateLimitPerSec)
	if err != nil {
		return nil, fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	locker, err := infraredis.NewLocker(infra.Redis)
	if err != nil {
		return nil, fmt.Errorf("locker initialization failed: %w", err)
	}

	recorder := service.NewDeliveryLogger(repository.NewGormDeliveryLogRepo(infra.DB), logger).WithMetrics(metrics)
	gateway := provider.NewEvolutionClient(provider.GatewayConfig{
		BaseURL:  cfg.EvolutionAPIURL,
		APIKey:   cfg.EvolutionAPIKey,
		Instance: cfg.EvolutionInstanceName,
		Timeout:  cfg.GatewayTimeout(),
	}, recorder, logger).WithMetrics(metrics)

	notifier, err := service.NewNotifier(gateway, limiter, logger)
	if err != nil {
		return nil, err
	}
	notifier.WithMetrics(metrics)

	achievements, err := service.NewAchievementService(loyaltyRepo, achievementRepo, notifier, logger)
	if err != nil {
		return nil, err
	}

	processor, err := service.NewQueueProcessor(queueRepo, notifier, achievements, logger)
	if err != nil {
		return nil, err
	}
	processor.WithMetrics(metrics)

	reminders, err := service.NewReminderScheduler(registrationRepo, notifier, locker, logger)
	if err != nil {
		return nil, err
	}
	reminders.WithMetrics(metrics)

	chatbot, err := service.NewChatbotService(
		repository.NewGormChatMessageRepo(infra.DB),
		loyaltyRepo,
		achievementRepo,
		registrationRepo,
		notifier,
		logger,
	)
	if err != nil {
		return nil, err
	}

	prizes, err := service.NewPrizeService(
		repository.NewGormCardRepo(infra.DB),
		queue.NewWakeupPublisher(infra.Broker),
		logger,
	)
	if err != nil {
		return nil, err
	}

	loyalty, err := service.NewLoyaltyService(loyaltyRepo, notifier, logger)
	if err != nil {
		return nil, err
	}

	receipts, err := service.NewReceiptService(repository.NewGormReceiptRepo(infra.DB), cfg.PublicBaseURL, logger)
	if err != nil {
		return nil, err
	}

	if cfg.EvolutionAPIURL == "" || cfg.EvolutionAPIKey == "" || cfg.EvolutionInstanceName == "" {
		logger.Warn("evolution api is not configured, whatsapp sends will fail")
	}

	return &Services{
		Notifier:     notifier,
		Processor:    processor,
		Reminders:    reminders,
		Achievements: achievements,
		Chatbot:      chatbot,
		Prizes:       prizes,
		Loyalty:      loyalty,
		Receipts:     receipts,
	}, nil
}
