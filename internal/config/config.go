package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// Gateway credentials are optional here. A missing value surfaces as a
	// configuration error on the first send, not at startup.
	EvolutionAPIURL       string `env:"EVOLUTION_API_URL"`
	EvolutionAPIKey       string `env:"EVOLUTION_API_KEY"`
	EvolutionInstanceName string `env:"EVOLUTION_INSTANCE_NAME"`

	GatewayTimeoutSec      int `env:"GATEWAY_TIMEOUT_SEC,default=15"`
	GatewayRateLimitPerSec int `env:"GATEWAY_RATE_LIMIT_PER_SEC,default=5"`
	QueueSweepIntervalSec  int `env:"QUEUE_SWEEP_INTERVAL_SEC,default=60"`
	ReminderIntervalSec    int `env:"REMINDER_INTERVAL_SEC,default=3600"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// PublicBaseURL prefixes the receipt links handed to customers.
	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv populates the environment from the first .env files found.
// Variables already set are never overridden. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSec) * time.Second
}

func (c *Config) QueueSweepInterval() time.Duration {
	return time.Duration(c.QueueSweepIntervalSec) * time.Second
}

func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalSec) * time.Second
}

func (c *Config) validate() error {
	if c.GatewayTimeoutSec <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SEC must be positive")
	}
	if c.GatewayRateLimitPerSec <= 0 {
		return fmt.Errorf("GATEWAY_RATE_LIMIT_PER_SEC must be positive")
	}
	if c.QueueSweepIntervalSec <= 0 {
		return fmt.Errorf("QUEUE_SWEEP_INTERVAL_SEC must be positive")
	}
	if c.ReminderIntervalSec <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL_SEC must be positive")
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute url")
	}
	return nil
}
