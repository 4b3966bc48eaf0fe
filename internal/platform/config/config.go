package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Supported values for STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	BotName       string `env:"BOT_NAME"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	StoreBackend string `env:"STORE_BACKEND" default:"memory"`
	RedisURL     string `env:"REDIS_URL"`
	RedisKey     string `env:"REDIS_KEY" default:"karma"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLitePath   string `env:"SQLITE_PATH" default:"karma.db"`
	DocumentName string `env:"KARMA_DOCUMENT" default:"default"`

	WebhookRateLimit float64 `env:"WEBHOOK_RATE_LIMIT" default:"20"`
	WebhookRateBurst int     `env:"WEBHOOK_RATE_BURST" default:"40"`
	// Only enable behind a proxy that overwrites X-Forwarded-For.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" default:"false"`

	ProcessingTimeout time.Duration `env:"PROCESSING_TIMEOUT" default:"5s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	// Checked in a fixed order so the reported variable is deterministic.
	required := []struct{ name, value string }{
		{"WEBHOOK_SECRET", cfg.WebhookSecret},
		{"BOT_NAME", cfg.BotName},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	backends := []string{BackendMemory, BackendRedis, BackendPostgres, BackendSQLite}
	if !slices.Contains(backends, cfg.StoreBackend) {
		return fmt.Errorf("STORE_BACKEND must be one of %v, got %q", backends, cfg.StoreBackend)
	}

	switch cfg.StoreBackend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
		if cfg.RedisKey == "" {
			return errors.New("REDIS_KEY must not be empty")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORE_BACKEND=sqlite")
		}
	}

	if cfg.DocumentName == "" {
		return errors.New("KARMA_DOCUMENT must not be empty")
	}

	if cfg.WebhookRateLimit <= 0 || cfg.WebhookRateBurst <= 0 {
		return errors.New("WEBHOOK_RATE_LIMIT and WEBHOOK_RATE_BURST must be positive")
	}

	if cfg.ProcessingTimeout <= 0 {
		return errors.New("PROCESSING_TIMEOUT must be positive")
	}

	return nil
}
