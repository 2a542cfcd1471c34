package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	// Postgres is used when DATABASE_URL is set, SQLite otherwise.
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"giveaway.db"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	// Redis is optional; without it locks are process-local and the admin
	// command stream is disabled.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"min=0,max=15"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN"`
	BotUsername      string   `env:"BOT_USERNAME"`
	AdminIDs         []string `env:"ADMIN_IDS" envSeparator:","`
	// Init-data expiration; 0 skips the check.
	InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h" validate:"min=0"`

	SchedulerReconcileSpec string        `env:"SCHEDULER_RECONCILE_SPEC" envDefault:"@every 1m"`
	NotifyTimeout          time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	LockTTL                time.Duration `env:"LOCK_TTL" envDefault:"30s" validate:"gt=0"`
	ChallengeTTL           time.Duration `env:"CHALLENGE_TTL" envDefault:"5m" validate:"gt=0"`
	UserCacheTTL           time.Duration `env:"USER_CACHE_TTL" envDefault:"10m" validate:"gt=0"`
	ResponseCacheTTL       time.Duration `env:"RESPONSE_CACHE_TTL" envDefault:"0s" validate:"min=0"`
	DefaultLocale          string        `env:"DEFAULT_LOCALE" envDefault:"en" validate:"required,bcp47_language_tag"`

	EventsStream   string `env:"EVENTS_STREAM" envDefault:"giveaway:commands"`
	EventsGroup    string `env:"EVENTS_GROUP" envDefault:"giveaway-workers"`
	EventsConsumer string `env:"EVENTS_CONSUMER" envDefault:"worker-1"`
}

// Load reads an optional .env file and the environment into Config.
func Load() (*Config, error) {
	// a missing .env is fine; production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.AdminIDSet(); err != nil {
		return err
	}
	return nil
}

// UsePostgres reports whether the Postgres store is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// AdminIDSet parses ADMIN_IDS. These users may operate on any giveaway.
func (c *Config) AdminIDSet() (map[int64]struct{}, error) {
	set := make(map[int64]struct{}, len(c.AdminIDs))
	for _, raw := range c.AdminIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", raw, err)
		}
		set[id] = struct{}{}
	}
	return set, nil
}
