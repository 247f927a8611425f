package config

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envProduction = "production"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken        string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	OwnerID         int64   `envconfig:"OWNER_TELEGRAM_ID" required:"true"`
	AuthorizedUsers []int64 `envconfig:"AUTHORIZED_USERS"` // comma-separated, owner is always allowed
	DBPath          string  `envconfig:"DB_PATH" default:"./data/training.db"`
	Env             string  `envconfig:"APP_ENV" default:"development"` // development|production
	TestMode        bool    `envconfig:"TEST_MODE" default:"false"`
	LogLevel        string  `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr        string  `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsEnabled  bool    `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads an optional .env file, then environment variables into Config.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateBot checks what is needed to talk to Telegram.
func (c Config) ValidateBot() error {
	if c.BotToken == "" {
		return errors.New("required key TELEGRAM_BOT_TOKEN missing value")
	}
	return nil
}

// Production reports whether the bot runs in production.
func (c Config) Production() bool {
	return c.Env == envProduction
}

// Accelerated is the initial run mode; production always starts in normal mode.
func (c Config) Accelerated() bool {
	return c.TestMode && !c.Production()
}
