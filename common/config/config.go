package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/go-playground/validator"
	"github.com/joho/godotenv"

	"github.com/ceramicnetwork/go-pulse/models"
)

const (
	StoreBackend_DynamoDb = "dynamodb"
	StoreBackend_Sqlite   = "sqlite"
	StoreBackend_Postgres = "postgres"
	StoreBackend_Memory   = "memory"
)

type Config struct {
	TelegramToken       string        `arg:"--telegram-token,env:TELEGRAM_TOKEN" help:"Telegram bot API token" validate:"required"`
	HostnameUrl         string        `arg:"--hostname-url,env:HOSTNAME_URL" default:"http://localhost:8080" help:"public base URL used in export links" validate:"url"`
	Port                int           `arg:"--port,env:PORT" default:"8080" help:"HTTP listen port" validate:"min=1,max=65535"`
	StoreBackend        string        `arg:"--store,env:STORE_BACKEND" default:"sqlite" help:"dynamodb, sqlite, postgres or memory" validate:"oneof=dynamodb sqlite postgres memory"`
	SqlitePath          string        `arg:"--sqlite-path,env:SQLITE_PATH" default:"data/pulse.db" help:"sqlite database file"`
	DatabaseUrl         string        `arg:"--database-url,env:DATABASE_URL" help:"postgres connection URL"`
	Env                 string        `arg:"--env,env:ENV" default:"dev" help:"deployment environment, used in AWS resource names" validate:"oneof=dev qa prod"`
	EventQueueName      string        `arg:"--event-queue,env:EVENT_QUEUE_NAME" help:"SQS queue receiving poll events, disabled when empty"`
	ArchiveBucket       string        `arg:"--archive-bucket,env:ARCHIVE_BUCKET" help:"S3 bucket archiving completed polls, disabled when empty"`
	Instructors         []string      `arg:"--instructors,env:INSTRUCTORS" help:"user ids allowed to start polls"`
	Staff               []string      `arg:"--staff,env:STAFF" help:"user ids excluded from rosters and allowed to export"`
	ReminderBase        time.Duration `arg:"--reminder-base,env:REMINDER_BASE_INTERVAL" default:"30m" help:"first reminder delay" validate:"gt=0"`
	ReminderMaxAttempts int           `arg:"--reminder-max-attempts,env:REMINDER_MAX_ATTEMPTS" default:"3" help:"reminders sent before giving up" validate:"min=0"`
	EscalationThreshold int           `arg:"--escalation-threshold,env:ESCALATION_THRESHOLD" default:"4" help:"scores above this are escalated to the poster" validate:"min=0,max=9"`
}

// Load reads an optional .env file, then parses flags and environment variables into a validated Config.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	return Parse(args)
}

func Parse(args []string) (*Config, error) {
	cfg := Config{}
	parser, err := arg.NewParser(arg.Config{Program: "pulse"}, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err = parser.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err = validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.StoreBackend == StoreBackend_Postgres && len(cfg.DatabaseUrl) == 0 {
		return nil, fmt.Errorf("config: DATABASE_URL is required for the %s store", StoreBackend_Postgres)
	}
	return &cfg, nil
}

func (c *Config) IsInstructor(userId string) bool {
	return contains(c.Instructors, userId)
}

func (c *Config) IsStaff(userId string) bool {
	return contains(c.Staff, userId)
}

func (c *Config) ReminderConfig() models.ReminderConfig {
	return models.ReminderConfig{BaseInterval: c.ReminderBase, MaxAttempts: c.ReminderMaxAttempts}
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
