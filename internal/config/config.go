package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	ChatID    int64  `envconfig:"CHAT_ID"` // owner chat; 0 = first /start
	DBPath    string `envconfig:"DB_PATH" default:"./data/reminders.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	LogFile   string `envconfig:"LOG_FILE"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"` // healthz, calendar.ics

	TickInterval     time.Duration `envconfig:"TICK_INTERVAL" default:"30s"`
	SeedFile         string        `envconfig:"SEED_FILE"`
	DefaultSnoozeMin int           `envconfig:"DEFAULT_SNOOZE_MIN" default:"10"`
	QuietHours       string        `envconfig:"QUIET_HOURS" default:"22:00-07:00"` // "off" disables
	MaxCatchUp       int           `envconfig:"MAX_CATCH_UP" default:"0"`          // >0 collapses missed occurrences

	PrayerAPIURL      string `envconfig:"PRAYER_API_URL" default:"https://api.aladhan.com"`
	PrayerRefreshCron string `envconfig:"PRAYER_REFRESH_CRON" default:"5 0 * * *"`
	City              string `envconfig:"CITY"`
	Country           string `envconfig:"COUNTRY"`
}

// Load reads an optional .env file and then environment variables into Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values that would otherwise fail at runtime.
func (c Config) Validate() error {
	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	if _, err := cron.ParseStandard(c.PrayerRefreshCron); err != nil {
		return fmt.Errorf("PRAYER_REFRESH_CRON: %w", err)
	}
	if _, err := c.Quiet(); err != nil {
		return fmt.Errorf("QUIET_HOURS: %w", err)
	}
	if c.TickInterval < time.Second {
		return fmt.Errorf("TICK_INTERVAL: must be at least 1s, got %s", c.TickInterval)
	}
	if c.MaxCatchUp < 0 {
		return fmt.Errorf("MAX_CATCH_UP: must not be negative, got %d", c.MaxCatchUp)
	}
	if c.DefaultSnoozeMin <= 0 {
		return fmt.Errorf("DEFAULT_SNOOZE_MIN: must be positive, got %d", c.DefaultSnoozeMin)
	}
	return nil
}

// Quiet parses QuietHours; "off" or empty yields a disabled window.
func (c Config) Quiet() (domain.QuietHours, error) {
	if c.QuietHours == "" || c.QuietHours == "off" {
		return domain.QuietHours{}, nil
	}
	return domain.ParseQuietHours(c.QuietHours)
}

// Settings are the initial engine settings used until the user saves their own.
func (c Config) Settings() domain.Settings {
	s := domain.DefaultSettings(c.DefaultTZ)
	if q, err := c.Quiet(); err == nil {
		s.QuietHours = q
	}
	s.DefaultSnoozeMinutes = c.DefaultSnoozeMin
	s.City, s.Country = c.City, c.Country
	return s
}
