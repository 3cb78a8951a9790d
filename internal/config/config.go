package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnv names the environment variable that overrides telegram.token.
const TokenEnv = "TELEGRAM_API_TOKEN"

// ErrNoToken is returned by Load when no bot token is configured.
var ErrNoToken = errors.New("telegram: token is required (set telegram.token or " + TokenEnv + ")")

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	LogLevel          string                  `yaml:"log_level"`
	Telegram          TelegramConfig          `yaml:"telegram"`
	Database          DatabaseConfig          `yaml:"database"`
	Report            ReportConfig            `yaml:"report"`
	Reminder          ReminderConfig          `yaml:"reminder"`
	ObservabilityHTTP ObservabilityHTTPConfig `yaml:"observability_http"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	APIURL      string `yaml:"api_url"`
	BotUsername string `yaml:"bot_username"` // resolved via getMe when empty
	PollTimeout int    `yaml:"poll_timeout"` // long-poll timeout in seconds
	PollRetry   int    `yaml:"poll_retry"`   // seconds to wait after a failed poll
	Workers     int    `yaml:"workers"`      // concurrent handlers per update batch
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"` // "sqlite" or "mongo"
	Path          string `yaml:"path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type ReportConfig struct {
	TemplateFile string `yaml:"template_file"` // text/template overriding the built-in layout
}

type ReminderConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Schedule string  `yaml:"schedule"` // cron expression, e.g. "0 20 * * *"
	Timezone string  `yaml:"timezone"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Text     string  `yaml:"text"`
}

type ObservabilityHTTPConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
	Pprof   bool   `yaml:"pprof"`
}

// Load reads the config at path and requires a bot token. A missing file
// yields the defaults, so a deployment can run from the environment alone.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadOffline is Load for commands that only touch the database and do not
// need a bot token.
func LoadOffline(path string) (*Config, error) {
	return load(path, false)
}

// Defaults returns the built-in configuration for the given database driver
// without a bot token.
func Defaults(driver string) (*Config, error) {
	cfg := &Config{Database: DatabaseConfig{Driver: driver}}
	if err := cfg.applyDefaults(false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string, requireToken bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Telegram.Token = token
	}

	if err := cfg.applyDefaults(requireToken); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults(requireToken bool) error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if requireToken && c.Telegram.Token == "" {
		return ErrNoToken
	}
	c.Telegram.BotUsername = strings.TrimPrefix(c.Telegram.BotUsername, "@")
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30
	}
	if c.Telegram.PollRetry == 0 {
		c.Telegram.PollRetry = 5
	}
	if c.Telegram.Workers <= 0 {
		c.Telegram.Workers = 1
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = "statsbot.sqlite"
		}
	case DriverMongo:
		if c.Database.MongoURI == "" {
			c.Database.MongoURI = "mongodb://localhost:27017"
		}
		if c.Database.MongoDatabase == "" {
			c.Database.MongoDatabase = "telegram-stats"
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	if c.Reminder.Enabled {
		if c.Reminder.Schedule == "" {
			c.Reminder.Schedule = "0 20 * * *"
		}
		if c.Reminder.Text == "" {
			c.Reminder.Text = "Daily reminder: send /stats to see who has been chatting the most."
		}
		if c.Reminder.Timezone != "" {
			if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
				return fmt.Errorf("reminder: timezone %q: %w", c.Reminder.Timezone, err)
			}
		}
	}
	return nil
}

// PollRetryInterval returns the delay between failed polls.
func (c *Config) PollRetryInterval() time.Duration {
	return time.Duration(c.Telegram.PollRetry) * time.Second
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) ParseLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
