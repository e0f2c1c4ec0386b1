// Package config provides configuration loading for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	// Bundled zone data so Asia/Jakarta resolves in minimal containers.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/classbot/internal/bot"
	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/reminder"
	"github.com/Veraticus/classbot/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. CLASSBOT_TELEGRAM_TOKEN.
const EnvPrefix = "CLASSBOT"

// Config is the complete application configuration.
type Config struct {
	Timezone string         `mapstructure:"timezone" validate:"required"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Bot      BotConfig      `mapstructure:"bot"`
	Reminder ReminderConfig `mapstructure:"reminder"`
}

// BotConfig configures the command dispatcher.
type BotConfig struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Number   string   `mapstructure:"number"`
	Prefix   string   `mapstructure:"prefix" validate:"required,max=3"`
	Owner    string   `mapstructure:"owner"`
	Admins   []string `mapstructure:"admins"`
	SelfMode bool     `mapstructure:"self_mode"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=json sqlite memory"`
	Path   string `mapstructure:"path" validate:"required_unless=Driver memory"`
}

// ReminderConfig configures the reminder scheduler.
type ReminderConfig struct {
	Daily    string `mapstructure:"daily" validate:"required"`
	Interval string `mapstructure:"interval" validate:"required"`
	Dedupe   bool   `mapstructure:"dedupe"`
}

// TelegramConfig configures the Telegram transport.
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	Debug   bool   `mapstructure:"debug"`
	Timeout int    `mapstructure:"timeout" validate:"gte=0"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// legacyEnv maps keys to the variable names used by existing .env files.
var legacyEnv = map[string]string{
	"bot.name":      "BOT_NAME",
	"bot.number":    "BOT_NUMBER",
	"bot.owner":     "OWNER_NUMBER",
	"bot.prefix":    "PREFIX_COMMAND",
	"bot.admins":    "ADMIN_NUMBERS",
	"bot.self_mode": "SELF_MODE",
	"timezone":      "TIMEZONE",
}

// SetDefaults registers every key with its default so environment
// overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "Asia/Jakarta")

	v.SetDefault("bot.name", "Bot Kelas")
	v.SetDefault("bot.number", "")
	v.SetDefault("bot.prefix", ".")
	v.SetDefault("bot.owner", "")
	v.SetDefault("bot.admins", []string{})
	v.SetDefault("bot.self_mode", false)

	v.SetDefault("storage.driver", storage.DriverJSON)
	v.SetDefault("storage.path", "~/.local/share/classbot/data")

	v.SetDefault("reminder.daily", reminder.DefaultDaily)
	v.SetDefault("reminder.interval", reminder.DefaultInterval)
	v.SetDefault("reminder.dedupe", true)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.timeout", 60)

	v.SetDefault("sheets.client_id", "")
	v.SetDefault("sheets.client_secret", "")
	v.SetDefault("sheets.refresh_token", "")
	v.SetDefault("sheets.service_account_path", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.spreadsheet_name", "")
	v.SetDefault("sheets.token_file", "~/.config/classbot/sheets-token.json")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindEnv enables CLASSBOT_* overrides and the legacy .env names.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envKey, legacy)
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(ExpandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: load %s: %w", common.ErrInvalidConfig, p, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Bot.Admins = splitList(cfg.Bot.Admins)
	cfg.Storage.Path = ExpandPath(cfg.Storage.Path)
	cfg.Sheets.ServiceAccountPath = ExpandPath(cfg.Sheets.ServiceAccountPath)
	cfg.Sheets.TokenFile = ExpandPath(cfg.Sheets.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and the time zone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", common.ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q", common.ErrInvalidConfig, c.Timezone)
	}
	return loc, nil
}

// BotOptions returns the dispatcher options.
func (c *Config) BotOptions() bot.Options {
	return bot.Options{
		Name:     c.Bot.Name,
		Number:   c.Bot.Number,
		Prefix:   c.Bot.Prefix,
		SelfMode: c.Bot.SelfMode,
	}
}

// ReminderOptions returns the scheduler options.
func (c *Config) ReminderOptions() reminder.Options {
	return reminder.Options{
		Daily:    c.Reminder.Daily,
		Interval: c.Reminder.Interval,
		Dedupe:   c.Reminder.Dedupe,
	}
}

// DataDir is where checkpoints are kept: the JSON data directory itself, or
// the directory holding the SQLite database.
func (c *Config) DataDir() string {
	if c.Storage.Driver == storage.DriverSQLite {
		return filepath.Dir(c.Storage.Path)
	}
	return c.Storage.Path
}

// splitList flattens comma-separated entries, as ADMIN_NUMBERS is written.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
