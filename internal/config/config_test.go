package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/classbot/internal/common"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
	assert.Equal(t, "Bot Kelas", cfg.Bot.Name)
	assert.Equal(t, ".", cfg.Bot.Prefix)
	assert.Equal(t, "json", cfg.Storage.Driver)
	assert.NotContains(t, cfg.Storage.Path, "~")
	assert.Equal(t, "0 8 * * *", cfg.Reminder.Daily)
	assert.Equal(t, "0 */4 * * *", cfg.Reminder.Interval)
	assert.True(t, cfg.Reminder.Dedupe)
	assert.Equal(t, 60, cfg.Telegram.Timeout)
	assert.Empty(t, cfg.Bot.Admins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CLASSBOT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("CLASSBOT_REMINDER_DEDUPE", "false")
	t.Setenv("CLASSBOT_STORAGE_DRIVER", "sqlite")
	t.Setenv("CLASSBOT_STORAGE_PATH", "/tmp/classbot/bot.db")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.False(t, cfg.Reminder.Dedupe)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/classbot", cfg.DataDir())
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("BOT_NAME", "Bot TI-3A")
	t.Setenv("PREFIX_COMMAND", "!")
	t.Setenv("ADMIN_NUMBERS", "6281111, 6282222")
	t.Setenv("SELF_MODE", "true")
	t.Setenv("TIMEZONE", "Asia/Makassar")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "Bot TI-3A", cfg.Bot.Name)
	assert.Equal(t, "!", cfg.Bot.Prefix)
	assert.Equal(t, []string{"6281111", "6282222"}, cfg.Bot.Admins)
	assert.True(t, cfg.Bot.SelfMode)
	assert.Equal(t, "Asia/Makassar", cfg.Timezone)

	opts := cfg.BotOptions()
	assert.Equal(t, "!", opts.Prefix)
	assert.True(t, opts.SelfMode)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("BOT_NAME", "lama")
	t.Setenv("CLASSBOT_BOT_NAME", "baru")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "baru", cfg.Bot.Name)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "unknown driver", key: "storage.driver", val: "mongo"},
		{name: "bad timezone", key: "timezone", val: "Mars/Olympus"},
		{name: "empty prefix", key: "bot.prefix", val: ""},
		{name: "bad log level", key: "logging.level", val: "verbose"},
		{name: "negative timeout", key: "telegram.timeout", val: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	v := newViper()
	v.Set("storage.driver", "memory")
	v.Set("storage.path", "")
	_, err := Load(v)
	assert.NoError(t, err)
}

func TestReminderOptions(t *testing.T) {
	v := newViper()
	v.Set("reminder.daily", "30 7 * * *")
	cfg, err := Load(v)
	require.NoError(t, err)

	opts := cfg.ReminderOptions()
	assert.Equal(t, "30 7 * * *", opts.Daily)
	assert.Equal(t, "0 */4 * * *", opts.Interval)
	assert.True(t, opts.Dedupe)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CLASSBOT_TEST_DOTENV=dari-file\nCLASSBOT_TEST_KEEP=file\n"), 0600))

	t.Setenv("CLASSBOT_TEST_KEEP", "shell")
	t.Cleanup(func() { _ = os.Unsetenv("CLASSBOT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "dari-file", os.Getenv("CLASSBOT_TEST_DOTENV"))
	assert.Equal(t, "shell", os.Getenv("CLASSBOT_TEST_KEEP"))
}

func TestWriterConfig(t *testing.T) {
	t.Run("config values win over google env", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "dari-env")
		v := newViper()
		v.Set("sheets.service_account_path", "/keys/sa.json")
		v.Set("sheets.spreadsheet_id", "dari-config")
		cfg, err := Load(v)
		require.NoError(t, err)

		wc, err := cfg.WriterConfig()
		require.NoError(t, err)
		assert.Equal(t, "dari-config", wc.SpreadsheetID)
		assert.Equal(t, "Asia/Jakarta", wc.TimeZone)
		assert.Equal(t, "Laporan Kas Kelas", wc.SpreadsheetName)
	})

	t.Run("saved token supplies the refresh token", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token.json")
		require.NoError(t, os.WriteFile(tokenFile, []byte(`{"refresh_token":"segar"}`), 0600))

		v := newViper()
		v.Set("sheets.client_id", "id")
		v.Set("sheets.client_secret", "rahasia")
		v.Set("sheets.token_file", tokenFile)
		cfg, err := Load(v)
		require.NoError(t, err)

		wc, err := cfg.WriterConfig()
		require.NoError(t, err)
		assert.Equal(t, "segar", wc.RefreshToken)
	})

	t.Run("no credentials", func(t *testing.T) {
		v := newViper()
		v.Set("sheets.token_file", "")
		cfg, err := Load(v)
		require.NoError(t, err)

		_, err = cfg.WriterConfig()
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}
