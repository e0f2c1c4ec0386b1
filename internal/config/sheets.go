package config

import (
	"os"

	"github.com/Veraticus/classbot/internal/sheets"
)

// SheetsConfig holds the Google Sheets export settings.
type SheetsConfig struct {
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	RefreshToken       string `mapstructure:"refresh_token"`
	ServiceAccountPath string `mapstructure:"service_account_path"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SpreadsheetName    string `mapstructure:"spreadsheet_name"`
	TokenFile          string `mapstructure:"token_file"`
}

// WriterConfig builds the writer configuration. Values from the config file
// or CLASSBOT_SHEETS_* take precedence over the GOOGLE_SHEETS_* variables.
// A refresh token saved by "export auth" is used when none is configured.
func (c *Config) WriterConfig() (*sheets.Config, error) {
	s := c.Sheets
	cfg := sheets.DefaultConfig()
	cfg.TimeZone = c.Timezone

	cfg.ServiceAccountPath = firstSet(s.ServiceAccountPath, ExpandPath(os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	cfg.ClientID = firstSet(s.ClientID, os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	cfg.ClientSecret = firstSet(s.ClientSecret, os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	cfg.RefreshToken = firstSet(s.RefreshToken, os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	cfg.SpreadsheetID = firstSet(s.SpreadsheetID, os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	cfg.SpreadsheetName = firstSet(s.SpreadsheetName, os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"), cfg.SpreadsheetName)

	if cfg.RefreshToken == "" && cfg.ServiceAccountPath == "" && s.TokenFile != "" {
		if token, err := sheets.LoadToken(s.TokenFile); err == nil {
			cfg.RefreshToken = token.RefreshToken
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OAuth2Config returns the settings for the interactive consent flow.
func (c *Config) OAuth2Config() sheets.OAuth2Config {
	return sheets.OAuth2Config{
		ClientID:     firstSet(c.Sheets.ClientID, os.Getenv("GOOGLE_SHEETS_CLIENT_ID")),
		ClientSecret: firstSet(c.Sheets.ClientSecret, os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")),
		TokenFile:    c.Sheets.TokenFile,
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
