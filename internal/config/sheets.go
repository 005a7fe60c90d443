// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and
// environment variables. Precedence:
// 1. Viper configuration (from config file or KAKEIBO_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	// Load from Viper first
	if v := viper.GetString("sheets.service_account_path"); v != "" {
		config.ServiceAccountPath = ExpandPath(v)
	}
	if v := viper.GetString("sheets.client_id"); v != "" {
		config.ClientID = v
	}
	if v := viper.GetString("sheets.client_secret"); v != "" {
		config.ClientSecret = v
	}
	if v := viper.GetString("sheets.refresh_token"); v != "" {
		config.RefreshToken = v
	}
	if v := viper.GetString("sheets.spreadsheet_id"); v != "" {
		config.SpreadsheetID = v
	}
	if v := viper.GetString("sheets.time_zone"); v != "" {
		config.TimeZone = v
	}

	// Override with direct environment variables if not set
	if config.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			config.ServiceAccountPath = ExpandPath(v)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadDriveFolderID returns the source-folder identifier. It is a secret
// config value and must come from the config file or environment.
func LoadDriveFolderID() (string, error) {
	if v := viper.GetString("drive.folder_id"); v != "" {
		return v, nil
	}
	if v := os.Getenv("KAKEIBO_DRIVE_FOLDER_ID"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set drive.folder_id in config or KAKEIBO_DRIVE_FOLDER_ID", common.ErrMissingConfig)
}
