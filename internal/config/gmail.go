// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/gmail"
)

// GmailConfig holds everything needed to connect to the alert mailbox.
type GmailConfig struct {
	OAuth   gmail.OAuth2Config
	Senders []string
}

// LoadGmailConfig loads Gmail configuration from Viper and environment
// variables. It follows this precedence:
// 1. Viper configuration (from config file or RESIDIO_ env vars)
// 2. Direct environment variables (GOOGLE_GMAIL_*)
// 3. Default values
func LoadGmailConfig() (*GmailConfig, error) {
	cfg := &GmailConfig{
		OAuth: gmail.OAuth2Config{
			ClientID:     viper.GetString("gmail.client_id"),
			ClientSecret: viper.GetString("gmail.client_secret"),
			TokenFile:    ExpandPath(viper.GetString("gmail.token_file")),
		},
		Senders: viper.GetStringSlice("gmail.senders"),
	}

	if cfg.OAuth.ClientID == "" {
		cfg.OAuth.ClientID = os.Getenv("GOOGLE_GMAIL_CLIENT_ID")
	}
	if cfg.OAuth.ClientSecret == "" {
		cfg.OAuth.ClientSecret = os.Getenv("GOOGLE_GMAIL_CLIENT_SECRET")
	}
	if cfg.OAuth.TokenFile == "" {
		cfg.OAuth.TokenFile = ExpandPath("~/.config/residio/gmail-token.json")
	}

	if cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" {
		return nil, fmt.Errorf("%w: gmail.client_id and gmail.client_secret are required", common.ErrMissingConfig)
	}

	return cfg, nil
}
