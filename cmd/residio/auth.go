package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/residio-ng/residio/internal/gmail"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the estate Gmail mailbox",
		Long: `Authenticate with Gmail using OAuth2.

This command will:
1. Open your browser to authenticate with Google
2. Save the token for future use

You'll need to run this once before 'residio check' can fetch emails.`,
		RunE: runAuth,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	return cmd
}

func runAuth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("gmail.client_id")
	clientSecret := viper.GetString("gmail.client_secret")

	// Override with flags if provided
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	// Check for environment variables as fallback
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_GMAIL_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_GMAIL_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set gmail.client_id and gmail.client_secret in config or use --client-id and --client-secret flags")
	}

	// Determine token file location
	tokenFile := viper.GetString("gmail.token_file")
	if tokenFile == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		tokenFile = filepath.Join(configDir, "residio", "gmail-token.json")
	}

	slog.Info("Starting Gmail authentication", "token_file", tokenFile)

	_, err := gmail.AuthenticateOAuth2Interactive(ctx, gmail.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	slog.Info("✅ Authentication successful!")
	slog.Info("Run 'residio check' to fetch payment emails.")

	return nil
}
