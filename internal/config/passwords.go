package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/residio-ng/residio/internal/common"
)

// PasswordStore resolves statement passwords from configuration. Passwords
// are keyed by the last four digits of the account number, either under
// statements.passwords in the config file or via
// RESIDIO_STATEMENT_PASSWORD_<last4> environment variables.
type PasswordStore struct {
	passwords map[string]string
}

// NewPasswordStore loads the statement password map from Viper.
func NewPasswordStore() *PasswordStore {
	store := &PasswordStore{passwords: make(map[string]string)}
	for last4, password := range viper.GetStringMapString("statements.passwords") {
		store.passwords[strings.TrimSpace(last4)] = password
	}
	return store
}

// GetDecryptedPassword returns the password for the account identified by
// its last four digits.
func (s *PasswordStore) GetDecryptedPassword(_ context.Context, accountLast4 string) (string, error) {
	if password, ok := s.passwords[accountLast4]; ok && password != "" {
		return password, nil
	}
	if password := os.Getenv("RESIDIO_STATEMENT_PASSWORD_" + accountLast4); password != "" {
		return password, nil
	}
	return "", fmt.Errorf("%w: no statement password configured for account ending %s", common.ErrMissingPassword, accountLast4)
}
