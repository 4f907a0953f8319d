package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residio-ng/residio/internal/common"
)

func TestRoleAuthorizer(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("auth.admins", []string{"chief"})
	viper.Set("auth.processors", []string{"ada"})

	auth := NewRoleAuthorizer()

	// Admins hold the processor role implicitly.
	assert.True(t, auth.CanProcessPayments("chief"))
	assert.True(t, auth.CanAdminister("chief"))

	assert.True(t, auth.CanProcessPayments("ada"))
	assert.False(t, auth.CanAdminister("ada"))

	assert.False(t, auth.CanProcessPayments("stranger"))
	assert.False(t, auth.CanAdminister("stranger"))
}

func TestPasswordStoreFromConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("statements.passwords", map[string]string{"6789": "hunter2"})

	store := NewPasswordStore()

	password, err := store.GetDecryptedPassword(context.Background(), "6789")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	_, err = store.GetDecryptedPassword(context.Background(), "0000")
	assert.ErrorIs(t, err, common.ErrMissingPassword)
}

func TestPasswordStoreFromEnvironment(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("RESIDIO_STATEMENT_PASSWORD_4321", "s3cret")

	store := NewPasswordStore()

	password, err := store.GetDecryptedPassword(context.Background(), "4321")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}
