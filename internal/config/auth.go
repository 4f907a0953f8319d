package config

import (
	"github.com/spf13/viper"
)

// RoleAuthorizer grants privileged actions to actors listed in
// configuration. Admins implicitly hold the processor role.
type RoleAuthorizer struct {
	admins     map[string]bool
	processors map[string]bool
}

// NewRoleAuthorizer loads the role lists from Viper (auth.admins and
// auth.processors).
func NewRoleAuthorizer() *RoleAuthorizer {
	auth := &RoleAuthorizer{
		admins:     make(map[string]bool),
		processors: make(map[string]bool),
	}
	for _, actor := range viper.GetStringSlice("auth.admins") {
		auth.admins[actor] = true
	}
	for _, actor := range viper.GetStringSlice("auth.processors") {
		auth.processors[actor] = true
	}
	return auth
}

// CanProcessPayments reports whether the actor may convert transactions
// into payments and expenses.
func (a *RoleAuthorizer) CanProcessPayments(actor string) bool {
	return a.processors[actor] || a.admins[actor]
}

// CanAdminister reports whether the actor may run destructive admin
// operations such as reset.
func (a *RoleAuthorizer) CanAdminister(actor string) bool {
	return a.admins[actor]
}
