package model

import "time"

// Resident is a directory entry used for payment matching. AccountNumber is
// the resident's registered bank account (NUBAN), used by the account-number
// match strategy.
type Resident struct {
	CreatedAt     time.Time
	ID            string
	FullName      string
	HouseNumber   string
	AccountNumber string
	Aliases       []string
}

// ResidentAlias maps a bank-name-on-account or nickname to a resident.
type ResidentAlias struct {
	ResidentID string
	Alias      string
}

// ExpenseCategory classifies debit transactions during review.
type ExpenseCategory struct {
	ID   string
	Name string
}

// AuditEntry records one state-changing action for the audit trail.
type AuditEntry struct {
	CreatedAt  time.Time
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Before     string
	After      string
}
