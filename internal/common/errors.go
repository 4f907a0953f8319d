// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Mailbox errors.
	ErrMailboxConnection = errors.New("mailbox connection failed")
	ErrMailboxRateLimit  = errors.New("mailbox rate limit exceeded")

	// Statement errors.
	ErrWrongPassword   = errors.New("statement password rejected")
	ErrMissingPassword = errors.New("no password found for account")
	ErrUnreadablePDF   = errors.New("no readable text in PDF")
	ErrNoAccountNumber = errors.New("account number not found in statement")

	// Pipeline invariant violations. These indicate a caller bug and must
	// never be silently swallowed.
	ErrAlreadyProcessed  = errors.New("transaction already processed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrImportFailed      = errors.New("import session has failed")

	// Authorization errors.
	ErrUnauthorized = errors.New("unauthorized")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the operator.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrMailboxRateLimit) ||
		errors.Is(err, ErrMailboxConnection) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

// IsInvariantViolation reports whether an error indicates a caller bug
// rather than a data-quality or transient problem.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrImportFailed)
}
