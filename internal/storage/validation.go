package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/residio-ng/residio/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidImport      = errors.New("invalid email import")
	ErrInvalidMessage     = errors.New("invalid email message")
	ErrInvalidTransaction = errors.New("invalid email transaction")
	ErrInvalidResident    = errors.New("invalid resident")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateImport validates an email import session.
func validateImport(imp *model.EmailImport) error {
	if imp == nil {
		return fmt.Errorf("%w: import", ErrNilParameter)
	}
	if imp.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidImport)
	}
	switch imp.Trigger {
	case model.TriggerManual, model.TriggerScheduled:
	default:
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidImport, imp.Trigger)
	}
	return nil
}

// validateMessage validates a fetched email message.
func validateMessage(msg *model.EmailMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message", ErrNilParameter)
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidMessage)
	}
	if msg.ImportID == "" {
		return fmt.Errorf("%w: missing import ID", ErrInvalidMessage)
	}
	if msg.ProviderMessageID == "" {
		return fmt.Errorf("%w: missing provider message ID", ErrInvalidMessage)
	}
	return nil
}

// validateTransaction validates an extracted transaction.
func validateTransaction(txn *model.EmailTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.MessageID == "" {
		return fmt.Errorf("%w: missing message ID", ErrInvalidTransaction)
	}
	if txn.AmountMinor <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	switch txn.Type {
	case model.TypeCredit, model.TypeDebit:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	return nil
}

// validateResident validates a resident directory entry.
func validateResident(resident *model.Resident) error {
	if resident == nil {
		return fmt.Errorf("%w: resident", ErrNilParameter)
	}
	if resident.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidResident)
	}
	if strings.TrimSpace(resident.FullName) == "" {
		return fmt.Errorf("%w: missing full name", ErrInvalidResident)
	}
	return nil
}
