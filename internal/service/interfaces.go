// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/residio-ng/residio/internal/model"
)

// ImportFilter defines filtering options for import session queries.
type ImportFilter struct {
	Status *model.ImportStatus
	Limit  int
	Offset int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Import session operations
	CreateEmailImport(ctx context.Context, imp *model.EmailImport) error
	GetEmailImport(ctx context.Context, id string) (*model.EmailImport, error)
	ListEmailImports(ctx context.Context, filter ImportFilter) ([]model.EmailImport, error)
	UpdateEmailImportStatus(ctx context.Context, id string, status model.ImportStatus, patch ImportPatch) error

	// Message operations
	SaveEmailMessage(ctx context.Context, msg *model.EmailMessage) (bool, error)
	GetPendingMessages(ctx context.Context, importID string) ([]model.EmailMessage, error)
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, parseErr string) error

	// Transaction operations
	SaveEmailTransaction(ctx context.Context, txn *model.EmailTransaction) error
	GetEmailTransaction(ctx context.Context, id string) (*model.EmailTransaction, error)
	GetTransactionsByStatus(ctx context.Context, importID string, statuses ...model.TransactionStatus) ([]model.EmailTransaction, error)
	UpdateTransactionMatch(ctx context.Context, id string, status model.TransactionStatus, result model.MatchResult) error
	UpdateTransactionReview(ctx context.Context, id string, patch ReviewPatch) error
	// MarkTransactionProcessed sets payment_id and the processed status only
	// if the row has no payment reference yet. Returns false when the guard
	// fails, so overlapping processing runs cannot double-convert a row.
	MarkTransactionProcessed(ctx context.Context, id string, paymentID string) (bool, error)
	GetReviewQueue(ctx context.Context, importID string) ([]model.EmailTransaction, error)

	// Directory operations
	GetResidentDirectory(ctx context.Context) ([]model.Resident, error)
	GetResident(ctx context.Context, id string) (*model.Resident, error)
	SaveResident(ctx context.Context, resident *model.Resident) error
	GetExpenseCategory(ctx context.Context, id string) (*model.ExpenseCategory, error)
	GetExpenseCategories(ctx context.Context) ([]model.ExpenseCategory, error)

	// Audit operations
	AppendAudit(ctx context.Context, entry model.AuditEntry) error

	// Destructive reset: unlinks payment references, then deletes
	// transactions, messages, and imports bottom-up.
	ResetEmailImports(ctx context.Context) (ResetStats, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ImportPatch carries optional counter and error updates for a session.
type ImportPatch struct {
	EmailsFetched *int
	EmailsParsed  *int
	EmailsMatched *int
	Error         string
}

// ReviewPatch carries a manual review decision.
type ReviewPatch struct {
	Status     model.TransactionStatus
	ResidentID string
	CategoryID string
	SkippedBy  string
	SkipReason string
}

// ResetStats reports what a reset removed.
type ResetStats struct {
	Imports          int
	Messages         int
	Transactions     int
	PaymentsUnlinked int
}

// MessageRef identifies one mailbox message without its content.
type MessageRef struct {
	ProviderMessageID string
}

// RawEmail is one downloaded mailbox message.
type RawEmail struct {
	ReceivedAt    time.Time
	ProviderID    string
	Sender        string
	Subject       string
	Body          string
	AttachmentID  string
	Attachment    []byte
}

// ListCriteria filters candidate mailbox messages.
type ListCriteria struct {
	Senders    []string
	Subject    string
	SinceDays  int
	MaxResults int
}

// Mailbox is the external mail provider.
type Mailbox interface {
	ListMessagesByCriteria(ctx context.Context, criteria ListCriteria) ([]MessageRef, error)
	GetMessage(ctx context.Context, providerID string) (*RawEmail, error)
	GetAttachment(ctx context.Context, providerID, attachmentID string) ([]byte, error)
}

// PasswordStore resolves decrypted statement passwords by account last-4.
type PasswordStore interface {
	GetDecryptedPassword(ctx context.Context, accountLast4 string) (string, error)
}

// PaymentRequest asks the billing subsystem to create a wallet-crediting
// payment. The collaborator credits the wallet atomically with creation.
type PaymentRequest struct {
	ResidentID  string
	Reference   string
	Source      string
	AmountMinor int64
}

// PaymentCreator is the billing subsystem's payment entry point.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (paymentID string, err error)
}

// ExpenseRequest asks the billing subsystem to record an expense.
type ExpenseRequest struct {
	CategoryID  string
	Reference   string
	Description string
	AmountMinor int64
}

// ExpenseCreator is the billing subsystem's expense entry point.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, req ExpenseRequest) (expenseID string, err error)
}

// Notifier delivers operational events to estate admins.
type Notifier interface {
	NotifyAdmins(ctx context.Context, event string, payload map[string]any) error
}

// Authorizer checks whether an actor may perform privileged actions.
type Authorizer interface {
	CanProcessPayments(actor string) bool
	CanAdminister(actor string) bool
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
