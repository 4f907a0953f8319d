// Package pipeline implements the email payment reconciliation pipeline:
// fetch bank alert emails, parse them into transactions, match transactions
// to residents, and convert confident matches into payments and expenses.
package pipeline

import (
	"github.com/residio-ng/residio/internal/bankparse"
	"github.com/residio-ng/residio/internal/match"
	"github.com/residio-ng/residio/internal/service"
	"github.com/residio-ng/residio/internal/statement"
)

// Pipeline wires the reconciliation stages to their collaborators. All
// persistence and external calls go through injected interfaces so stages
// can be tested with in-memory fakes.
type Pipeline struct {
	storage    service.Storage
	mailbox    service.Mailbox
	alerts     *bankparse.Parser
	statements *statement.Parser
	payments   service.PaymentCreator
	expenses   service.ExpenseCreator
	notifier   service.Notifier
	auth       service.Authorizer
	cfg        Config
}

// Config holds pipeline tuning knobs.
type Config struct {
	// Matching carries the fuzzy-match thresholds.
	Matching match.Config
	// ReviewAlertThreshold is the count of review-queue items in one run
	// above which admins are notified. Zero disables the notification.
	ReviewAlertThreshold int
	// DefaultSinceDays bounds the mailbox lookback window.
	DefaultSinceDays int
	// DefaultMaxEmails caps one fetch so interactive runs stay fast.
	DefaultMaxEmails int
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Matching:             match.DefaultConfig(),
		ReviewAlertThreshold: 5,
		DefaultSinceDays:     7,
		DefaultMaxEmails:     50,
	}
}

// New creates a pipeline with the given collaborators.
func New(
	storage service.Storage,
	mailbox service.Mailbox,
	alerts *bankparse.Parser,
	statements *statement.Parser,
	payments service.PaymentCreator,
	expenses service.ExpenseCreator,
	notifier service.Notifier,
	auth service.Authorizer,
	cfg Config,
) *Pipeline {
	if cfg.DefaultSinceDays <= 0 {
		cfg.DefaultSinceDays = DefaultConfig().DefaultSinceDays
	}
	if cfg.DefaultMaxEmails <= 0 {
		cfg.DefaultMaxEmails = DefaultConfig().DefaultMaxEmails
	}
	return &Pipeline{
		storage:    storage,
		mailbox:    mailbox,
		alerts:     alerts,
		statements: statements,
		payments:   payments,
		expenses:   expenses,
		notifier:   notifier,
		auth:       auth,
		cfg:        cfg,
	}
}

// FetchResult reports one fetch stage run.
type FetchResult struct {
	Errors     []string
	Fetched    int
	Duplicates int
}

// ParseResult reports one parsing stage run.
type ParseResult struct {
	Errors              []string
	Parsed              int
	Failed              int
	Skipped             int
	TransactionsCreated int
}

// MatchStats reports one matching stage run.
type MatchStats struct {
	Matched     int
	NeedsReview int
	Unmatched   int
	Queued      int
}

// Total returns the number of transactions the run touched.
func (m MatchStats) Total() int {
	return m.Matched + m.NeedsReview + m.Unmatched + m.Queued
}

// ProcessResult reports one processing stage run. Per-row failures are
// collected here, never dropped; the affected rows stay eligible for the
// next run.
type ProcessResult struct {
	Errors          []string
	AutoProcessed   int
	ExpensesCreated int
}

// Summary is the orchestrator's operator-facing result. The shape is
// stable: it is surfaced directly in the UI.
type Summary struct {
	Message string         `json:"message"`
	Details SummaryDetails `json:"details"`
	Success bool           `json:"success"`
}

// SummaryDetails carries per-stage counts, reported even under partial
// failure.
type SummaryDetails struct {
	Fetched     int `json:"fetched"`
	Duplicates  int `json:"duplicates"`
	Parsed      int `json:"parsed"`
	Matched     int `json:"matched"`
	NeedsReview int `json:"needs_review"`
	Unmatched   int `json:"unmatched"`
}
