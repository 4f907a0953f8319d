package model

import "time"

// TransactionType distinguishes money in from money out.
type TransactionType string

// Transaction types. Fixed at creation.
const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// TransactionStatus represents where an extracted transaction sits in the
// match/review/process state machine.
type TransactionStatus string

// Transaction statuses. processed and ignored are terminal.
const (
	TxStatusPending         TransactionStatus = "pending"
	TxStatusMatched         TransactionStatus = "matched"
	TxStatusNeedsReview     TransactionStatus = "needs_review"
	TxStatusUnmatched       TransactionStatus = "unmatched"
	TxStatusQueuedForReview TransactionStatus = "queued_for_review"
	TxStatusProcessed       TransactionStatus = "processed"
	TxStatusIgnored         TransactionStatus = "ignored"
)

// MatchConfidence is the strength tier of a resident match.
type MatchConfidence string

// Confidence tiers. Only high confidence qualifies for auto-processing.
const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceNone   MatchConfidence = "none"
)

// MatchMethod records which strategy produced a match.
type MatchMethod string

// Match methods, in strategy priority order.
const (
	MethodAlias         MatchMethod = "alias"
	MethodExactName     MatchMethod = "exact_name"
	MethodFuzzyName     MatchMethod = "fuzzy_name"
	MethodAccountNumber MatchMethod = "account_number"
	MethodNone          MatchMethod = "none"
)

// txTransitions enumerates every legal status transition. All transitions
// are one-directional.
var txTransitions = map[TransactionStatus][]TransactionStatus{
	TxStatusPending:         {TxStatusMatched, TxStatusNeedsReview, TxStatusUnmatched, TxStatusQueuedForReview, TxStatusIgnored},
	TxStatusMatched:         {TxStatusProcessed, TxStatusIgnored},
	TxStatusNeedsReview:     {TxStatusMatched, TxStatusIgnored},
	TxStatusUnmatched:       {TxStatusMatched, TxStatusNeedsReview, TxStatusIgnored},
	TxStatusQueuedForReview: {TxStatusProcessed, TxStatusIgnored},
}

// EmailTransaction is one monetary transaction extracted from a message.
// AmountMinor is always positive and held in minor currency units (kobo).
// Once PaymentID is set the row is immutable.
type EmailTransaction struct {
	OccurredAt        time.Time
	CreatedAt         time.Time
	ID                string
	MessageID         string
	Type              TransactionType
	Description       string
	BankReference     string
	Status            TransactionStatus
	MatchedResidentID string
	MatchConfidence   MatchConfidence
	MatchMethod       MatchMethod
	MatchCandidates   []MatchCandidate
	CategoryID        string
	PaymentID         string
	SkippedBy         string
	SkipReason        string
	AmountMinor       int64
}

// CanTransition reports whether the transaction may move to the target
// status. Terminal states reject everything.
func (t *EmailTransaction) CanTransition(to TransactionStatus) bool {
	for _, allowed := range txTransitions[t.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the transaction has reached a final state.
func (t *EmailTransaction) IsTerminal() bool {
	return t.Status == TxStatusProcessed || t.Status == TxStatusIgnored
}

// ReadyToProcess reports whether the processing stage may convert this row.
// Credits must be matched to a resident; debits must be categorized.
func (t *EmailTransaction) ReadyToProcess() bool {
	if t.PaymentID != "" {
		return false
	}
	switch t.Type {
	case TypeCredit:
		return t.Status == TxStatusMatched && t.MatchedResidentID != ""
	case TypeDebit:
		return t.Status == TxStatusQueuedForReview && t.CategoryID != ""
	}
	return false
}
