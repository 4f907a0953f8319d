package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailTransactionCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{name: "pending to matched", from: TxStatusPending, to: TxStatusMatched, want: true},
		{name: "pending to needs review", from: TxStatusPending, to: TxStatusNeedsReview, want: true},
		{name: "pending to unmatched", from: TxStatusPending, to: TxStatusUnmatched, want: true},
		{name: "pending to queued", from: TxStatusPending, to: TxStatusQueuedForReview, want: true},
		{name: "matched to processed", from: TxStatusMatched, to: TxStatusProcessed, want: true},
		{name: "matched back to pending", from: TxStatusMatched, to: TxStatusPending, want: false},
		{name: "needs review to matched", from: TxStatusNeedsReview, to: TxStatusMatched, want: true},
		{name: "needs review cannot process directly", from: TxStatusNeedsReview, to: TxStatusProcessed, want: false},
		{name: "unmatched to matched after rematch", from: TxStatusUnmatched, to: TxStatusMatched, want: true},
		{name: "queued to processed", from: TxStatusQueuedForReview, to: TxStatusProcessed, want: true},
		{name: "processed is terminal", from: TxStatusProcessed, to: TxStatusIgnored, want: false},
		{name: "ignored is terminal", from: TxStatusIgnored, to: TxStatusMatched, want: false},
		{name: "anything active may be ignored", from: TxStatusUnmatched, to: TxStatusIgnored, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := EmailTransaction{Status: tt.from}
			assert.Equal(t, tt.want, txn.CanTransition(tt.to))
		})
	}
}

func TestReadyToProcess(t *testing.T) {
	tests := []struct {
		name string
		txn  EmailTransaction
		want bool
	}{
		{
			name: "matched credit with resident",
			txn:  EmailTransaction{Type: TypeCredit, Status: TxStatusMatched, MatchedResidentID: "res-1"},
			want: true,
		},
		{
			name: "matched credit without resident",
			txn:  EmailTransaction{Type: TypeCredit, Status: TxStatusMatched},
			want: false,
		},
		{
			name: "credit still in review",
			txn:  EmailTransaction{Type: TypeCredit, Status: TxStatusNeedsReview, MatchedResidentID: "res-1"},
			want: false,
		},
		{
			name: "categorized queued debit",
			txn:  EmailTransaction{Type: TypeDebit, Status: TxStatusQueuedForReview, CategoryID: "cat-1"},
			want: true,
		},
		{
			name: "uncategorized debit",
			txn:  EmailTransaction{Type: TypeDebit, Status: TxStatusQueuedForReview},
			want: false,
		},
		{
			name: "already converted row",
			txn:  EmailTransaction{Type: TypeCredit, Status: TxStatusMatched, MatchedResidentID: "res-1", PaymentID: "pay-1"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.txn.ReadyToProcess())
		})
	}
}
