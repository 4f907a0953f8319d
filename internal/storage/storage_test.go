package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
	"github.com/residio-ng/residio/internal/testutil"
)

func seedImport(t *testing.T, db *testutil.TestDB, id string) {
	t.Helper()
	err := db.Storage.CreateEmailImport(context.Background(), &model.EmailImport{
		ID:      id,
		Trigger: model.TriggerManual,
	})
	require.NoError(t, err)
}

func seedMessage(t *testing.T, db *testutil.TestDB, id, importID, providerID string) {
	t.Helper()
	inserted, err := db.Storage.SaveEmailMessage(context.Background(), &model.EmailMessage{
		ID:                id,
		ImportID:          importID,
		ProviderMessageID: providerID,
		Sender:            "gens@gtbank.com",
		Subject:           "Credit Alert",
		ReceivedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func seedTransaction(t *testing.T, db *testutil.TestDB, id, messageID string, txType model.TransactionType) {
	t.Helper()
	err := db.Storage.SaveEmailTransaction(context.Background(), &model.EmailTransaction{
		ID:          id,
		MessageID:   messageID,
		Type:        txType,
		AmountMinor: 1500000,
		Description: "NIP TRANSFER FROM JOHN A SMITH",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestSaveEmailMessageIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")

	msg := &model.EmailMessage{
		ID:                "msg-1",
		ImportID:          "imp-1",
		ProviderMessageID: "provider-abc",
		ReceivedAt:        time.Now().UTC(),
	}
	inserted, err := db.Storage.SaveEmailMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Refetching the same window produces the same provider ID; the second
	// save is a silent no-op.
	dup := &model.EmailMessage{
		ID:                "msg-2",
		ImportID:          "imp-1",
		ProviderMessageID: "provider-abc",
		ReceivedAt:        time.Now().UTC(),
	}
	inserted, err = db.Storage.SaveEmailMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	pending, err := db.Storage.GetPendingMessages(ctx, "imp-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestImportStatusTransitions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")

	// Legal forward walk.
	for _, status := range []model.ImportStatus{
		model.ImportStatusFetching,
		model.ImportStatusParsing,
		model.ImportStatusMatching,
		model.ImportStatusCompleted,
	} {
		require.NoError(t, db.Storage.UpdateEmailImportStatus(ctx, "imp-1", status, service.ImportPatch{}))
	}

	// Completed is terminal.
	err := db.Storage.UpdateEmailImportStatus(ctx, "imp-1", model.ImportStatusFailed, service.ImportPatch{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	// Stage skipping is rejected.
	seedImport(t, db, "imp-2")
	err = db.Storage.UpdateEmailImportStatus(ctx, "imp-2", model.ImportStatusMatching, service.ImportPatch{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	// Failure is reachable from any active state, and is a sink.
	require.NoError(t, db.Storage.UpdateEmailImportStatus(ctx, "imp-2", model.ImportStatusFailed, service.ImportPatch{Error: "mailbox unreachable"}))
	err = db.Storage.UpdateEmailImportStatus(ctx, "imp-2", model.ImportStatusFetching, service.ImportPatch{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	imp, err := db.Storage.GetEmailImport(ctx, "imp-2")
	require.NoError(t, err)
	assert.Equal(t, "mailbox unreachable", imp.Error)
}

func TestImportCounterPatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")

	fetched := 7
	require.NoError(t, db.Storage.UpdateEmailImportStatus(ctx, "imp-1", model.ImportStatusFetching, service.ImportPatch{EmailsFetched: &fetched}))

	imp, err := db.Storage.GetEmailImport(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, 7, imp.EmailsFetched)
	assert.Equal(t, model.ImportStatusFetching, imp.Status)
}

func TestUpdateTransactionMatchOnlyPendingOrUnmatched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)

	result := model.MatchResult{
		ResidentID: "res-001",
		Confidence: model.ConfidenceHigh,
		Method:     model.MethodAlias,
		Candidates: []model.MatchCandidate{{ResidentID: "res-001", FullName: "John Smith", Score: 1.0, Method: "alias"}},
	}
	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusMatched, result))

	txn, err := db.Storage.GetEmailTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusMatched, txn.Status)
	assert.Equal(t, "res-001", txn.MatchedResidentID)
	assert.Equal(t, model.ConfidenceHigh, txn.MatchConfidence)
	require.Len(t, txn.MatchCandidates, 1)
	assert.Equal(t, "John Smith", txn.MatchCandidates[0].FullName)

	// A matched row is no longer the matching stage's to touch.
	err = db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusUnmatched, model.MatchResult{Confidence: model.ConfidenceNone, Method: model.MethodNone})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestMarkTransactionProcessedAtMostOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)

	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusMatched, model.MatchResult{
		ResidentID: "res-001", Confidence: model.ConfidenceHigh, Method: model.MethodAlias,
	}))

	converted, err := db.Storage.MarkTransactionProcessed(ctx, "txn-1", "pay-1")
	require.NoError(t, err)
	assert.True(t, converted)

	// A second run must not convert the same row again.
	converted, err = db.Storage.MarkTransactionProcessed(ctx, "txn-1", "pay-2")
	require.NoError(t, err)
	assert.False(t, converted)

	txn, err := db.Storage.GetEmailTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusProcessed, txn.Status)
	assert.Equal(t, "pay-1", txn.PaymentID)
}

func TestMarkTransactionProcessedRejectsUnreviewedRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)

	// Still pending: not eligible.
	converted, err := db.Storage.MarkTransactionProcessed(ctx, "txn-1", "pay-1")
	require.NoError(t, err)
	assert.False(t, converted)
}

func TestUpdateTransactionReview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)

	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusNeedsReview, model.MatchResult{
		ResidentID: "res-001", Confidence: model.ConfidenceMedium, Method: model.MethodFuzzyName,
	}))

	// Manual approval pins the resident and lifts confidence.
	require.NoError(t, db.Storage.UpdateTransactionReview(ctx, "txn-1", service.ReviewPatch{
		Status:     model.TxStatusMatched,
		ResidentID: "res-002",
	}))

	txn, err := db.Storage.GetEmailTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusMatched, txn.Status)
	assert.Equal(t, "res-002", txn.MatchedResidentID)
	assert.Equal(t, model.ConfidenceHigh, txn.MatchConfidence)

	// Once converted, review decisions are rejected.
	converted, err := db.Storage.MarkTransactionProcessed(ctx, "txn-1", "pay-1")
	require.NoError(t, err)
	require.True(t, converted)

	err = db.Storage.UpdateTransactionReview(ctx, "txn-1", service.ReviewPatch{
		Status: model.TxStatusIgnored, SkippedBy: "admin", SkipReason: "duplicate",
	})
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
}

func TestGetReviewQueue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedImport(t, db, "imp-2")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedMessage(t, db, "msg-2", "imp-2", "p-2")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)
	seedTransaction(t, db, "txn-2", "msg-2", model.TypeDebit)
	seedTransaction(t, db, "txn-3", "msg-1", model.TypeCredit)

	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusNeedsReview, model.MatchResult{Confidence: model.ConfidenceLow, Method: model.MethodFuzzyName}))
	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-2", model.TxStatusQueuedForReview, model.MatchResult{Confidence: model.ConfidenceNone, Method: model.MethodNone}))
	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-3", model.TxStatusMatched, model.MatchResult{ResidentID: "res-001", Confidence: model.ConfidenceHigh, Method: model.MethodAlias}))

	all, err := db.Storage.GetReviewQueue(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := db.Storage.GetReviewQueue(ctx, "imp-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "txn-1", scoped[0].ID)
}

func TestResetEmailImportsCascade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedImport(t, db, "imp-1")
	seedImport(t, db, "imp-2")
	seedMessage(t, db, "msg-1", "imp-1", "p-1")
	seedMessage(t, db, "msg-2", "imp-2", "p-2")
	seedTransaction(t, db, "txn-1", "msg-1", model.TypeCredit)
	seedTransaction(t, db, "txn-2", "msg-2", model.TypeDebit)

	// Convert one row so the reset has a payment link to sever.
	require.NoError(t, db.Storage.UpdateTransactionMatch(ctx, "txn-1", model.TxStatusMatched, model.MatchResult{
		ResidentID: "res-001", Confidence: model.ConfidenceHigh, Method: model.MethodAlias,
	}))
	converted, err := db.Storage.MarkTransactionProcessed(ctx, "txn-1", "pay-1")
	require.NoError(t, err)
	require.True(t, converted)

	stats, err := db.Storage.ResetEmailImports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imports)
	assert.Equal(t, 2, stats.Messages)
	assert.Equal(t, 2, stats.Transactions)
	assert.Equal(t, 1, stats.PaymentsUnlinked)

	imports, err := db.Storage.ListEmailImports(ctx, service.ImportFilter{})
	require.NoError(t, err)
	assert.Empty(t, imports)

	_, err = db.Storage.GetEmailTransaction(ctx, "txn-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestResidentDirectoryCacheInvalidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedResidents(ctx, testutil.StandardResidents()...)

	directory, err := db.Storage.GetResidentDirectory(ctx)
	require.NoError(t, err)
	require.Len(t, directory, 3)

	// Saving through the storage layer must bust the cache.
	require.NoError(t, db.Storage.SaveResident(ctx, &model.Resident{ID: "res-100", FullName: "Ngozi Adeyemi"}))

	directory, err = db.Storage.GetResidentDirectory(ctx)
	require.NoError(t, err)
	assert.Len(t, directory, 4)
}

func TestSaveResidentReplacesAliases(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	resident := model.Resident{ID: "res-1", FullName: "John Smith", Aliases: []string{"J SMITH", "SMITH JOHN"}}
	require.NoError(t, db.Storage.SaveResident(ctx, &resident))

	resident.Aliases = []string{"JOHN A SMITH"}
	require.NoError(t, db.Storage.SaveResident(ctx, &resident))

	got, err := db.Storage.GetResident(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"JOHN A SMITH"}, got.Aliases)
}

func TestListEmailImportsFilterAndLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedImport(t, db, fmt.Sprintf("imp-%d", i))
	}
	require.NoError(t, db.Storage.UpdateEmailImportStatus(ctx, "imp-0", model.ImportStatusFailed, service.ImportPatch{Error: "boom"}))

	failed := model.ImportStatusFailed
	got, err := db.Storage.ListEmailImports(ctx, service.ImportFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "imp-0", got[0].ID)

	limited, err := db.Storage.ListEmailImports(ctx, service.ImportFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
