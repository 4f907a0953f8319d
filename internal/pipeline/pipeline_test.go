package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residio-ng/residio/internal/bankparse"
	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/pipeline"
	"github.com/residio-ng/residio/internal/service"
	"github.com/residio-ng/residio/internal/statement"
	"github.com/residio-ng/residio/internal/testutil"
)

type fakeMailbox struct {
	messages map[string]*service.RawEmail
	listErr  error
	refs     []service.MessageRef
}

func (f *fakeMailbox) ListMessagesByCriteria(_ context.Context, _ service.ListCriteria) ([]service.MessageRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, providerID string) (*service.RawEmail, error) {
	email, ok := f.messages[providerID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", providerID)
	}
	return email, nil
}

func (f *fakeMailbox) GetAttachment(_ context.Context, _, _ string) ([]byte, error) {
	return nil, errors.New("attachment unavailable")
}

func (f *fakeMailbox) add(email *service.RawEmail) {
	if f.messages == nil {
		f.messages = make(map[string]*service.RawEmail)
	}
	f.refs = append(f.refs, service.MessageRef{ProviderMessageID: email.ProviderID})
	f.messages[email.ProviderID] = email
}

// fakeBilling records payment and expense requests and hands out
// sequential IDs.
type fakeBilling struct {
	err      error
	payments []service.PaymentRequest
	expenses []service.ExpenseRequest
}

func (f *fakeBilling) CreatePayment(_ context.Context, req service.PaymentRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payments = append(f.payments, req)
	return fmt.Sprintf("pay-%d", len(f.payments)), nil
}

func (f *fakeBilling) CreateExpense(_ context.Context, req service.ExpenseRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.expenses = append(f.expenses, req)
	return fmt.Sprintf("exp-%d", len(f.expenses)), nil
}

type fakeNotifier struct {
	events   []string
	payloads []map[string]any
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, event string, payload map[string]any) error {
	f.events = append(f.events, event)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeAuth struct {
	processors map[string]bool
	admins     map[string]bool
}

func (f *fakeAuth) CanProcessPayments(actor string) bool {
	return f.processors[actor] || f.admins[actor]
}

func (f *fakeAuth) CanAdminister(actor string) bool {
	return f.admins[actor]
}

type noPasswords struct{}

func (noPasswords) GetDecryptedPassword(_ context.Context, _ string) (string, error) {
	return "", common.ErrMissingPassword
}

func newTestPipeline(t *testing.T, mailbox *fakeMailbox, billing *fakeBilling, notifier *fakeNotifier, cfg pipeline.Config) (*pipeline.Pipeline, *testutil.TestDB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	db.SeedResidents(ctx, testutil.StandardResidents()...)
	db.SeedCategories(ctx, testutil.StandardCategories()...)

	alerts := bankparse.NewParser(bankparse.Config{
		SenderDomains:   []string{"gtbank.com"},
		SubjectKeywords: []string{"credit alert", "debit alert", "transaction alert"},
	})
	auth := &fakeAuth{
		processors: map[string]bool{"ada": true},
		admins:     map[string]bool{"chief": true},
	}

	p := pipeline.New(
		db.Storage,
		mailbox,
		alerts,
		statement.NewParser(noPasswords{}),
		billing,
		billing,
		notifier,
		auth,
		cfg,
	)
	return p, db
}

func alertEmail(id, sender, subject, body string) *service.RawEmail {
	return &service.RawEmail{
		ProviderID: id,
		Sender:     sender,
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

// standardMailbox covers every routing outcome: a high-confidence credit,
// a fuzzy credit, a credit naming nobody in the directory, a debit, a
// newsletter, and a bank email with no extractable transaction.
func standardMailbox() *fakeMailbox {
	mb := &fakeMailbox{}
	mb.add(alertEmail("msg-high", "gens@gtbank.com", "GTBank Credit Alert",
		"Your account 0123456789 has been credited with NGN15,000.00 from JOHN A SMITH. Ref: NIP202503100921. Date: 10-Mar-2025 09:21"))
	mb.add(alertEmail("msg-medium", "gens@gtbank.com", "GTBank Credit Alert",
		"Your account has been credited with NGN10,000.00 from OKAFOR MARY C. Ref: NIP202503100922"))
	mb.add(alertEmail("msg-unknown", "gens@gtbank.com", "GTBank Credit Alert",
		"Your account has been credited with NGN5,000.00 from CHIOMA NWOSU."))
	mb.add(alertEmail("msg-debit", "gens@gtbank.com", "GTBank Debit Alert",
		"Your account has been debited with NGN45,500.00 to SHOPRITE LAGOS via POS."))
	mb.add(alertEmail("msg-news", "news@shop.example.com", "Weekend deals!",
		"Everything must go."))
	mb.add(alertEmail("msg-garbled", "gens@gtbank.com", "Transaction Alert",
		"Your account has been credited. Thank you for banking with us."))
	return mb
}

func latestImport(t *testing.T, db *testutil.TestDB) *model.EmailImport {
	t.Helper()
	imports, err := db.Storage.ListEmailImports(context.Background(), service.ImportFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, imports, 1)
	return &imports[0]
}

func TestCheckPaymentEmailsFullRun(t *testing.T) {
	ctx := context.Background()
	billing := &fakeBilling{}
	notifier := &fakeNotifier{}
	p, db := newTestPipeline(t, standardMailbox(), billing, notifier, pipeline.DefaultConfig())

	summary, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 6, summary.Details.Fetched)
	assert.Equal(t, 0, summary.Details.Duplicates)
	assert.Equal(t, 4, summary.Details.Parsed)
	assert.Equal(t, 1, summary.Details.Matched)
	// The fuzzy credit plus the queued debit both wait on a human.
	assert.Equal(t, 2, summary.Details.NeedsReview)
	assert.Equal(t, 1, summary.Details.Unmatched)

	imp := latestImport(t, db)
	assert.Equal(t, model.ImportStatusCompleted, imp.Status)
	assert.Equal(t, model.TriggerManual, imp.Trigger)
	assert.Equal(t, "ada", imp.CreatedBy)

	matched, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusMatched)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "res-001", matched[0].MatchedResidentID)
	assert.Equal(t, int64(1500000), matched[0].AmountMinor)
	assert.Equal(t, model.ConfidenceHigh, matched[0].MatchConfidence)

	// Nothing is converted until a processing run is requested.
	assert.Empty(t, billing.payments)
	// Backlog of 3 stays under the stock threshold of 5.
	assert.Empty(t, notifier.events)
}

func TestCheckPaymentEmailsRefetchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)

	summary, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 0, summary.Details.Fetched)
	assert.Equal(t, 6, summary.Details.Duplicates)
	assert.Equal(t, 0, summary.Details.Parsed)
	assert.Equal(t, 0, summary.Details.Matched)
}

func TestCheckPaymentEmailsFetchFailure(t *testing.T) {
	ctx := context.Background()
	mb := &fakeMailbox{listErr: common.ErrMailboxConnection}
	p, db := newTestPipeline(t, mb, &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	summary, err := p.CheckPaymentEmails(ctx, model.TriggerScheduled, "ada", pipeline.FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMailboxConnection)
	assert.False(t, summary.Success)

	imp := latestImport(t, db)
	assert.Equal(t, model.ImportStatusFailed, imp.Status)
	assert.NotEmpty(t, imp.Error)
}

func TestCheckPaymentEmailsUndownloadableMessageDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	mb := standardMailbox()
	mb.refs = append(mb.refs, service.MessageRef{ProviderMessageID: "msg-ghost"})
	p, db := newTestPipeline(t, mb, &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	summary, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 6, summary.Details.Fetched)

	imp := latestImport(t, db)
	assert.Equal(t, model.ImportStatusCompleted, imp.Status)
}

func TestProcessTransactionsRequiresAuthorization(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.ProcessTransactions(ctx, "imp-whatever", "stranger")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestProcessTransactionsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	billing := &fakeBilling{}
	p, db := newTestPipeline(t, standardMailbox(), billing, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	result, err := p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoProcessed)
	assert.Equal(t, 0, result.ExpensesCreated)
	assert.Empty(t, result.Errors)

	require.Len(t, billing.payments, 1)
	assert.Equal(t, "res-001", billing.payments[0].ResidentID)
	assert.Equal(t, int64(1500000), billing.payments[0].AmountMinor)
	assert.Equal(t, "email_import", billing.payments[0].Source)
	assert.Contains(t, billing.payments[0].Reference, "NIP202503100921")

	// A second run finds no eligible rows and creates nothing.
	result, err = p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 0, result.AutoProcessed)
	assert.Empty(t, result.Errors)
	assert.Len(t, billing.payments, 1)

	processed, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "pay-1", processed[0].PaymentID)
}

func TestProcessTransactionsPaymentFailureKeepsRowEligible(t *testing.T) {
	ctx := context.Background()
	billing := &fakeBilling{err: errors.New("billing service unavailable")}
	p, db := newTestPipeline(t, standardMailbox(), billing, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	result, err := p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 0, result.AutoProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "billing service unavailable")

	// The row stayed matched; the next run converts it.
	billing.err = nil
	result, err = p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoProcessed)
	assert.Len(t, billing.payments, 1)
}

func TestProcessTransactionsConvertsCategorizedDebits(t *testing.T) {
	ctx := context.Background()
	billing := &fakeBilling{}
	p, db := newTestPipeline(t, standardMailbox(), billing, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	debits, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusQueuedForReview)
	require.NoError(t, err)
	require.Len(t, debits, 1)

	// Uncategorized debits are left alone.
	result, err := p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExpensesCreated)
	assert.Empty(t, billing.expenses)

	// A typo'd category is rejected before it reaches the billing API.
	err = p.ApproveTransaction(ctx, debits[0].ID, "cat-does-not-exist", "ada")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, p.ApproveTransaction(ctx, debits[0].ID, "cat-security", "ada"))

	result, err = p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExpensesCreated)
	require.Len(t, billing.expenses, 1)
	assert.Equal(t, "cat-security", billing.expenses[0].CategoryID)
	assert.Equal(t, int64(4550000), billing.expenses[0].AmountMinor)
}

func TestApproveTransactionCredit(t *testing.T) {
	ctx := context.Background()
	p, db := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	review, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusNeedsReview)
	require.NoError(t, err)
	require.Len(t, review, 1)

	require.NoError(t, p.ApproveTransaction(ctx, review[0].ID, "res-002", "ada"))

	txn, err := db.Storage.GetEmailTransaction(ctx, review[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusMatched, txn.Status)
	assert.Equal(t, "res-002", txn.MatchedResidentID)
}

func TestApproveTransactionGuards(t *testing.T) {
	ctx := context.Background()
	billing := &fakeBilling{}
	p, db := newTestPipeline(t, standardMailbox(), billing, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	review, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusNeedsReview)
	require.NoError(t, err)
	require.Len(t, review, 1)

	err = p.ApproveTransaction(ctx, review[0].ID, "res-002", "stranger")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	err = p.ApproveTransaction(ctx, review[0].ID, "", "ada")
	assert.Error(t, err)

	err = p.ApproveTransaction(ctx, review[0].ID, "res-does-not-exist", "ada")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Once a row is converted it cannot be re-approved.
	_, err = p.ProcessTransactions(ctx, imp.ID, "ada")
	require.NoError(t, err)
	processed, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 1)

	err = p.ApproveTransaction(ctx, processed[0].ID, "res-002", "ada")
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
}

func TestSkipTransaction(t *testing.T) {
	ctx := context.Background()
	p, db := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	review, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusNeedsReview)
	require.NoError(t, err)
	require.Len(t, review, 1)

	err = p.SkipTransaction(ctx, review[0].ID, "duplicate of a cash payment", "stranger")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, p.SkipTransaction(ctx, review[0].ID, "duplicate of a cash payment", "ada"))

	txn, err := db.Storage.GetEmailTransaction(ctx, review[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusIgnored, txn.Status)
	assert.Equal(t, "ada", txn.SkippedBy)
	assert.Equal(t, "duplicate of a cash payment", txn.SkipReason)

	// Skipping is terminal.
	err = p.SkipTransaction(ctx, review[0].ID, "again", "ada")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	// Skipped rows leave the review queue.
	queue, err := p.GetReviewQueue(ctx, imp.ID)
	require.NoError(t, err)
	for _, q := range queue {
		assert.NotEqual(t, review[0].ID, q.ID)
	}
}

func TestMatchTransactionsNoOpOnCompletedImport(t *testing.T) {
	ctx := context.Background()
	p, db := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)
	require.Equal(t, model.ImportStatusCompleted, imp.Status)

	// Re-running the matching stage with nothing pending reports zero
	// counts and leaves the completed session untouched.
	stats, err := p.MatchTransactions(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total())

	imp = latestImport(t, db)
	assert.Equal(t, model.ImportStatusCompleted, imp.Status)
}

func TestRematchUnmatchedAfterDirectoryUpdate(t *testing.T) {
	ctx := context.Background()
	p, db := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	imp := latestImport(t, db)

	unmatched, err := db.Storage.GetTransactionsByStatus(ctx, imp.ID, model.TxStatusUnmatched)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)

	// Nothing changes while the directory stays the same.
	stats, err := p.RematchUnmatched(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)

	require.NoError(t, db.Storage.SaveResident(ctx, &model.Resident{
		ID:          "res-004",
		FullName:    "Chioma Nwosu",
		HouseNumber: "D7",
		Aliases:     []string{"CHIOMA NWOSU"},
	}))

	stats, err = p.RematchUnmatched(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Unmatched)

	txn, err := db.Storage.GetEmailTransaction(ctx, unmatched[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusMatched, txn.Status)
	assert.Equal(t, "res-004", txn.MatchedResidentID)
}

func TestReviewBacklogNotification(t *testing.T) {
	ctx := context.Background()
	notifier := &fakeNotifier{}
	cfg := pipeline.DefaultConfig()
	cfg.ReviewAlertThreshold = 1
	p, _ := newTestPipeline(t, standardMailbox(), &fakeBilling{}, notifier, cfg)

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "review_backlog", notifier.events[0])
	assert.Equal(t, 1, notifier.payloads[0]["needs_review"])
	assert.Equal(t, 1, notifier.payloads[0]["unmatched"])
	assert.Equal(t, 1, notifier.payloads[0]["queued"])
}

func TestReviewBacklogNotificationDisabled(t *testing.T) {
	ctx := context.Background()
	notifier := &fakeNotifier{}
	cfg := pipeline.DefaultConfig()
	cfg.ReviewAlertThreshold = 0
	p, _ := newTestPipeline(t, standardMailbox(), &fakeBilling{}, notifier, cfg)

	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, notifier.events)
}

func TestFetchProgressCallback(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, standardMailbox(), &fakeBilling{}, &fakeNotifier{}, pipeline.DefaultConfig())

	var calls []int
	_, err := p.CheckPaymentEmails(ctx, model.TriggerManual, "ada", pipeline.FetchOptions{
		Progress: func(done, total int) {
			assert.Equal(t, 6, total)
			calls = append(calls, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, calls)
}
