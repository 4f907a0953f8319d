package pipeline

import (
	"context"
	"fmt"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// GetReviewQueue returns the transactions awaiting a human decision,
// optionally narrowed to one import.
func (p *Pipeline) GetReviewQueue(ctx context.Context, importID string) ([]model.EmailTransaction, error) {
	return p.storage.GetReviewQueue(ctx, importID)
}

// ApproveTransaction resolves one review-queue row. For a credit the
// reviewer overrides the matched resident and the row becomes eligible for
// the next processing run. For a debit the reviewer assigns the expense
// category; the row stays queued and becomes processable.
func (p *Pipeline) ApproveTransaction(ctx context.Context, transactionID, assigneeID, actor string) error {
	if !p.auth.CanProcessPayments(actor) {
		return fmt.Errorf("%w: %s may not review transactions", common.ErrUnauthorized, actor)
	}
	if assigneeID == "" {
		return fmt.Errorf("%w: assignee", common.ErrMissingConfig)
	}

	txn, err := p.storage.GetEmailTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.PaymentID != "" {
		return fmt.Errorf("%w: transaction %s", common.ErrAlreadyProcessed, transactionID)
	}

	var patch service.ReviewPatch
	switch txn.Type {
	case model.TypeCredit:
		if _, err := p.storage.GetResident(ctx, assigneeID); err != nil {
			return fmt.Errorf("resident %s: %w", assigneeID, err)
		}
		patch = service.ReviewPatch{
			Status:     model.TxStatusMatched,
			ResidentID: assigneeID,
		}
	case model.TypeDebit:
		if _, err := p.storage.GetExpenseCategory(ctx, assigneeID); err != nil {
			return fmt.Errorf("expense category %s: %w", assigneeID, err)
		}
		patch = service.ReviewPatch{
			Status:     model.TxStatusQueuedForReview,
			CategoryID: assigneeID,
		}
	default:
		return fmt.Errorf("transaction %s has unknown type %q", transactionID, txn.Type)
	}

	if err := p.storage.UpdateTransactionReview(ctx, transactionID, patch); err != nil {
		return err
	}

	p.audit(ctx, actor, "review.approve", "email_transaction", transactionID,
		string(txn.Status), string(patch.Status))
	return nil
}

// SkipTransaction marks a row ignored. Terminal: the row is excluded from
// every future stage run. The skipping actor and reason are recorded for
// audit.
func (p *Pipeline) SkipTransaction(ctx context.Context, transactionID, reason, actor string) error {
	if !p.auth.CanProcessPayments(actor) {
		return fmt.Errorf("%w: %s may not review transactions", common.ErrUnauthorized, actor)
	}

	txn, err := p.storage.GetEmailTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.IsTerminal() {
		return fmt.Errorf("%w: transaction %s is already %s",
			common.ErrInvalidTransition, transactionID, txn.Status)
	}

	patch := service.ReviewPatch{
		Status:     model.TxStatusIgnored,
		SkippedBy:  actor,
		SkipReason: reason,
	}
	if err := p.storage.UpdateTransactionReview(ctx, transactionID, patch); err != nil {
		return err
	}

	p.audit(ctx, actor, "review.skip", "email_transaction", transactionID,
		string(txn.Status), string(model.TxStatusIgnored))
	return nil
}
