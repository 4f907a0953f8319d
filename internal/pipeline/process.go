package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// ProcessTransactions converts the import's matched credits into payments
// and its categorized debits into expenses. At most one payment or expense
// is ever created per transaction: the payment_id guard is checked here and
// re-verified by the storage layer at write time, so overlapping runs are
// safe retries. Per-row failures are collected and the rows stay eligible
// for the next run.
func (p *Pipeline) ProcessTransactions(ctx context.Context, importID, actor string) (ProcessResult, error) {
	var result ProcessResult

	if !p.auth.CanProcessPayments(actor) {
		return result, fmt.Errorf("%w: %s may not process payments", common.ErrUnauthorized, actor)
	}

	credits, err := p.storage.GetTransactionsByStatus(ctx, importID, model.TxStatusMatched)
	if err != nil {
		return result, fmt.Errorf("failed to load matched credits: %w", err)
	}

	for i := range credits {
		txn := &credits[i]
		if err := p.processCredit(ctx, txn); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("credit %s: %v", txn.ID, err))
			continue
		}
		result.AutoProcessed++
	}

	debits, err := p.storage.GetTransactionsByStatus(ctx, importID, model.TxStatusQueuedForReview)
	if err != nil {
		return result, fmt.Errorf("failed to load queued debits: %w", err)
	}

	for i := range debits {
		txn := &debits[i]
		if txn.CategoryID == "" {
			// Not yet triaged through the review queue.
			continue
		}
		if err := p.processDebit(ctx, txn); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("debit %s: %v", txn.ID, err))
			continue
		}
		result.ExpensesCreated++
	}

	p.audit(ctx, actor, "import.process", "email_import", importID, "",
		fmt.Sprintf("payments=%d expenses=%d errors=%d",
			result.AutoProcessed, result.ExpensesCreated, len(result.Errors)))

	slog.Info("Processing stage complete",
		"import_id", importID,
		"payments", result.AutoProcessed,
		"expenses", result.ExpensesCreated,
		"errors", len(result.Errors))

	return result, nil
}

// processCredit converts one matched credit into a wallet-crediting
// payment.
func (p *Pipeline) processCredit(ctx context.Context, txn *model.EmailTransaction) error {
	if !txn.ReadyToProcess() {
		return fmt.Errorf("%w: transaction %s", common.ErrAlreadyProcessed, txn.ID)
	}

	paymentID, err := p.payments.CreatePayment(ctx, service.PaymentRequest{
		ResidentID:  txn.MatchedResidentID,
		AmountMinor: txn.AmountMinor,
		Reference:   paymentReference(txn),
		Source:      "email_import",
	})
	if err != nil {
		// Row stays matched; the next run retries it.
		return fmt.Errorf("payment creation failed: %w", err)
	}

	converted, err := p.storage.MarkTransactionProcessed(ctx, txn.ID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to finalize payment %s: %w", paymentID, err)
	}
	if !converted {
		return fmt.Errorf("%w: transaction %s was converted concurrently", common.ErrAlreadyProcessed, txn.ID)
	}
	return nil
}

// processDebit converts one categorized debit into an expense record.
func (p *Pipeline) processDebit(ctx context.Context, txn *model.EmailTransaction) error {
	if !txn.ReadyToProcess() {
		return fmt.Errorf("%w: transaction %s", common.ErrAlreadyProcessed, txn.ID)
	}

	expenseID, err := p.expenses.CreateExpense(ctx, service.ExpenseRequest{
		CategoryID:  txn.CategoryID,
		AmountMinor: txn.AmountMinor,
		Reference:   paymentReference(txn),
		Description: txn.Description,
	})
	if err != nil {
		return fmt.Errorf("expense creation failed: %w", err)
	}

	converted, err := p.storage.MarkTransactionProcessed(ctx, txn.ID, expenseID)
	if err != nil {
		return fmt.Errorf("failed to finalize expense %s: %w", expenseID, err)
	}
	if !converted {
		return fmt.Errorf("%w: transaction %s was converted concurrently", common.ErrAlreadyProcessed, txn.ID)
	}
	return nil
}

// paymentReference tags the billing record back to its source transaction.
func paymentReference(txn *model.EmailTransaction) string {
	if txn.BankReference != "" {
		return fmt.Sprintf("email-txn:%s:%s", txn.ID, txn.BankReference)
	}
	return fmt.Sprintf("email-txn:%s", txn.ID)
}
