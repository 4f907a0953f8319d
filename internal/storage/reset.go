package storage

import (
	"context"
	"fmt"

	"github.com/residio-ng/residio/internal/service"
)

// ResetEmailImports removes every import session together with its messages
// and transactions. Payments created from transactions live in the billing
// subsystem and are kept: their back-references are unlinked first, which
// breaks the transaction/payment cycle before the bottom-up deletes run.
// Deleting in any other order violates the foreign keys.
func (s *SQLiteStorage) ResetEmailImports(ctx context.Context) (service.ResetStats, error) {
	var stats service.ResetStats
	if err := validateContext(ctx); err != nil {
		return stats, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 1. Unlink payment references (the payments themselves survive).
	res, err := tx.ExecContext(ctx, `
		UPDATE email_transactions SET payment_id = NULL WHERE payment_id IS NOT NULL
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to unlink payments: %w", err)
	}
	unlinked, _ := res.RowsAffected()
	stats.PaymentsUnlinked = int(unlinked)

	// 2. Delete children bottom-up: transactions, then messages, then imports.
	res, err = tx.ExecContext(ctx, `DELETE FROM email_transactions`)
	if err != nil {
		return stats, fmt.Errorf("failed to delete transactions: %w", err)
	}
	transactions, _ := res.RowsAffected()
	stats.Transactions = int(transactions)

	res, err = tx.ExecContext(ctx, `DELETE FROM email_messages`)
	if err != nil {
		return stats, fmt.Errorf("failed to delete messages: %w", err)
	}
	messages, _ := res.RowsAffected()
	stats.Messages = int(messages)

	res, err = tx.ExecContext(ctx, `DELETE FROM email_imports`)
	if err != nil {
		return stats, fmt.Errorf("failed to delete imports: %w", err)
	}
	imports, _ := res.RowsAffected()
	stats.Imports = int(imports)

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit reset: %w", err)
	}
	return stats, nil
}
