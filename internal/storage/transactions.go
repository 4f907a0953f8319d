package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// SaveEmailTransaction inserts an extracted transaction in pending state.
func (s *SQLiteStorage) SaveEmailTransaction(ctx context.Context, txn *model.EmailTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	candidates, err := marshalCandidates(txn.MatchCandidates)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_transactions (
			id, message_id, transaction_type, amount_minor, description,
			bank_reference, occurred_at, status, match_confidence,
			match_method, match_candidates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.MessageID, string(txn.Type), txn.AmountMinor, txn.Description,
		txn.BankReference, txn.OccurredAt, string(model.TxStatusPending),
		string(model.ConfidenceNone), string(model.MethodNone), candidates)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// GetEmailTransaction retrieves one transaction by ID.
func (s *SQLiteStorage) GetEmailTransaction(ctx context.Context, id string) (*model.EmailTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, txSelect+" WHERE t.id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// GetTransactionsByStatus returns an import's transactions in any of the
// given statuses, oldest first.
func (s *SQLiteStorage) GetTransactionsByStatus(ctx context.Context, importID string, statuses ...model.TransactionStatus) ([]model.EmailTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: statuses", ErrNilParameter)
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{importID}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	query := txSelect + `
		JOIN email_messages m ON m.id = t.message_id
		WHERE m.import_id = ? AND t.status IN (` + placeholders + `)
		ORDER BY t.created_at, t.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// UpdateTransactionMatch records the matching stage's verdict for a pending
// row. Pending is required at write time, so re-running the stage cannot
// clobber reviewed or processed rows.
func (s *SQLiteStorage) UpdateTransactionMatch(ctx context.Context, id string, status model.TransactionStatus, result model.MatchResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	candidates, err := marshalCandidates(result.Candidates)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE email_transactions
		SET status = ?, matched_resident_id = ?, match_confidence = ?,
		    match_method = ?, match_candidates = ?
		WHERE id = ? AND status IN (?, ?) AND payment_id IS NULL
	`, string(status), nullable(result.ResidentID), string(result.Confidence),
		string(result.Method), candidates, id,
		string(model.TxStatusPending), string(model.TxStatusUnmatched))
	if err != nil {
		return fmt.Errorf("failed to update match for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check match update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s is not matchable", common.ErrInvalidTransition, id)
	}
	return nil
}

// UpdateTransactionReview applies a manual review decision.
func (s *SQLiteStorage) UpdateTransactionReview(ctx context.Context, id string, patch service.ReviewPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	txn, err := s.GetEmailTransaction(ctx, id)
	if err != nil {
		return err
	}
	if txn.PaymentID != "" {
		return fmt.Errorf("%w: transaction %s", common.ErrAlreadyProcessed, id)
	}
	if patch.Status != txn.Status && !txn.CanTransition(patch.Status) {
		return fmt.Errorf("%w: transaction %s cannot move %s -> %s",
			common.ErrInvalidTransition, id, txn.Status, patch.Status)
	}

	query := "UPDATE email_transactions SET status = ?"
	args := []any{string(patch.Status)}
	if patch.ResidentID != "" {
		query += ", matched_resident_id = ?, match_confidence = ?"
		args = append(args, patch.ResidentID, string(model.ConfidenceHigh))
	}
	if patch.CategoryID != "" {
		query += ", category_id = ?"
		args = append(args, patch.CategoryID)
	}
	if patch.SkippedBy != "" {
		query += ", skipped_by = ?, skip_reason = ?"
		args = append(args, patch.SkippedBy, patch.SkipReason)
	}
	query += " WHERE id = ? AND status = ? AND payment_id IS NULL"
	args = append(args, id, string(txn.Status))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update review for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check review update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s changed concurrently", common.ErrInvalidTransition, id)
	}
	return nil
}

// MarkTransactionProcessed sets the payment reference and terminal status,
// guarded on the row not holding a payment reference yet. Returns false
// when the guard fails: the row was already converted by another run.
func (s *SQLiteStorage) MarkTransactionProcessed(ctx context.Context, id string, paymentID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}
	if err := validateString(paymentID, "paymentID"); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE email_transactions SET status = ?, payment_id = ?
		WHERE id = ? AND payment_id IS NULL AND status IN (?, ?)
	`, string(model.TxStatusProcessed), paymentID, id,
		string(model.TxStatusMatched), string(model.TxStatusQueuedForReview))
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction %s processed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check processed update: %w", err)
	}
	return affected > 0, nil
}

// GetReviewQueue returns rows awaiting a human decision, oldest first.
// importID narrows to one session when non-empty.
func (s *SQLiteStorage) GetReviewQueue(ctx context.Context, importID string) ([]model.EmailTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := txSelect + `
		JOIN email_messages m ON m.id = t.message_id
		WHERE t.status IN (?, ?)`
	args := []any{string(model.TxStatusNeedsReview), string(model.TxStatusQueuedForReview)}
	if importID != "" {
		query += " AND m.import_id = ?"
		args = append(args, importID)
	}
	query += " ORDER BY t.created_at, t.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

const txSelect = `
	SELECT t.id, t.message_id, t.transaction_type, t.amount_minor,
	       COALESCE(t.description, ''), COALESCE(t.bank_reference, ''),
	       t.occurred_at, t.status, COALESCE(t.matched_resident_id, ''),
	       t.match_confidence, t.match_method,
	       COALESCE(t.match_candidates, ''), COALESCE(t.category_id, ''),
	       COALESCE(t.payment_id, ''), COALESCE(t.skipped_by, ''),
	       COALESCE(t.skip_reason, ''), t.created_at
	FROM email_transactions t`

func scanTransaction(row rowScanner) (*model.EmailTransaction, error) {
	var txn model.EmailTransaction
	var txType, status, confidence, method, candidates string
	err := row.Scan(&txn.ID, &txn.MessageID, &txType, &txn.AmountMinor,
		&txn.Description, &txn.BankReference, &txn.OccurredAt, &status,
		&txn.MatchedResidentID, &confidence, &method, &candidates,
		&txn.CategoryID, &txn.PaymentID, &txn.SkippedBy, &txn.SkipReason,
		&txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	txn.Type = model.TransactionType(txType)
	txn.Status = model.TransactionStatus(status)
	txn.MatchConfidence = model.MatchConfidence(confidence)
	txn.MatchMethod = model.MatchMethod(method)
	if candidates != "" {
		if err := json.Unmarshal([]byte(candidates), &txn.MatchCandidates); err != nil {
			return nil, fmt.Errorf("corrupt match candidates for %s: %w", txn.ID, err)
		}
	}
	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.EmailTransaction, error) {
	var transactions []model.EmailTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

func marshalCandidates(candidates []model.MatchCandidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("failed to marshal match candidates: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
