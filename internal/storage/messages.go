package storage

import (
	"context"
	"fmt"

	"github.com/residio-ng/residio/internal/model"
)

// SaveEmailMessage inserts a fetched message. The unique constraint on
// provider_message_id makes refetching the same mailbox window idempotent;
// the bool return reports whether a new row was actually written.
func (s *SQLiteStorage) SaveEmailMessage(ctx context.Context, msg *model.EmailMessage) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateMessage(msg); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO email_messages (
			id, import_id, provider_message_id, sender, subject,
			body, attachment_ref, status, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ImportID, msg.ProviderMessageID, msg.Sender, msg.Subject,
		msg.Body, msg.AttachmentRef, string(model.MessageStatusPending), msg.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check message insert: %w", err)
	}
	return affected > 0, nil
}

// GetPendingMessages returns the unparsed messages of an import.
func (s *SQLiteStorage) GetPendingMessages(ctx context.Context, importID string) ([]model.EmailMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, import_id, provider_message_id, COALESCE(sender, ''),
		       COALESCE(subject, ''), COALESCE(body, ''),
		       COALESCE(attachment_ref, ''), status, COALESCE(error, ''),
		       received_at, created_at
		FROM email_messages
		WHERE import_id = ? AND status = ?
		ORDER BY received_at
	`, importID, string(model.MessageStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.EmailMessage
	for rows.Next() {
		var msg model.EmailMessage
		var status string
		if err := rows.Scan(&msg.ID, &msg.ImportID, &msg.ProviderMessageID,
			&msg.Sender, &msg.Subject, &msg.Body, &msg.AttachmentRef,
			&status, &msg.Error, &msg.ReceivedAt, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Status = model.MessageStatus(status)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateMessageStatus moves a message to its terminal parse state. Only
// pending messages may move; parsed/failed/skipped rows are never mutated
// again.
func (s *SQLiteStorage) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, parseErr string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE email_messages SET status = ?, error = ?
		WHERE id = ? AND status = ?
	`, string(status), parseErr, id, string(model.MessageStatusPending))
	if err != nil {
		return fmt.Errorf("failed to update message %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check message update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %s is not pending", id)
	}
	return nil
}
