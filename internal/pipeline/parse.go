package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// ParseEmails consumes the import's pending messages and extracts
// transactions from them. Messages parse independently: a bad email or a
// bad statement row is recorded on that message and never aborts the batch.
func (p *Pipeline) ParseEmails(ctx context.Context, importID string) (ParseResult, error) {
	var result ParseResult

	if err := p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusParsing, service.ImportPatch{}); err != nil {
		return result, err
	}

	messages, err := p.storage.GetPendingMessages(ctx, importID)
	if err != nil {
		p.failImport(ctx, importID, fmt.Errorf("loading pending messages failed: %w", err))
		return result, fmt.Errorf("failed to load pending messages: %w", err)
	}

	for i := range messages {
		msg := &messages[i]
		created, parseErr := p.parseMessage(ctx, msg)

		switch {
		case parseErr == errNotRelevant:
			result.Skipped++
			p.setMessageStatus(ctx, msg.ID, model.MessageStatusSkipped, "", &result)
		case parseErr != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, parseErr))
			p.setMessageStatus(ctx, msg.ID, model.MessageStatusFailed, parseErr.Error(), &result)
		default:
			result.Parsed++
			result.TransactionsCreated += created
			p.setMessageStatus(ctx, msg.ID, model.MessageStatusParsed, "", &result)
		}
	}

	parsed := result.Parsed
	err = p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusParsing, service.ImportPatch{
		EmailsParsed: &parsed,
	})
	if err != nil {
		return result, err
	}

	slog.Info("Parse stage complete",
		"import_id", importID,
		"parsed", result.Parsed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"transactions", result.TransactionsCreated)

	return result, nil
}

// errNotRelevant marks mail the relevance pre-filter rejected.
var errNotRelevant = fmt.Errorf("not a bank alert")

// parseMessage extracts transactions from one message and persists them.
// Returns the number of transactions created.
func (p *Pipeline) parseMessage(ctx context.Context, msg *model.EmailMessage) (int, error) {
	email := &service.RawEmail{
		ProviderID:   msg.ProviderMessageID,
		Sender:       msg.Sender,
		Subject:      msg.Subject,
		Body:         msg.Body,
		AttachmentID: msg.AttachmentRef,
		ReceivedAt:   msg.ReceivedAt,
	}

	if !p.alerts.IsRelevant(email) {
		return 0, errNotRelevant
	}

	var parsed []model.ParsedTransaction

	if msg.HasAttachment() {
		data, err := p.mailbox.GetAttachment(ctx, msg.ProviderMessageID, msg.AttachmentRef)
		if err != nil {
			return 0, fmt.Errorf("attachment download failed: %w", err)
		}
		rows, rowErrors, err := p.statements.Parse(ctx, data, msg.Subject+"\n"+msg.Body)
		if err != nil {
			return 0, fmt.Errorf("statement parse failed: %w", err)
		}
		for _, rowErr := range rowErrors {
			slog.Warn("Skipped malformed statement row",
				"message_id", msg.ID,
				"error", rowErr)
		}
		parsed = rows
	} else {
		txn := p.alerts.Parse(email)
		if txn == nil {
			return 0, fmt.Errorf("no transaction could be extracted")
		}
		parsed = []model.ParsedTransaction{*txn}
	}

	if len(parsed) == 0 {
		return 0, fmt.Errorf("statement contained no transaction rows")
	}

	created := 0
	for _, row := range parsed {
		txn := &model.EmailTransaction{
			ID:            uuid.NewString(),
			MessageID:     msg.ID,
			Type:          row.Direction,
			AmountMinor:   row.AmountMinor,
			Description:   description(row),
			BankReference: row.BankReference,
			OccurredAt:    row.OccurredAt,
			Status:        model.TxStatusPending,
		}
		if err := p.storage.SaveEmailTransaction(ctx, txn); err != nil {
			return created, fmt.Errorf("storing transaction failed: %w", err)
		}
		created++
	}
	return created, nil
}

// description picks the text the matcher will score: the counterparty name
// when the alert names one, otherwise the whole narration.
func description(row model.ParsedTransaction) string {
	if row.Counterparty != "" {
		return row.Counterparty
	}
	return row.Narration
}

// setMessageStatus finalizes a message, folding update failures into the
// stage result.
func (p *Pipeline) setMessageStatus(ctx context.Context, id string, status model.MessageStatus, parseErr string, result *ParseResult) {
	if err := p.storage.UpdateMessageStatus(ctx, id, status, parseErr); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("message %s status update: %v", id, err))
	}
}
