package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// FetchOptions bounds one fetch so interactive invocations stay fast.
type FetchOptions struct {
	// Progress, when set, is called after each message download.
	Progress  func(done, total int)
	SinceDays int
	MaxEmails int
}

// FetchEmails lists candidate bank emails from the mailbox and stores them
// as pending messages under the import. Refetching a window is idempotent:
// messages already seen (by provider message ID) are counted as duplicates
// and not stored again.
func (p *Pipeline) FetchEmails(ctx context.Context, importID string, opts FetchOptions) (FetchResult, error) {
	var result FetchResult

	if opts.SinceDays <= 0 {
		opts.SinceDays = p.cfg.DefaultSinceDays
	}
	if opts.MaxEmails <= 0 {
		opts.MaxEmails = p.cfg.DefaultMaxEmails
	}

	if err := p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusFetching, service.ImportPatch{}); err != nil {
		return result, err
	}

	refs, err := p.mailbox.ListMessagesByCriteria(ctx, service.ListCriteria{
		SinceDays:  opts.SinceDays,
		MaxResults: opts.MaxEmails,
	})
	if err != nil {
		p.failImport(ctx, importID, fmt.Errorf("mailbox listing failed: %w", err))
		return result, fmt.Errorf("failed to list mailbox messages: %w", err)
	}

	slog.Info("Listed candidate emails",
		"import_id", importID,
		"candidates", len(refs),
		"since_days", opts.SinceDays)

	for i, ref := range refs {
		email, err := p.mailbox.GetMessage(ctx, ref.ProviderMessageID)
		if err != nil {
			// One undownloadable message must not abort the batch.
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", ref.ProviderMessageID, err))
			continue
		}

		msg := &model.EmailMessage{
			ID:                uuid.NewString(),
			ImportID:          importID,
			ProviderMessageID: email.ProviderID,
			Sender:            email.Sender,
			Subject:           email.Subject,
			Body:              email.Body,
			AttachmentRef:     email.AttachmentID,
			Status:            model.MessageStatusPending,
			ReceivedAt:        email.ReceivedAt,
		}

		inserted, err := p.storage.SaveEmailMessage(ctx, msg)
		if err != nil {
			p.failImport(ctx, importID, fmt.Errorf("storing message failed: %w", err))
			return result, fmt.Errorf("failed to store message %s: %w", email.ProviderID, err)
		}
		if inserted {
			result.Fetched++
		} else {
			result.Duplicates++
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(refs))
		}
	}

	fetched := result.Fetched
	err = p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusFetching, service.ImportPatch{
		EmailsFetched: &fetched,
	})
	if err != nil {
		return result, err
	}

	p.audit(ctx, "", "import.fetch", "email_import", importID, "",
		fmt.Sprintf("fetched=%d duplicates=%d", result.Fetched, result.Duplicates))

	slog.Info("Fetch stage complete",
		"import_id", importID,
		"fetched", result.Fetched,
		"duplicates", result.Duplicates,
		"errors", len(result.Errors))

	return result, nil
}
