package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// CheckPaymentEmails drives one full reconciliation session: fetch, parse,
// match, in sequence, each stage completing fully before the next starts.
// Processing runs separately so an operator can inspect matches first. The
// summary always carries per-stage counts, even when a stage fails.
func (p *Pipeline) CheckPaymentEmails(ctx context.Context, trigger model.ImportTrigger, createdBy string, opts FetchOptions) (Summary, error) {
	var summary Summary

	imp, err := p.CreateEmailImport(ctx, trigger, createdBy)
	if err != nil {
		summary.Message = "could not open an import session"
		return summary, err
	}

	fetch, err := p.FetchEmails(ctx, imp.ID, opts)
	summary.Details.Fetched = fetch.Fetched
	summary.Details.Duplicates = fetch.Duplicates
	if err != nil {
		summary.Message = fmt.Sprintf("fetch failed after %d emails: %v", fetch.Fetched, err)
		return summary, err
	}

	parse, err := p.ParseEmails(ctx, imp.ID)
	summary.Details.Parsed = parse.Parsed
	if err != nil {
		summary.Message = fmt.Sprintf("parsing failed after %d emails: %v", parse.Parsed, err)
		return summary, err
	}

	stats, err := p.MatchTransactions(ctx, imp.ID)
	summary.Details.Matched = stats.Matched
	summary.Details.NeedsReview = stats.NeedsReview + stats.Queued
	summary.Details.Unmatched = stats.Unmatched
	if err != nil {
		summary.Message = fmt.Sprintf("matching failed after %d transactions: %v", stats.Matched, err)
		return summary, err
	}

	if err := p.storage.UpdateEmailImportStatus(ctx, imp.ID, model.ImportStatusCompleted, service.ImportPatch{}); err != nil {
		summary.Message = "could not complete the import session"
		return summary, err
	}

	p.maybeNotifyReviewBacklog(ctx, imp.ID, stats)

	summary.Success = true
	summary.Message = fmt.Sprintf("import %s complete: %d fetched, %d parsed, %d matched",
		imp.ID, fetch.Fetched, parse.Parsed, stats.Matched)
	return summary, nil
}

// maybeNotifyReviewBacklog alerts admins when one run leaves more
// review-queue and unmatched items than the configured threshold.
func (p *Pipeline) maybeNotifyReviewBacklog(ctx context.Context, importID string, stats MatchStats) {
	if p.notifier == nil || p.cfg.ReviewAlertThreshold <= 0 {
		return
	}
	backlog := stats.NeedsReview + stats.Unmatched + stats.Queued
	if backlog < p.cfg.ReviewAlertThreshold {
		return
	}

	err := p.notifier.NotifyAdmins(ctx, "review_backlog", map[string]any{
		"import_id":    importID,
		"needs_review": stats.NeedsReview,
		"unmatched":    stats.Unmatched,
		"queued":       stats.Queued,
	})
	if err != nil {
		slog.Error("Failed to notify admins of review backlog",
			"import_id", importID,
			"error", err)
	}
}
