package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/residio-ng/residio/internal/match"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// MatchTransactions runs the resident matcher over the import's pending
// transactions. Credits route by confidence: high auto-matches, medium and
// low go to review with the best guess kept, none lands unmatched. Debits
// always queue for expense categorization and are never auto-matched to a
// resident. Re-running against an import with no pending rows is a no-op.
func (p *Pipeline) MatchTransactions(ctx context.Context, importID string) (MatchStats, error) {
	var stats MatchStats

	pending, err := p.storage.GetTransactionsByStatus(ctx, importID, model.TxStatusPending)
	if err != nil {
		return stats, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	// Nothing pending: a re-run against an already-matched (or completed)
	// import reports zero counts without touching the session status.
	if len(pending) == 0 {
		return stats, nil
	}

	if err := p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusMatching, service.ImportPatch{}); err != nil {
		return stats, err
	}

	matcher, err := p.newMatcher(ctx)
	if err != nil {
		p.failImport(ctx, importID, err)
		return stats, err
	}

	for i := range pending {
		if err := p.matchOne(ctx, matcher, &pending[i], &stats); err != nil {
			p.failImport(ctx, importID, err)
			return stats, err
		}
	}

	matched := stats.Matched
	err = p.storage.UpdateEmailImportStatus(ctx, importID, model.ImportStatusMatching, service.ImportPatch{
		EmailsMatched: &matched,
	})
	if err != nil {
		return stats, err
	}

	slog.Info("Match stage complete",
		"import_id", importID,
		"matched", stats.Matched,
		"needs_review", stats.NeedsReview,
		"unmatched", stats.Unmatched,
		"queued", stats.Queued)

	return stats, nil
}

// RematchUnmatched re-runs the matcher over rows that previously matched
// nothing. Separate from the default matching pass: it is invoked
// explicitly after the alias directory improves.
func (p *Pipeline) RematchUnmatched(ctx context.Context, importID string) (MatchStats, error) {
	var stats MatchStats

	unmatched, err := p.storage.GetTransactionsByStatus(ctx, importID, model.TxStatusUnmatched)
	if err != nil {
		return stats, fmt.Errorf("failed to load unmatched transactions: %w", err)
	}
	if len(unmatched) == 0 {
		return stats, nil
	}

	matcher, err := p.newMatcher(ctx)
	if err != nil {
		return stats, err
	}

	for i := range unmatched {
		txn := &unmatched[i]
		result := matcher.Match(txn.Description, txn.AmountMinor)
		status := creditStatus(result.Confidence)
		if status == model.TxStatusUnmatched {
			// Still nothing; leave the row as-is.
			stats.Unmatched++
			continue
		}
		if err := p.storage.UpdateTransactionMatch(ctx, txn.ID, status, result); err != nil {
			return stats, fmt.Errorf("failed to re-match transaction %s: %w", txn.ID, err)
		}
		bump(&stats, status)
	}

	slog.Info("Re-match complete",
		"import_id", importID,
		"matched", stats.Matched,
		"needs_review", stats.NeedsReview,
		"still_unmatched", stats.Unmatched)

	return stats, nil
}

// newMatcher builds a matcher over the current directory snapshot.
func (p *Pipeline) newMatcher(ctx context.Context) (*match.Matcher, error) {
	directory, err := p.storage.GetResidentDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resident directory: %w", err)
	}
	return match.New(directory, p.cfg.Matching), nil
}

func (p *Pipeline) matchOne(ctx context.Context, matcher *match.Matcher, txn *model.EmailTransaction, stats *MatchStats) error {
	if txn.Type == model.TypeDebit {
		err := p.storage.UpdateTransactionMatch(ctx, txn.ID, model.TxStatusQueuedForReview, model.MatchResult{
			Confidence: model.ConfidenceNone,
			Method:     model.MethodNone,
		})
		if err != nil {
			return fmt.Errorf("failed to queue debit %s: %w", txn.ID, err)
		}
		stats.Queued++
		return nil
	}

	result := matcher.Match(txn.Description, txn.AmountMinor)
	status := creditStatus(result.Confidence)
	if err := p.storage.UpdateTransactionMatch(ctx, txn.ID, status, result); err != nil {
		return fmt.Errorf("failed to record match for %s: %w", txn.ID, err)
	}
	bump(stats, status)
	return nil
}

// creditStatus maps a confidence tier to the credit-row status.
func creditStatus(confidence model.MatchConfidence) model.TransactionStatus {
	switch confidence {
	case model.ConfidenceHigh:
		return model.TxStatusMatched
	case model.ConfidenceMedium, model.ConfidenceLow:
		return model.TxStatusNeedsReview
	default:
		return model.TxStatusUnmatched
	}
}

func bump(stats *MatchStats, status model.TransactionStatus) {
	switch status {
	case model.TxStatusMatched:
		stats.Matched++
	case model.TxStatusNeedsReview:
		stats.NeedsReview++
	case model.TxStatusUnmatched:
		stats.Unmatched++
	case model.TxStatusQueuedForReview:
		stats.Queued++
	}
}
