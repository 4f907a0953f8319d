package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/pipeline"
	"github.com/residio-ng/residio/internal/service"
)

// RenderReviewQueue renders the transactions awaiting a manual decision.
func RenderReviewQueue(txns []model.EmailTransaction) string {
	if len(txns) == 0 {
		return FormatSuccess("Review queue is empty — nothing needs attention.")
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Review Queue (%d)", len(txns))))
	b.WriteString("\n")

	header := TableHeaderStyle.Render(
		pad("ID", 38) + pad("TYPE", 8) + pad("AMOUNT", 16) + pad("STATUS", 19) + "DESCRIPTION")
	b.WriteString(header + "\n")

	for i := range txns {
		txn := &txns[i]
		row := pad(txn.ID, 38) +
			pad(string(txn.Type), 8) +
			pad(model.FormatAmountMinor(txn.AmountMinor), 16) +
			pad(string(txn.Status), 19) +
			truncate(txn.Description, 44)
		b.WriteString(TableCellStyle.Render(row) + "\n")

		for _, cand := range txn.MatchCandidates {
			hint := fmt.Sprintf("    candidate: %s (%s, %.2f)", cand.FullName, cand.Method, cand.Score)
			b.WriteString(SubtleStyle.Render(hint) + "\n")
		}
	}

	return b.String()
}

// RenderImportList renders past import sessions, newest first.
func RenderImportList(imports []model.EmailImport) string {
	if len(imports) == 0 {
		return FormatInfo("No import sessions yet.")
	}

	var b strings.Builder
	b.WriteString(FormatTitle("Import Sessions"))
	b.WriteString("\n")

	header := TableHeaderStyle.Render(
		pad("ID", 38) + pad("STATUS", 11) + pad("TRIGGER", 11) + pad("FETCHED", 9) + pad("PARSED", 8) + pad("MATCHED", 9) + "STARTED")
	b.WriteString(header + "\n")

	for i := range imports {
		imp := &imports[i]
		row := pad(imp.ID, 38) +
			pad(string(imp.Status), 11) +
			pad(string(imp.Trigger), 11) +
			pad(fmt.Sprintf("%d", imp.EmailsFetched), 9) +
			pad(fmt.Sprintf("%d", imp.EmailsParsed), 8) +
			pad(fmt.Sprintf("%d", imp.EmailsMatched), 9) +
			imp.CreatedAt.Format("2006-01-02 15:04")
		b.WriteString(TableCellStyle.Render(row) + "\n")
		if imp.Error != "" {
			b.WriteString(ErrorStyle.Render("    error: "+imp.Error) + "\n")
		}
	}

	return b.String()
}

// RenderSummary renders the outcome of a check run.
func RenderSummary(summary pipeline.Summary) string {
	lines := []string{
		fmt.Sprintf("Fetched: %d new, %d duplicates skipped", summary.Details.Fetched, summary.Details.Duplicates),
		fmt.Sprintf("Parsed:  %d transactions", summary.Details.Parsed),
		fmt.Sprintf("Matched: %d auto, %d need review, %d unmatched", summary.Details.Matched, summary.Details.NeedsReview, summary.Details.Unmatched),
	}

	status := FormatSuccess(summary.Message)
	if !summary.Success {
		status = FormatError(summary.Message)
	}

	return RenderBox(MailIcon+" Payment Email Check", lipgloss.JoinVertical(
		lipgloss.Left,
		status,
		strings.Join(lines, "\n"),
	))
}

// RenderProcessResult renders what a processing run converted.
func RenderProcessResult(result pipeline.ProcessResult) string {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("%s Created %d payments and %d expenses", MoneyIcon, result.AutoProcessed, result.ExpensesCreated)))
	for _, e := range result.Errors {
		b.WriteString("\n" + FormatError(e))
	}
	return b.String()
}

// RenderResetStats renders what a reset removed.
func RenderResetStats(stats service.ResetStats) string {
	return RenderBox("Reset Complete", strings.Join([]string{
		fmt.Sprintf("Imports deleted:      %d", stats.Imports),
		fmt.Sprintf("Messages deleted:     %d", stats.Messages),
		fmt.Sprintf("Transactions deleted: %d", stats.Transactions),
		fmt.Sprintf("Payments unlinked:    %d", stats.PaymentsUnlinked),
	}, "\n"))
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width-1] + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}
