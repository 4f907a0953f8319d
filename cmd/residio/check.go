package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/pipeline"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch, parse, and match payment emails",
		Long: `Check the estate mailbox for new bank alert emails.

Runs one full import session: fetch new emails, parse them into
transactions, and match transactions to residents. Confident matches are
left ready for 'residio process'; everything else lands in the review
queue.`,
		RunE: runCheck,
	}

	cmd.Flags().Int("since-days", 0, "Mailbox lookback window in days (default from config)")
	cmd.Flags().Int("max-emails", 0, "Maximum emails to fetch in this run")

	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, cleanup, err := buildPipeline(ctx, pipelineNeeds{mailbox: true})
	if err != nil {
		return err
	}
	defer cleanup()

	sinceDays, _ := cmd.Flags().GetInt("since-days")
	maxEmails, _ := cmd.Flags().GetInt("max-emails")

	var bar *progressbar.ProgressBar
	opts := pipeline.FetchOptions{
		SinceDays: sinceDays,
		MaxEmails: maxEmails,
		Progress: func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionEnableColorCodes(true),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("[cyan][bold]Fetching emails...[reset]"),
					progressbar.OptionOnCompletion(func() {
						if _, err := fmt.Fprintln(os.Stderr); err != nil {
							slog.Warn("Failed to write newline after progress bar", "error", err)
						}
					}),
				)
			}
			if err := bar.Set(done); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		},
	}

	summary, err := p.CheckPaymentEmails(ctx, model.TriggerManual, currentActor(), opts)
	fmt.Println(cli.RenderSummary(summary))
	return err
}
