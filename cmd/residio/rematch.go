package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
)

func rematchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "Re-match unmatched transactions of an import",
		Long: `Run the matcher again over an import's unmatched transactions.

Useful after adding residents or aliases to the directory: rows that found
a match move to matched or needs-review; the rest stay unmatched.`,
		RunE: runRematch,
	}

	cmd.Flags().String("import", "", "Import session ID (required)")
	_ = cmd.MarkFlagRequired("import")

	return cmd
}

func runRematch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, cleanup, err := buildPipeline(ctx, pipelineNeeds{})
	if err != nil {
		return err
	}
	defer cleanup()

	importID, _ := cmd.Flags().GetString("import")

	stats, err := p.RematchUnmatched(ctx, importID)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Re-matched %d transactions: %d matched, %d need review, %d still unmatched",
		stats.Total(), stats.Matched, stats.NeedsReview, stats.Unmatched)))
	return nil
}
