package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the manual review queue",
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewApproveCmd())
	cmd.AddCommand(reviewSkipCmd())

	return cmd
}

func reviewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions awaiting a decision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			p, cleanup, err := buildPipeline(ctx, pipelineNeeds{})
			if err != nil {
				return err
			}
			defer cleanup()

			importID, _ := cmd.Flags().GetString("import")
			queue, err := p.GetReviewQueue(ctx, importID)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderReviewQueue(queue))
			return nil
		},
	}

	cmd.Flags().String("import", "", "Limit to one import session")

	return cmd
}

func reviewApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <transaction-id>",
		Short: "Assign a transaction to a resident or expense category",
		Long: `Approve one review-queue transaction.

Credits take a resident ID (--resident); debits take an expense category ID
(--category). Approved rows become eligible for 'residio process'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, cleanup, err := buildPipeline(ctx, pipelineNeeds{})
			if err != nil {
				return err
			}
			defer cleanup()

			residentID, _ := cmd.Flags().GetString("resident")
			categoryID, _ := cmd.Flags().GetString("category")

			assignee := residentID
			if assignee == "" {
				assignee = categoryID
			}
			if assignee == "" {
				return fmt.Errorf("one of --resident or --category is required")
			}

			if err := p.ApproveTransaction(ctx, args[0], assignee, currentActor()); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Transaction approved."))
			return nil
		},
	}

	cmd.Flags().String("resident", "", "Resident ID for a credit")
	cmd.Flags().String("category", "", "Expense category ID for a debit")

	return cmd
}

func reviewSkipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip <transaction-id>",
		Short: "Ignore a transaction permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, cleanup, err := buildPipeline(ctx, pipelineNeeds{})
			if err != nil {
				return err
			}
			defer cleanup()

			reason, _ := cmd.Flags().GetString("reason")
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}

			if err := p.SkipTransaction(ctx, args[0], reason, currentActor()); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Transaction skipped."))
			return nil
		},
	}

	cmd.Flags().String("reason", "", "Why this transaction is being ignored (required)")

	return cmd
}
