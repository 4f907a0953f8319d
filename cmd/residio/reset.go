package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/config"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all email import data",
		Long: `Reset removes every import session, fetched email, and extracted
transaction.

Payments and expenses already created in the estate app are kept; the
transactions that produced them are unlinked before deletion, so nothing
dangles. This is a destructive operation intended for re-running history
from scratch.`,
		RunE: runReset,
	}

	cmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	actor := currentActor()
	if !config.NewRoleAuthorizer().CanAdminister(actor) {
		return fmt.Errorf("%w: %s may not reset import data", common.ErrUnauthorized, actor)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	imports, err := store.ListEmailImports(ctx, service.ImportFilter{})
	if err != nil {
		return fmt.Errorf("failed to count import sessions: %w", err)
	}
	if len(imports) == 0 {
		fmt.Println(cli.FormatInfo("No import sessions found. Nothing to reset."))
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Printf("This will delete %d import sessions and all their emails and transactions.\n", len(imports))
		reader := cli.NewNonBlockingReader(os.Stdin)
		confirmed, err := cli.Confirm(ctx, reader, "Are you sure you want to continue?")
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if !confirmed {
			fmt.Println("Reset canceled.")
			return nil
		}
	}

	stats, err := store.ResetEmailImports(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset import data: %w", err)
	}

	_ = store.AppendAudit(ctx, model.AuditEntry{
		Actor:      actor,
		Action:     "import.reset",
		EntityType: "email_import",
		EntityID:   "*",
		After:      fmt.Sprintf("deleted %d imports, %d messages, %d transactions", stats.Imports, stats.Messages, stats.Transactions),
	})

	fmt.Println(cli.RenderResetStats(stats))
	return nil
}
