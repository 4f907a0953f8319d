package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Convert matched transactions into payments and expenses",
		Long: `Convert the confident matches of an import session.

Matched credits become wallet-crediting payments; categorized debits become
expense records. Each transaction converts at most once, so rerunning after
a partial failure only picks up the rows that failed.`,
		RunE: runProcess,
	}

	cmd.Flags().String("import", "", "Import session ID (required)")
	_ = cmd.MarkFlagRequired("import")

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, cleanup, err := buildPipeline(ctx, pipelineNeeds{billing: true})
	if err != nil {
		return err
	}
	defer cleanup()

	importID, _ := cmd.Flags().GetString("import")

	result, err := p.ProcessTransactions(ctx, importID, currentActor())
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderProcessResult(result))
	return nil
}
