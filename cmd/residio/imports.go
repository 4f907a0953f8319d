package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/residio-ng/residio/internal/cli"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

func importsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List import sessions",
		RunE:  runImports,
	}

	cmd.Flags().String("status", "", "Filter by status (pending, fetching, parsing, matching, completed, failed)")
	cmd.Flags().Int("limit", 20, "Maximum sessions to show")

	return cmd
}

func runImports(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := service.ImportFilter{}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	if statusFlag, _ := cmd.Flags().GetString("status"); statusFlag != "" {
		status := model.ImportStatus(statusFlag)
		filter.Status = &status
	}

	imports, err := store.ListEmailImports(ctx, filter)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderImportList(imports))
	return nil
}
