package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/areluna/finimport/internal/importer"
	"github.com/areluna/finimport/pkg/configuration"
)

func newImportXLSXCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import-xlsx",
		Short: "Import from a spreadsheet whose sheets hold clients, contracts and payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.input); err != nil {
				return withCode(exitUsage, fmt.Errorf("--input: %w", err))
			}
			set, err := importer.NewWorkbookSet(opts.input, configuration.Use().Logger())
			if err != nil {
				return withCode(exitValidation, err)
			}
			defer func() { _ = set.Close() }()
			return runImport(cmd.Context(), set, opts)
		},
	}

	opts.addFlags(cmd)
	return cmd
}
