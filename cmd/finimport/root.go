package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/areluna/finimport/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "finimport",
		Short:         "Financial record import and reconciliation tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newImportXLSXCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newVerifyCmd())
	return cmd
}

func Execute() {
	conf := configuration.Use()
	defer conf.Unload()

	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		conf.Unload()
		os.Exit(code)
	}
}
