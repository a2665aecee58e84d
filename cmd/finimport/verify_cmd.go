package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type verifySummary struct {
	Counts          map[string]int64 `json:"counts"`
	OrphanContracts int64            `json:"orphan_contracts"`
	OrphanPayments  int64            `json:"orphan_payments"`
	OK              bool             `json:"ok"`
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check referential integrity and report per-table row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := connectStore(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer st.Close()

			counts, err := st.TableCounts(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			orphanContracts, orphanPayments, err := st.OrphanCounts(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}

			s := verifySummary{
				Counts:          counts,
				OrphanContracts: orphanContracts,
				OrphanPayments:  orphanPayments,
				OK:              orphanContracts == 0 && orphanPayments == 0,
			}
			if err := writeJSONLine(s); err != nil {
				return err
			}
			if !s.OK {
				return withCode(exitValidation, fmt.Errorf(
					"integrity check failed: %d orphan contracts, %d orphan payments",
					orphanContracts, orphanPayments))
			}
			return nil
		},
	}
}
