package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/reconcile"
	"github.com/areluna/finimport/pkg/configuration"
)

func newReconcileCmd() *cobra.Command {
	var (
		status  string
		epsilon float64
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Cross-check the destination's payment sum against a client-side total",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := entity.PaymentStatuses[status]; !ok {
				return withCode(exitUsage, fmt.Errorf("unknown payment status %q", status))
			}

			ctx := cmd.Context()
			st, err := connectStore(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer st.Close()

			res, err := reconcile.Payments(ctx, st, status, decimal.NewFromFloat(epsilon), configuration.Use().Logger())
			if err != nil {
				return withCode(exitDB, err)
			}
			if err := writeJSONLine(res); err != nil {
				return err
			}
			if !res.Match {
				return withCode(exitMismatch, fmt.Errorf(
					"payment sums diverge by %s (store %s, client %s)",
					res.Difference, res.StoreSum, res.ClientSum))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "pending", "Payment status to reconcile")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0.01, "Largest sum difference still counted as a match")
	return cmd
}
