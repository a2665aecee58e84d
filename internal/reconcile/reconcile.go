// Package reconcile cross-checks the destination's filtered aggregate
// against a client-side sum over the complete row set. The two disagree
// when a fetch was silently capped or rows changed mid-run; the check
// makes that visible instead of letting a dashboard report it first.
package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/store"
)

// DefaultEpsilon absorbs numeric-text round-tripping; anything above a
// cent is a real discrepancy.
var DefaultEpsilon = decimal.NewFromFloat(0.01)

// PaymentSource is the read surface the check needs.
type PaymentSource interface {
	SumPaymentsByStatus(ctx context.Context, status string) (decimal.Decimal, error)
	AllPayments(ctx context.Context) ([]store.PaymentRow, error)
}

// Result is one reconciliation verdict.
type Result struct {
	Status       string          `json:"status"`
	Match        bool            `json:"match"`
	StoreSum     decimal.Decimal `json:"store_sum"`
	ClientSum    decimal.Decimal `json:"client_sum"`
	Difference   decimal.Decimal `json:"difference"`
	RowsFetched  int             `json:"rows_fetched"`
	RowsMatching int             `json:"rows_matching"`
	Hint         string          `json:"hint,omitempty"`
}

// Payments compares the store-side SUM for one payment status with the
// sum computed locally over every fetched row. Differences within
// epsilon count as a match; a non-positive epsilon falls back to
// DefaultEpsilon.
func Payments(ctx context.Context, src PaymentSource, status string, epsilon decimal.Decimal, log *logrus.Logger) (Result, error) {
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	res := Result{Status: status}

	storeSum, err := src.SumPaymentsByStatus(ctx, status)
	if err != nil {
		return res, err
	}
	res.StoreSum = storeSum

	rows, err := src.AllPayments(ctx)
	if err != nil {
		return res, err
	}
	res.RowsFetched = len(rows)

	clientSum := decimal.Zero
	for _, r := range rows {
		if r.Status != status {
			continue
		}
		clientSum = clientSum.Add(r.Amount)
		res.RowsMatching++
	}
	res.ClientSum = clientSum
	res.Difference = storeSum.Sub(clientSum).Abs()
	res.Match = res.Difference.LessThanOrEqual(epsilon)

	if !res.Match && res.RowsFetched > 0 && res.RowsFetched%store.DefaultPageSize == 0 {
		res.Hint = "row count sits exactly on a page boundary; a capped fetch would look like this"
	}

	log.WithFields(logrus.Fields{
		"status":     status,
		"store_sum":  res.StoreSum.String(),
		"client_sum": res.ClientSum.String(),
		"rows":       res.RowsFetched,
		"match":      res.Match,
	}).Info("payments reconciled")
	return res, nil
}
