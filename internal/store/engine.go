// Package store is the only component that writes to the destination.
// Writes are idempotent batched upserts keyed by external_id; a failing
// row is isolated and reported, never fatal to the run.
package store

import "fmt"

// RowError is one rejected row: its position in the pass, its upsert key
// and the destination's error message.
type RowError struct {
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d (%s): %s", e.Index, e.Key, e.Message)
}

// BatchResult aggregates row outcomes across the batches of one pass.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []RowError
}

const DefaultBatchSize = 50

// runBatches partitions [0,total) into fixed-size batches, submitted
// strictly in order. writeBatch persists one half-open range in a single
// statement; when it fails, every row in the range is retried alone via
// writeRow so the offending rows are isolated while the rest of the
// batch still lands.
func runBatches(
	total, batchSize int,
	writeBatch func(lo, hi int) error,
	writeRow func(i int) (key string, err error),
) BatchResult {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var res BatchResult
	for lo := 0; lo < total; lo += batchSize {
		hi := lo + batchSize
		if hi > total {
			hi = total
		}
		res.Attempted += hi - lo

		if err := writeBatch(lo, hi); err == nil {
			res.Succeeded += hi - lo
			continue
		}

		for i := lo; i < hi; i++ {
			key, err := writeRow(i)
			if err == nil {
				res.Succeeded++
				continue
			}
			res.Failed++
			res.Errors = append(res.Errors, RowError{Index: i, Key: key, Message: err.Error()})
		}
	}
	return res
}
