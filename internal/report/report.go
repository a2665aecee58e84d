// Package report aggregates per-pass counters into the run summary the
// CLI prints and emits as JSON.
package report

import (
	"fmt"
	"io"

	"github.com/areluna/finimport/internal/store"
)

// MaxSampleErrors caps the row errors carried per pass; the full stream
// goes to the log, the summary keeps a sample.
const MaxSampleErrors = 10

// PassSummary is the outcome of one entity-type pass.
type PassSummary struct {
	Entity     string           `json:"entity"`
	Read       int              `json:"read"`
	Skipped    int              `json:"skipped"`
	Unresolved int              `json:"unresolved"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Errors     []store.RowError `json:"errors,omitempty"`
}

// Absorb folds a batch result into the pass counters, sampling errors.
func (s *PassSummary) Absorb(res store.BatchResult) {
	s.Attempted += res.Attempted
	s.Succeeded += res.Succeeded
	s.Failed += res.Failed
	for _, e := range res.Errors {
		if len(s.Errors) >= MaxSampleErrors {
			break
		}
		s.Errors = append(s.Errors, e)
	}
}

// Clean reports whether every read row landed.
func (s PassSummary) Clean() bool {
	return s.Failed == 0 && s.Unresolved == 0
}

// RunSummary is the outcome of a whole import run.
type RunSummary struct {
	RunID  string        `json:"run_id,omitempty"`
	DryRun bool          `json:"dry_run"`
	Passes []PassSummary `json:"passes"`
}

func (r RunSummary) Clean() bool {
	for _, p := range r.Passes {
		if !p.Clean() {
			return false
		}
	}
	return true
}

// Render writes the human-readable summary.
func (r RunSummary) Render(w io.Writer) {
	if r.DryRun {
		fmt.Fprintln(w, "dry run: nothing was written")
	}
	for _, p := range r.Passes {
		fmt.Fprintf(w, "%s: read=%d skipped=%d unresolved=%d succeeded=%d failed=%d\n",
			p.Entity, p.Read, p.Skipped, p.Unresolved, p.Succeeded, p.Failed)
		for _, e := range p.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
