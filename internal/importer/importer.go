// Package importer runs the ordered entity passes of one import:
// clients, then contracts, then payments. Parent passes commit before
// child passes resolve, so a child row can always link to a parent from
// the same run.
package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/mapper"
	"github.com/areluna/finimport/internal/report"
	"github.com/areluna/finimport/internal/resolver"
	"github.com/areluna/finimport/internal/source"
	"github.com/areluna/finimport/internal/store"
)

// SourceError marks a failure reading the input set, as opposed to a
// destination failure. The CLI maps the two to different exit codes.
type SourceError struct {
	Kind entity.Kind
	Err  error
}

func (e *SourceError) Error() string { return fmt.Sprintf("%s source: %v", e.Kind, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// Store is the destination surface the pipeline writes through.
type Store interface {
	resolver.Directory
	UpsertClients(ctx context.Context, clients []entity.Client, batchSize int) store.BatchResult
	UpsertContracts(ctx context.Context, contracts []entity.Contract, batchSize int) store.BatchResult
	UpsertPayments(ctx context.Context, payments []entity.Payment, batchSize int) store.BatchResult
}

// Options tune one run.
type Options struct {
	BatchSize int
	// DryRun maps and validates but never writes.
	DryRun bool
	// AllowNameMatch enables last-resort client resolution by name.
	AllowNameMatch bool
	// Kinds restricts the run to a subset of entity passes; empty means
	// all three. Order is always clients, contracts, payments.
	Kinds []entity.Kind
	// DefaultCountry substitutes an absent client country.
	DefaultCountry string
	// WarnLowDownPayment flags contracts with a down payment under 30%
	// of the total.
	WarnLowDownPayment bool
}

var passOrder = []entity.Kind{entity.KindClient, entity.KindContract, entity.KindPayment}

type Pipeline struct {
	store Store
	opts  Options
	log   *logrus.Logger
}

func New(st Store, opts Options, log *logrus.Logger) *Pipeline {
	return &Pipeline{store: st, opts: opts, log: log}
}

// Run executes the selected passes against one source set. Setup
// problems (unreadable source, failed index build) abort before any
// write; individual row failures only tally.
func (p *Pipeline) Run(ctx context.Context, src SourceSet) (report.RunSummary, error) {
	summary := report.RunSummary{DryRun: p.opts.DryRun}

	for _, kind := range passOrder {
		if !p.wants(kind) {
			continue
		}
		r, ok, err := src.Open(kind)
		if err != nil {
			return summary, &SourceError{Kind: kind, Err: err}
		}
		if !ok {
			p.log.WithField("entity", string(kind)).Info("no source data, pass skipped")
			continue
		}

		recs, err := source.ReadAll(r)
		cerr := r.Close()
		if err != nil {
			return summary, &SourceError{Kind: kind, Err: err}
		}
		if cerr != nil {
			return summary, &SourceError{Kind: kind, Err: cerr}
		}

		var pass report.PassSummary
		switch kind {
		case entity.KindClient:
			pass = p.runClients(ctx, recs)
		case entity.KindContract:
			pass, err = p.runContracts(ctx, recs)
		case entity.KindPayment:
			pass, err = p.runPayments(ctx, recs)
		}
		if err != nil {
			return summary, err
		}
		summary.Passes = append(summary.Passes, pass)
	}
	return summary, nil
}

func (p *Pipeline) wants(kind entity.Kind) bool {
	if len(p.opts.Kinds) == 0 {
		return true
	}
	for _, k := range p.opts.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (p *Pipeline) mapper() *mapper.Mapper {
	return mapper.New(mapper.Config{
		DefaultCountry:     p.opts.DefaultCountry,
		WarnLowDownPayment: p.opts.WarnLowDownPayment,
	}, p.log)
}

func (p *Pipeline) runClients(ctx context.Context, recs []source.Record) report.PassSummary {
	sum := report.PassSummary{Entity: string(entity.KindClient)}
	m := p.mapper()

	var clients []entity.Client
	for _, rec := range recs {
		sum.Read++
		c, ok := m.MapClient(rec)
		if !ok {
			sum.Skipped++
			p.log.WithField("line", rec.Line).Warn("client row has no usable name, skipped")
			continue
		}
		clients = append(clients, *c)
	}

	if p.opts.DryRun {
		sum.Attempted = len(clients)
		return sum
	}
	sum.Absorb(p.store.UpsertClients(ctx, clients, p.opts.BatchSize))
	return sum
}

func (p *Pipeline) runContracts(ctx context.Context, recs []source.Record) (report.PassSummary, error) {
	sum := report.PassSummary{Entity: string(entity.KindContract)}
	m := p.mapper()

	ix, err := resolver.BuildClientIndex(ctx, p.store, p.log)
	if err != nil {
		return sum, fmt.Errorf("build client index: %w", err)
	}
	ix.AllowNameMatch = p.opts.AllowNameMatch

	var contracts []entity.Contract
	for _, rec := range recs {
		sum.Read++
		c, ok := m.MapContract(rec)
		if !ok {
			sum.Skipped++
			p.log.WithField("line", rec.Line).Warn("contract row has no client link, skipped")
			continue
		}
		id, outcome := ix.Resolve(c.ClientRef)
		if !outcome.Resolved() {
			sum.Unresolved++
			p.log.WithFields(logrus.Fields{
				"line":      rec.Line,
				"client_id": c.ClientRef.SourceID,
				"name":      c.ClientRef.Name,
			}).Warn("contract client not found, row skipped")
			continue
		}
		c.ClientID = id
		contracts = append(contracts, *c)
	}

	if p.opts.DryRun {
		sum.Attempted = len(contracts)
		return sum, nil
	}
	sum.Absorb(p.store.UpsertContracts(ctx, contracts, p.opts.BatchSize))
	return sum, nil
}

func (p *Pipeline) runPayments(ctx context.Context, recs []source.Record) (report.PassSummary, error) {
	sum := report.PassSummary{Entity: string(entity.KindPayment)}
	m := p.mapper()

	ix, err := resolver.BuildContractIndex(ctx, p.store, p.log)
	if err != nil {
		return sum, fmt.Errorf("build contract index: %w", err)
	}

	var payments []entity.Payment
	for _, rec := range recs {
		sum.Read++
		pay, ok := m.MapPayment(rec)
		if !ok {
			sum.Skipped++
			p.log.WithField("line", rec.Line).Warn("payment row has no contract link, skipped")
			continue
		}
		id, outcome := ix.Resolve(pay.ContractRef)
		if !outcome.Resolved() {
			sum.Unresolved++
			p.log.WithFields(logrus.Fields{
				"line":        rec.Line,
				"contract_id": pay.ContractRef.SourceID,
			}).Warn("payment contract not found, row skipped")
			continue
		}
		pay.ContractID = id
		payments = append(payments, *pay)
	}

	if p.opts.DryRun {
		sum.Attempted = len(payments)
		return sum, nil
	}
	sum.Absorb(p.store.UpsertPayments(ctx, payments, p.opts.BatchSize))
	return sum, nil
}
