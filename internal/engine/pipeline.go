// Package engine runs the batch resolution pipeline: canonicalize,
// partition by blocking key, resolve in parallel, then infer relationships.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ncboe-donors/internal/audit"
	"github.com/ncboe-donors/internal/household"
	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

// RawRecord is one donation row handed in by ingestion: a raw name string,
// raw address fields and a stable source identifier.
type RawRecord struct {
	SourceRef string
	Name      string
	Street    string
	City      string
	State     string
	Zip       string
	County    string
	Amount    decimal.Decimal
}

// Options tune a pipeline run.
type Options struct {
	// Workers bounds the number of blocks resolved concurrently.
	Workers int
	// CreateMissing controls step 3 of resolution. When false the run is
	// match-only: records with no alias or fuzzy hit stay unresolved
	// instead of minting new identities.
	CreateMissing bool
}

// Pipeline wires the canonicalizer, resolver and inferencer over one store.
type Pipeline struct {
	st         store.Store
	names      *normalize.NameParser
	addrs      *normalize.AddressParser
	keys       match.KeyGenerator
	resolver   *identity.Resolver
	inferencer *household.Inferencer
	opts       Options
	log        zerolog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(st store.Store, names *normalize.NameParser, addrs *normalize.AddressParser,
	keys match.KeyGenerator, resolver *identity.Resolver, inferencer *household.Inferencer,
	opts Options, log zerolog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Pipeline{
		st:         st,
		names:      names,
		addrs:      addrs,
		keys:       keys,
		resolver:   resolver,
		inferencer: inferencer,
		opts:       opts,
		log:        log,
	}
}

type canonicalRecord struct {
	raw    RawRecord
	person normalize.Person
	addr   normalize.Address
}

// Run resolves a bounded snapshot of records and recomputes relationships.
// Blocking partitions are mutually independent and processed in parallel;
// the unblocked bucket goes through alias lookup only. Per-record failures
// are collected on the tracker, never aborting the batch.
func (p *Pipeline) Run(ctx context.Context, records []RawRecord) (*audit.Summary, error) {
	tracker := audit.NewTracker()
	log := p.log.With().Str("run_id", tracker.RunID()).Logger()
	log.Info().Int("records", len(records)).Msg("resolution run started")

	blocks := make(map[string][]canonicalRecord)
	var unblocked []canonicalRecord
	for _, raw := range records {
		rec := canonicalRecord{
			raw:    raw,
			person: p.names.Parse(raw.Name),
			addr:   p.addrs.ParseWithCounty(raw.Street, raw.City, raw.State, raw.Zip, raw.County),
		}
		if key, ok := p.keys.Key(rec.person.Last, rec.addr.Zip, rec.person.First); ok {
			blocks[key] = append(blocks[key], rec)
		} else {
			unblocked = append(unblocked, rec)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, block := range blocks {
		block := block
		g.Go(func() error {
			for _, rec := range block {
				if err := p.resolveOne(gctx, rec, tracker); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("block resolution: %w", err)
	}

	// Unblocked records are eligible for alias lookup only; the matcher
	// skips pairwise comparison for them by construction.
	for _, rec := range unblocked {
		if err := p.resolveOne(ctx, rec, tracker); err != nil {
			return nil, fmt.Errorf("unblocked resolution: %w", err)
		}
	}

	if _, err := p.inferencer.InferSpouses(ctx); err != nil {
		return nil, err
	}
	if _, err := p.inferencer.BuildClusters(ctx); err != nil {
		return nil, err
	}

	summary := tracker.Summary()
	log.Info().
		Int("processed", summary.Processed).
		Int("resolved", summary.Resolved).
		Int("created", summary.Created).
		Int("unresolved", summary.Unresolved).
		Int("flagged", len(summary.Flags)).
		Int("failed", len(summary.Failures)).
		Msg("resolution run finished")
	return &summary, nil
}

// resolveOne resolves a single record. Only store errors propagate; parse
// and match outcomes land on the tracker.
func (p *Pipeline) resolveOne(ctx context.Context, rec canonicalRecord, tracker *audit.Tracker) error {
	var res *identity.Resolution
	var err error
	if p.opts.CreateMissing {
		res, err = p.resolver.Resolve(ctx, rec.person, rec.addr, rec.raw.Name, rec.raw.SourceRef)
	} else {
		res, err = p.resolver.Lookup(ctx, rec.person, rec.addr, rec.raw.Name, rec.raw.SourceRef)
	}
	if errors.Is(err, identity.ErrEmptyName) {
		tracker.Fail(rec.raw.SourceRef, rec.raw.Name, "name parsed to no fields")
		return nil
	}
	if err != nil {
		return err
	}
	if res == nil {
		tracker.Unresolved()
		return nil
	}

	if res.Ambiguous {
		tracker.Flag(audit.ReviewFlag{
			SourceRef: rec.raw.SourceRef,
			RawName:   rec.raw.Name,
			ChosenID:  res.MasterID,
			Runners:   res.Runners,
			Score:     res.Confidence,
		})
	}
	tracker.Resolved(res.Created)

	err = p.st.LinkDonation(ctx, store.DonationLink{
		SourceRef: rec.raw.SourceRef,
		MasterID:  res.MasterID,
		Amount:    rec.raw.Amount,
	})
	if err != nil {
		return fmt.Errorf("link donation %s: %w", rec.raw.SourceRef, err)
	}
	return nil
}
