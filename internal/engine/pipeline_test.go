package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncboe-donors/internal/household"
	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

func newTestPipeline(t *testing.T, st store.Store, opts Options) *Pipeline {
	t.Helper()
	keys := match.NewKeyGenerator()
	m := match.NewMatcher(st, keys, match.Config{FuzzyThreshold: 0.88})
	idgen, err := identity.NewIDGenerator(identity.StrategyHash)
	require.NoError(t, err)
	resolver := identity.NewResolver(st, m, keys, idgen, zerolog.Nop())
	inferencer := household.NewInferencer(st, household.Config{}, zerolog.Nop())
	return NewPipeline(st, normalize.NewNameParser(), normalize.NewAddressParser(), keys, resolver, inferencer, opts, zerolog.Nop())
}

func sampleRecords() []RawRecord {
	return []RawRecord{
		{SourceRef: "r1", Name: "JOHN A SMITH", Street: "123 Main Street", City: "Raleigh", State: "NC", Zip: "27601", Amount: decimal.NewFromInt(100)},
		{SourceRef: "r2", Name: "MR JOHN ADAM SMITH", Street: "123 Main St", City: "Raleigh", State: "NC", Zip: "27601", Amount: decimal.NewFromInt(250)},
		{SourceRef: "r3", Name: "JANE B SMITH", Street: "123 Main St Apt 4", City: "Raleigh", State: "NC", Zip: "27601", Amount: decimal.NewFromInt(50)},
		{SourceRef: "r4", Name: "ROBERT JONES JR", Street: "789 Pine Rd", City: "Charlotte", State: "NC", Zip: "28202", Amount: decimal.NewFromInt(500)},
		{SourceRef: "r5", Name: "", Street: "1 Nowhere Ln", City: "Durham", State: "NC", Zip: "27701"},
	}
}

func TestRunResolvesAndInfersRelationships(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := newTestPipeline(t, st, Options{Workers: 2, CreateMissing: true})

	summary, err := p.Run(ctx, sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 4, summary.Resolved)
	assert.Len(t, summary.Failures, 1, "empty name is a per-record failure")

	// r1 and r2 share the canonical key (SMITH, JOHN, no suffix), so the
	// second resolves through the exact structural tier. Jane joins them
	// in the household.
	clusters, err := st.ListHouseholds(ctx)
	require.NoError(t, err)
	var mainSt *store.HouseholdCluster
	for i := range clusters {
		if clusters[i].Key == "123_27601" {
			mainSt = &clusters[i]
		}
	}
	require.NotNil(t, mainSt, "household for 123 Main St must exist")
	assert.GreaterOrEqual(t, mainSt.MemberCount, 2)
	assert.True(t, mainSt.TotalAmount.Equal(decimal.NewFromInt(400)), "total = %s", mainSt.TotalAmount)

	// John + Jane Smith at the same house: one spouse pair, stored once.
	pairs, err := st.ListSpousePairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Less(t, pairs[0].IDA, pairs[0].IDB)
	assert.InDelta(t, 0.95, pairs[0].Confidence, 1e-9)
}

func TestRunIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := newTestPipeline(t, st, Options{Workers: 4, CreateMissing: true})

	first, err := p.Run(ctx, sampleRecords())
	require.NoError(t, err)

	identitiesBefore, err := st.ListIdentities(ctx)
	require.NoError(t, err)

	second, err := p.Run(ctx, sampleRecords())
	require.NoError(t, err)

	identitiesAfter, err := st.ListIdentities(ctx)
	require.NoError(t, err)

	assert.Equal(t, len(identitiesBefore), len(identitiesAfter), "re-running must not create duplicates")
	assert.Equal(t, identitiesBefore, identitiesAfter)
	assert.Positive(t, first.Created)
	assert.Zero(t, second.Created, "second run resolves everything via lookup")
}

func TestRunMatchOnlyLeavesUnresolved(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := newTestPipeline(t, st, Options{Workers: 1, CreateMissing: false})

	summary, err := p.Run(ctx, []RawRecord{
		{SourceRef: "r1", Name: "NEVER SEEN", Street: "9 Oak St", City: "Raleigh", State: "NC", Zip: "27601"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Zero(t, summary.Created)

	identities, err := st.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestFindMergeCandidates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := newTestPipeline(t, st, Options{CreateMissing: true})

	// Two fragmented ids for what is plainly the same person at the same
	// residence, plus an unrelated housemate.
	require.NoError(t, st.CreateIdentity(ctx, store.MasterIdentity{
		ID: "MP_1", First: "KATHERINE", Last: "WYATT", HouseNumber: "44", Zip: "27609",
	}))
	require.NoError(t, st.CreateIdentity(ctx, store.MasterIdentity{
		ID: "MP_2", First: "KATHRYN", Last: "WYATT", Suffix: "PHD", HouseNumber: "44", Zip: "27609",
	}))
	require.NoError(t, st.CreateIdentity(ctx, store.MasterIdentity{
		ID: "MP_3", First: "DEREK", Last: "HOLLAND", HouseNumber: "44", Zip: "27609",
	}))

	candidates, err := p.FindMergeCandidates(ctx, 0.90)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "MP_1", candidates[0].IDA)
	assert.Equal(t, "MP_2", candidates[0].IDB)
	assert.GreaterOrEqual(t, candidates[0].Score, 0.90)
}
