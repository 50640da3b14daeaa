package identity

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

func newTestResolver(t *testing.T, st store.Store, strategy string) *Resolver {
	t.Helper()
	keys := match.NewKeyGenerator()
	m := match.NewMatcher(st, keys, match.Config{FuzzyThreshold: 0.88})
	idgen, err := NewIDGenerator(strategy)
	require.NoError(t, err)
	return NewResolver(st, m, keys, idgen, zerolog.Nop())
}

func parseRecord(name, street, city, state, zip string) (normalize.Person, normalize.Address) {
	return normalize.NewNameParser().Parse(name), normalize.NewAddressParser().Parse(street, city, state, zip)
}

func TestResolveCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newTestResolver(t, st, StrategyRandom)

	person, addr := parseRecord("John Smith", "123 Main St", "Raleigh", "NC", "27601")

	first, err := r.Resolve(ctx, person, addr, "John Smith", "row-1")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, match.TypeNew, first.MatchType)

	// Same input again: exact structural hit, never a second identity.
	second, err := r.Resolve(ctx, person, addr, "John Smith", "row-2")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.MasterID, second.MasterID)
	assert.Equal(t, match.TypeExact, second.MatchType)

	identities, err := st.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, identities, 1)
}

func TestResolveAliasVariant(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newTestResolver(t, st, StrategyRandom)

	person, addr := parseRecord("Robert Jones", "789 Pine Rd", "Charlotte", "NC", "28202")
	created, err := r.Resolve(ctx, person, addr, "Robert Jones", "row-1")
	require.NoError(t, err)

	// A reviewed nickname alias pointing to the same person.
	require.NoError(t, st.PutAlias(ctx, store.Alias{
		Form:       "BOB JONES",
		SourceRef:  "review-1",
		MasterID:   created.MasterID,
		MatchType:  match.TypeAlias,
		Confidence: 0.9,
	}))

	// "Bob" would never clear the fuzzy threshold against "Robert"; the
	// alias tier resolves it.
	person2, addr2 := parseRecord("Bob Jones", "789 Pine Rd", "Charlotte", "NC", "28202")
	res, err := r.Resolve(ctx, person2, addr2, "Bob Jones", "row-2")
	require.NoError(t, err)
	assert.Equal(t, created.MasterID, res.MasterID)
	assert.Equal(t, match.TypeAlias, res.MatchType)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
}

func TestResolveFuzzyVariant(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newTestResolver(t, st, StrategyRandom)

	person, addr := parseRecord("Jonathan Smithfield", "12 Elm St", "Durham", "NC", "27701")
	created, err := r.Resolve(ctx, person, addr, "Jonathan Smithfield", "row-1")
	require.NoError(t, err)

	// A close spelling in the same block and ZIP resolves via tier 2.
	person2, addr2 := parseRecord("Jonathon Smithfield", "12 Elm St", "Durham", "NC", "27701")
	res, err := r.Resolve(ctx, person2, addr2, "Jonathon Smithfield", "row-2")
	require.NoError(t, err)
	assert.Equal(t, created.MasterID, res.MasterID)
	assert.Equal(t, match.TypeFuzzy, res.MatchType)
	assert.GreaterOrEqual(t, res.Confidence, 0.88)

	// The fuzzy hit became an alias: the same raw string now resolves in
	// tier 1 without recomputation.
	alias, err := st.LookupAlias(ctx, "JONATHON SMITHFIELD")
	require.NoError(t, err)
	assert.Equal(t, created.MasterID, alias.MasterID)
}

func TestResolveEmptyName(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newTestResolver(t, st, StrategyRandom)

	person, addr := parseRecord("", "123 Main St", "Raleigh", "NC", "27601")
	_, err := r.Resolve(ctx, person, addr, "", "row-1")
	assert.ErrorIs(t, err, ErrEmptyName)

	identities, err := st.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestDeterministicHashStrategy(t *testing.T) {
	person, addr := parseRecord("James Pope", "200 Oak Ave", "Raleigh", "NC", "27601")

	gen, err := NewIDGenerator(StrategyHash)
	require.NoError(t, err)

	id1 := gen.NewID(person, addr)
	id2 := gen.NewID(person, addr)
	assert.Equal(t, id1, id2)
	assert.Regexp(t, `^MP_[0-9A-F]{12}$`, id1)

	// Independent stores reproduce the same id for identical input.
	ctx := context.Background()
	var ids []string
	for i := 0; i < 2; i++ {
		st := store.NewMemoryStore()
		r := newTestResolver(t, st, StrategyHash)
		res, err := r.Resolve(ctx, person, addr, "James Pope", "row-1")
		require.NoError(t, err)
		ids = append(ids, res.MasterID)
	}
	assert.Equal(t, ids[0], ids[1])
}

func TestCreateRaceAdoptsWinner(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := newTestResolver(t, st, StrategyRandom)

	person, addr := parseRecord("Jane Doe", "5 Birch Ln", "Raleigh", "NC", "27601")

	// Simulate the losing side of a create race: the canonical key is
	// taken between lookup and create.
	winner := store.MasterIdentity{
		ID: "MP_WINNER", First: person.First, Last: person.Last, Suffix: person.Suffix,
		Zip: addr.Zip,
	}
	require.NoError(t, st.CreateIdentity(ctx, winner))

	got, err := r.create(ctx, person, addr)
	require.NoError(t, err)
	assert.Equal(t, "MP_WINNER", got.ID)
}

func TestUnknownStrategyRejected(t *testing.T) {
	_, err := NewIDGenerator("sequential")
	assert.Error(t, err)
}
