package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

// ErrEmptyName is returned when a record's name parsed to nothing; such
// records stay unresolved rather than collapsing into a shared identity.
var ErrEmptyName = errors.New("identity: empty canonical name")

// Resolution is the outcome of resolving one record.
type Resolution struct {
	MasterID   string
	MatchType  string
	Confidence float64
	Created    bool
	Ambiguous  bool
	Runners    []string
}

// Resolver assigns a master identity to each canonicalized record:
// exact structural lookup, then the two matcher tiers, then creation under
// the configured id strategy. Re-resolving the same input never creates a
// second identity.
type Resolver struct {
	st    store.Store
	m     *match.Matcher
	keys  match.KeyGenerator
	idgen *IDGenerator
	log   zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(st store.Store, m *match.Matcher, keys match.KeyGenerator, idgen *IDGenerator, log zerolog.Logger) *Resolver {
	return &Resolver{st: st, m: m, keys: keys, idgen: idgen, log: log}
}

// Lookup runs steps 1 and 2 only: exact structural lookup on the canonical
// key, then the matcher tiers. Returns (nil, nil) when the record stays
// unresolved, a valid terminal state. A hit is recorded in the alias table.
func (r *Resolver) Lookup(ctx context.Context, person normalize.Person, addr normalize.Address, rawName, sourceRef string) (*Resolution, error) {
	if person.Last == "" && person.First == "" {
		return nil, ErrEmptyName
	}

	// Step 1: exact structural lookup on the canonical key. Empty suffix
	// matches empty suffix only.
	existing, err := r.st.FindIdentityByKey(ctx, person.Last, person.First, person.Suffix)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("canonical lookup: %w", err)
	}
	if existing != nil {
		res := &Resolution{MasterID: existing.ID, MatchType: match.TypeExact, Confidence: 1}
		return res, r.recordAlias(ctx, rawName, sourceRef, res)
	}

	// Step 2: matcher tiers 1 and 2.
	hit, err := r.m.Match(ctx, person, addr, rawName)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, nil
	}
	res := &Resolution{
		MasterID:   hit.MasterID,
		MatchType:  hit.MatchType,
		Confidence: hit.Confidence,
		Ambiguous:  hit.Ambiguous,
		Runners:    hit.Runners,
	}
	return res, r.recordAlias(ctx, rawName, sourceRef, res)
}

// Resolve assigns a master identity id to one record and records an alias
// for future tier-1 hits. The sourceRef identifies the raw row for audit.
func (r *Resolver) Resolve(ctx context.Context, person normalize.Person, addr normalize.Address, rawName, sourceRef string) (*Resolution, error) {
	res, err := r.Lookup(ctx, person, addr, rawName, sourceRef)
	if err != nil || res != nil {
		return res, err
	}

	// Step 3: create a fresh identity. The store enforces atomicity on the
	// canonical key; on conflict, re-read and adopt the winner.
	created, err := r.create(ctx, person, addr)
	if err != nil {
		return nil, err
	}
	res = &Resolution{
		MasterID:   created.ID,
		MatchType:  match.TypeNew,
		Confidence: 1,
		Created:    true,
	}
	return res, r.recordAlias(ctx, rawName, sourceRef, res)
}

func (r *Resolver) create(ctx context.Context, person normalize.Person, addr normalize.Address) (*store.MasterIdentity, error) {
	blockKey, _ := r.keys.Key(person.Last, addr.Zip, person.First)
	ident := store.MasterIdentity{
		ID:          r.idgen.NewID(person, addr),
		First:       person.First,
		Middle:      person.Middle,
		Last:        person.Last,
		Suffix:      person.Suffix,
		DisplayName: person.Display(),
		HouseNumber: addr.HouseNumber,
		Street:      addr.Street,
		City:        addr.City,
		State:       addr.State,
		Zip:         addr.Zip,
		County:      addr.County,
		BlockKey:    blockKey,
		CreatedAt:   time.Now().UTC(),
	}

	err := r.st.CreateIdentity(ctx, ident)
	if err == nil {
		r.log.Debug().Str("master_id", ident.ID).Str("name", ident.DisplayName).Msg("created identity")
		return &ident, nil
	}
	if !errors.Is(err, store.ErrIdentityExists) {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	// Lost the create race, or the hash strategy collided. Adopt the winner.
	winner, ferr := r.st.FindIdentityByKey(ctx, person.Last, person.First, person.Suffix)
	if ferr == nil {
		return winner, nil
	}
	if !errors.Is(ferr, store.ErrNotFound) {
		return nil, fmt.Errorf("re-read after create conflict: %w", ferr)
	}
	winner, ferr = r.st.GetIdentity(ctx, ident.ID)
	if ferr != nil {
		return nil, fmt.Errorf("create conflict on %s but no winner found: %w", ident.ID, ferr)
	}
	return winner, nil
}

func (r *Resolver) recordAlias(ctx context.Context, rawName, sourceRef string, res *Resolution) error {
	form := normalize.ComparisonForm(rawName)
	if form == "" {
		return nil
	}
	err := r.st.PutAlias(ctx, store.Alias{
		Form:       form,
		SourceRef:  sourceRef,
		MasterID:   res.MasterID,
		MatchType:  res.MatchType,
		Confidence: res.Confidence,
	})
	if err != nil {
		return fmt.Errorf("record alias: %w", err)
	}
	return nil
}
