package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

// Match types recorded on aliases.
const (
	TypeExact = "exact"
	TypeAlias = "alias"
	TypeFuzzy = "fuzzy"
	TypeNew   = "new"
)

// Result is a matcher decision. A nil Result from Match means the record
// stays unresolved, which is a valid terminal state, not a failure.
type Result struct {
	MasterID   string
	MatchType  string
	Confidence float64
	Score      float64
	// Ambiguous marks a fuzzy decision where multiple candidates tied at
	// the top score; the tie broke to the lowest id and the record should
	// be flagged for review.
	Ambiguous bool
	Runners   []string // other ids at the tied top score
}

// Config holds the matcher thresholds and field-agreement switches.
type Config struct {
	// FuzzyThreshold is the minimum accepted tier-2 score. A score exactly
	// at the threshold is accepted.
	FuzzyThreshold float64
	// RequireCounty additionally requires county agreement (the
	// committee-matching variant).
	RequireCounty bool
}

// Matcher runs tier-1 alias lookup and tier-2 fuzzy comparison against the
// blocking-scoped candidate set.
type Matcher struct {
	st   store.Store
	keys KeyGenerator
	cfg  Config
}

// NewMatcher creates a matcher over a store.
func NewMatcher(st store.Store, keys KeyGenerator, cfg Config) *Matcher {
	return &Matcher{st: st, keys: keys, cfg: cfg}
}

// MatchAlias runs tier 1 only: exact lookup of the raw string's comparison
// form in the alias table. A hit takes precedence over any fuzzy result.
func (m *Matcher) MatchAlias(ctx context.Context, rawName string) (*Result, error) {
	form := normalize.ComparisonForm(rawName)
	if form == "" {
		return nil, nil
	}
	alias, err := m.st.LookupAlias(ctx, form)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alias lookup: %w", err)
	}
	return &Result{
		MasterID:   alias.MasterID,
		MatchType:  TypeAlias,
		Confidence: alias.Confidence,
		Score:      1,
	}, nil
}

// Match runs both tiers for a canonicalized record. Tier 2 compares the
// record's comparison-form name against every block member already resolved
// to a master identity, requires ZIP agreement, and accepts the highest
// score at or above the threshold. Ties break toward the lowest identity id
// and are flagged ambiguous.
func (m *Matcher) Match(ctx context.Context, person normalize.Person, addr normalize.Address, rawName string) (*Result, error) {
	if res, err := m.MatchAlias(ctx, rawName); err != nil || res != nil {
		return res, err
	}

	key, ok := m.keys.Key(person.Last, addr.Zip, person.First)
	if !ok {
		// Unblocked records are never pairwise compared.
		return nil, nil
	}
	if person.Full == "" {
		return nil, nil
	}

	candidates, err := m.st.IdentitiesByBlock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("block candidates: %w", err)
	}

	var best *Result
	for _, cand := range candidates {
		if cand.Zip == "" || cand.Zip != addr.Zip {
			continue
		}
		if m.cfg.RequireCounty && cand.County != addr.County {
			continue
		}
		score := JaroWinkler(person.Full, candFull(cand))
		if score < m.cfg.FuzzyThreshold {
			continue
		}
		switch {
		case best == nil || score > best.Score:
			best = &Result{
				MasterID:   cand.ID,
				MatchType:  TypeFuzzy,
				Confidence: score,
				Score:      score,
			}
		case score == best.Score:
			// IdentitiesByBlock returns candidates in ascending id order,
			// so best already holds the lowest tied id. The record is
			// flagged for review rather than silently dropped.
			best.Ambiguous = true
			best.Runners = append(best.Runners, cand.ID)
		}
	}
	return best, nil
}

func candFull(id store.MasterIdentity) string {
	full := id.First
	if id.Middle != "" {
		full += " " + id.Middle
	}
	if id.Last != "" {
		if full != "" {
			full += " "
		}
		full += id.Last
	}
	return full
}
