package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/store"
)

// MergeCandidate is a pair of distinct identities at the same residence
// whose names score above the review threshold: likely the same person
// fragmented across ids. Candidates feed manual review, never automatic
// merges.
type MergeCandidate struct {
	IDA         string
	IDB         string
	Score       float64
	Zip         string
	HouseNumber string
}

// FindMergeCandidates scans for fragmented identity clusters. Pair
// comparison is bounded by grouping on (ZIP, house number), the same
// residence signal the spouse heuristic uses.
func (p *Pipeline) FindMergeCandidates(ctx context.Context, threshold float64) ([]MergeCandidate, error) {
	identities, err := p.st.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	groups := make(map[string][]store.MasterIdentity)
	for _, ident := range identities {
		if ident.Zip == "" || ident.HouseNumber == "" {
			continue
		}
		key := ident.Zip + "|" + ident.HouseNumber
		groups[key] = append(groups[key], ident)
	}

	var candidates []MergeCandidate
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				score := match.JaroWinkler(fullName(a), fullName(b))
				if score < threshold {
					continue
				}
				candidates = append(candidates, MergeCandidate{
					IDA:         a.ID,
					IDB:         b.ID,
					Score:       score,
					Zip:         a.Zip,
					HouseNumber: a.HouseNumber,
				})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	p.log.Info().Int("candidates", len(candidates)).Msg("merge candidate scan complete")
	return candidates, nil
}

func fullName(id store.MasterIdentity) string {
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
