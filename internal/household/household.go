// Package household derives spouse pairs and household clusters from
// resolved identities and their canonical addresses.
package household

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ncboe-donors/internal/store"
)

// Key derives the deterministic household key: lower-cased concatenation of
// the normalized house number and five-digit ZIP. Unit designators and
// street spelling never affect it. Empty when either component is missing.
func Key(houseNumber, zip string) string {
	if houseNumber == "" || zip == "" {
		return ""
	}
	return strings.ToLower(houseNumber + "_" + zip)
}

// Config holds the inference weights.
type Config struct {
	// SpouseConfidence is the heuristic weight recorded on each inferred
	// pair. Address plus shared surname is one fixed signal, not a score.
	SpouseConfidence float64
}

// Inferencer recomputes spouse pairs and household clusters over the
// current identity set. Both passes are idempotent per run.
type Inferencer struct {
	st  store.Store
	cfg Config
	log zerolog.Logger
}

// NewInferencer creates an inferencer.
func NewInferencer(st store.Store, cfg Config, log zerolog.Logger) *Inferencer {
	if cfg.SpouseConfidence == 0 {
		cfg.SpouseConfidence = 0.95
	}
	return &Inferencer{st: st, cfg: cfg, log: log}
}

// InferSpouses detects spouse pairs: identities sharing ZIP and leading
// house-number token, with distinct ids and a matching final name token.
// Each pair is stored once, lower id first. Returns the number of pairs
// written.
func (inf *Inferencer) InferSpouses(ctx context.Context) (int, error) {
	identities, err := inf.st.ListIdentities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list identities: %w", err)
	}

	groups := make(map[string][]store.MasterIdentity)
	for _, ident := range identities {
		key := Key(ident.HouseNumber, ident.Zip)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], ident)
	}

	pairs := 0
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if a.ID == b.ID || !sameSurname(a, b) {
					continue
				}
				err := inf.st.PutSpousePair(ctx, store.SpousePair{
					IDA:          a.ID,
					IDB:          b.ID,
					HouseholdKey: key,
					Confidence:   inf.cfg.SpouseConfidence,
				})
				if err != nil {
					return pairs, fmt.Errorf("put spouse pair %s/%s: %w", a.ID, b.ID, err)
				}
				pairs++
			}
		}
	}

	inf.log.Info().Int("pairs", pairs).Msg("spouse inference complete")
	return pairs, nil
}

// BuildClusters recomputes household cluster summaries: member lists,
// counts and total donation amount per household key. Upserts by key, so
// re-running over the same snapshot converges.
func (inf *Inferencer) BuildClusters(ctx context.Context) (int, error) {
	identities, err := inf.st.ListIdentities(ctx)
	if err != nil {
		return 0, fmt.Errorf("list identities: %w", err)
	}
	donations, err := inf.st.ListDonations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list donations: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, d := range donations {
		totals[d.MasterID] = totals[d.MasterID].Add(d.Amount)
	}

	clusters := make(map[string]*store.HouseholdCluster)
	for _, ident := range identities {
		key := Key(ident.HouseNumber, ident.Zip)
		if key == "" {
			continue
		}
		cluster, ok := clusters[key]
		if !ok {
			cluster = &store.HouseholdCluster{Key: key}
			clusters[key] = cluster
		}
		cluster.Members = append(cluster.Members, ident.ID)
		cluster.TotalAmount = cluster.TotalAmount.Add(totals[ident.ID])
	}

	for _, cluster := range clusters {
		cluster.MemberCount = len(cluster.Members)
		cluster.UpdatedAt = time.Now().UTC()
		if err := inf.st.UpsertHousehold(ctx, *cluster); err != nil {
			return 0, fmt.Errorf("upsert household %s: %w", cluster.Key, err)
		}
	}

	inf.log.Info().Int("clusters", len(clusters)).Msg("household clustering complete")
	return len(clusters), nil
}

// sameSurname compares the final whitespace-delimited token of each full
// name in uppercase comparison form.
func sameSurname(a, b store.MasterIdentity) bool {
	sa := lastToken(a)
	sb := lastToken(b)
	return sa != "" && sa == sb
}

func lastToken(id store.MasterIdentity) string {
	full := strings.TrimSpace(id.First + " " + id.Middle + " " + id.Last)
	fields := strings.Fields(strings.ToUpper(full))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
