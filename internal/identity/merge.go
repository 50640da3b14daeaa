package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ncboe-donors/internal/store"
)

// Merge errors.
var (
	// ErrMergeCycle rejects a merge that would close a loop in the merge
	// graph. No partial rewrite is applied for the cyclic chain.
	ErrMergeCycle = errors.New("identity: merge would create a cycle")

	// ErrSelfMerge rejects merging an identity into itself.
	ErrSelfMerge = errors.New("identity: cannot merge identity into itself")
)

// Merger unifies identities discovered to be duplicates after the fact.
// Input is externally verified (manual review); the merge log is append-only
// and superseded identity rows are retained for audit.
type Merger struct {
	st  store.Store
	log zerolog.Logger
}

// NewMerger creates a merger over a store.
func NewMerger(st store.Store, log zerolog.Logger) *Merger {
	return &Merger{st: st, log: log}
}

// CurrentID chases the merge chain from id to its fixed point: an id that
// is never itself the source of a merge. A loop in the stored chain returns
// ErrMergeCycle.
func (m *Merger) CurrentID(ctx context.Context, id string) (string, error) {
	visited := map[string]bool{id: true}
	current := id
	for {
		rec, err := m.st.GetMerge(ctx, current)
		if errors.Is(err, store.ErrNotFound) {
			return current, nil
		}
		if err != nil {
			return "", fmt.Errorf("merge chain for %s: %w", id, err)
		}
		if visited[rec.NewID] {
			return "", fmt.Errorf("%w: chain through %s revisits %s", ErrMergeCycle, id, rec.NewID)
		}
		visited[rec.NewID] = true
		current = rec.NewID
	}
}

// Merge records that oldID and newID are the same person, repointing every
// reference held by aliases, donation links, spouse pairs and cluster
// members to the chain-resolved current id. A merge that would close a
// cycle is rejected outright with no writes; unrelated chains are
// unaffected.
func (m *Merger) Merge(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return ErrSelfMerge
	}
	if _, err := m.st.GetIdentity(ctx, oldID); err != nil {
		return fmt.Errorf("merge source %s: %w", oldID, err)
	}
	if _, err := m.st.GetIdentity(ctx, newID); err != nil {
		return fmt.Errorf("merge target %s: %w", newID, err)
	}

	// Walk from the target before writing anything: if the chain leads back
	// to the source, this merge would close a loop.
	target, err := m.CurrentID(ctx, newID)
	if err != nil {
		return err
	}
	if target == oldID {
		return fmt.Errorf("%w: %s -> %s", ErrMergeCycle, oldID, newID)
	}

	err = m.st.AppendMerge(ctx, store.MergeRecord{
		OldID:     oldID,
		NewID:     newID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append merge %s -> %s: %w", oldID, newID, err)
	}

	if err := m.st.RepointReferences(ctx, oldID, target); err != nil {
		return fmt.Errorf("repoint references %s -> %s: %w", oldID, target, err)
	}

	m.log.Info().Str("old_id", oldID).Str("new_id", newID).Str("current_id", target).Msg("merged identities")
	return nil
}

// ApplyAll replays a batch of externally reviewed merges. Cyclic or
// already-merged entries are reported per chain; unrelated merges still
// apply.
func (m *Merger) ApplyAll(ctx context.Context, pairs [][2]string) []error {
	var failures []error
	for _, p := range pairs {
		if err := m.Merge(ctx, p[0], p[1]); err != nil {
			failures = append(failures, fmt.Errorf("merge %s -> %s: %w", p[0], p[1], err))
		}
	}
	return failures
}
