package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type aliasKey struct {
	form      string
	sourceRef string
}

// MemoryStore is an in-memory Store used by tests and small one-shot runs.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	identities  map[string]MasterIdentity
	byCanonical map[string]string // canonical key -> identity id
	byBlock     map[string][]string
	aliases     map[aliasKey]Alias
	aliasByForm map[string]aliasKey // first alias recorded per form
	merges      map[string]MergeRecord
	mergeOrder  []string
	donations   map[string]DonationLink
	households  map[string]HouseholdCluster
	spouses     map[[2]string]SpousePair
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities:  make(map[string]MasterIdentity),
		byCanonical: make(map[string]string),
		byBlock:     make(map[string][]string),
		aliases:     make(map[aliasKey]Alias),
		aliasByForm: make(map[string]aliasKey),
		merges:      make(map[string]MergeRecord),
		donations:   make(map[string]DonationLink),
		households:  make(map[string]HouseholdCluster),
		spouses:     make(map[[2]string]SpousePair),
	}
}

func canonicalKey(last, first, suffix string) string {
	return last + "|" + first + "|" + suffix
}

// CreateIdentity inserts a new identity, enforcing canonical-key uniqueness
// under a single lock so concurrent resolvers cannot double-create.
func (m *MemoryStore) CreateIdentity(ctx context.Context, id MasterIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := canonicalKey(id.Last, id.First, id.Suffix)
	if _, taken := m.byCanonical[key]; taken {
		return ErrIdentityExists
	}
	if _, taken := m.identities[id.ID]; taken {
		return ErrIdentityExists
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	m.identities[id.ID] = id
	m.byCanonical[key] = id.ID
	if id.BlockKey != "" {
		m.byBlock[id.BlockKey] = append(m.byBlock[id.BlockKey], id.ID)
	}
	return nil
}

func (m *MemoryStore) GetIdentity(ctx context.Context, id string) (*MasterIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ident, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ident, nil
}

func (m *MemoryStore) FindIdentityByKey(ctx context.Context, last, first, suffix string) (*MasterIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCanonical[canonicalKey(last, first, suffix)]
	if !ok {
		return nil, ErrNotFound
	}
	ident := m.identities[id]
	return &ident, nil
}

func (m *MemoryStore) IdentitiesByBlock(ctx context.Context, blockKey string) ([]MasterIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := append([]string(nil), m.byBlock[blockKey]...)
	sort.Strings(ids)
	out := make([]MasterIdentity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.identities[id])
	}
	return out, nil
}

func (m *MemoryStore) ListIdentities(ctx context.Context) ([]MasterIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MasterIdentity, 0, len(m.identities))
	for _, ident := range m.identities {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutAlias records an alias. Re-recording the same (form, source ref) is a
// no-op update, keeping the write idempotent.
func (m *MemoryStore) PutAlias(ctx context.Context, alias Alias) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now().UTC()
	}
	key := aliasKey{form: alias.Form, sourceRef: alias.SourceRef}
	m.aliases[key] = alias
	if _, seen := m.aliasByForm[alias.Form]; !seen {
		m.aliasByForm[alias.Form] = key
	}
	return nil
}

func (m *MemoryStore) LookupAlias(ctx context.Context, form string) (*Alias, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.aliasByForm[form]
	if !ok {
		return nil, ErrNotFound
	}
	alias := m.aliases[key]
	return &alias, nil
}

func (m *MemoryStore) AppendMerge(ctx context.Context, rec MergeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, merged := m.merges[rec.OldID]; merged {
		return ErrAlreadyMerged
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.merges[rec.OldID] = rec
	m.mergeOrder = append(m.mergeOrder, rec.OldID)
	return nil
}

func (m *MemoryStore) GetMerge(ctx context.Context, oldID string) (*MergeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.merges[oldID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) ListMerges(ctx context.Context) ([]MergeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MergeRecord, 0, len(m.mergeOrder))
	for _, oldID := range m.mergeOrder {
		out = append(out, m.merges[oldID])
	}
	return out, nil
}

// RepointReferences rewrites aliases, donation links, spouse pairs and
// cluster membership from oldID to newID under one lock.
func (m *MemoryStore) RepointReferences(ctx context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, alias := range m.aliases {
		if alias.MasterID == oldID {
			alias.MasterID = newID
			m.aliases[key] = alias
		}
	}
	for ref, link := range m.donations {
		if link.MasterID == oldID {
			link.MasterID = newID
			m.donations[ref] = link
		}
	}
	for key, pair := range m.spouses {
		if pair.IDA != oldID && pair.IDB != oldID {
			continue
		}
		delete(m.spouses, key)
		a, b := pair.IDA, pair.IDB
		if a == oldID {
			a = newID
		}
		if b == oldID {
			b = newID
		}
		if a == b {
			continue // pair collapsed into one identity
		}
		if a > b {
			a, b = b, a
		}
		pair.IDA, pair.IDB = a, b
		m.spouses[[2]string{a, b}] = pair
	}
	for key, cluster := range m.households {
		changed := false
		for i, member := range cluster.Members {
			if member == oldID {
				cluster.Members[i] = newID
				changed = true
			}
		}
		if changed {
			cluster.Members = dedupeMembers(cluster.Members)
			cluster.MemberCount = len(cluster.Members)
			m.households[key] = cluster
		}
	}
	return nil
}

func (m *MemoryStore) LinkDonation(ctx context.Context, link DonationLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.donations[link.SourceRef] = link
	return nil
}

func (m *MemoryStore) ListDonations(ctx context.Context) ([]DonationLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DonationLink, 0, len(m.donations))
	for _, link := range m.donations {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRef < out[j].SourceRef })
	return out, nil
}

func (m *MemoryStore) UpsertHousehold(ctx context.Context, cluster HouseholdCluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cluster.UpdatedAt.IsZero() {
		cluster.UpdatedAt = time.Now().UTC()
	}
	cluster.Members = dedupeMembers(cluster.Members)
	cluster.MemberCount = len(cluster.Members)
	m.households[cluster.Key] = cluster
	return nil
}

func (m *MemoryStore) GetHousehold(ctx context.Context, key string) (*HouseholdCluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cluster, ok := m.households[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &cluster, nil
}

func (m *MemoryStore) ListHouseholds(ctx context.Context) ([]HouseholdCluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HouseholdCluster, 0, len(m.households))
	for _, cluster := range m.households {
		out = append(out, cluster)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PutSpousePair stores a pair with the lower id first so the symmetric row
// is never duplicated.
func (m *MemoryStore) PutSpousePair(ctx context.Context, pair SpousePair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pair.IDA > pair.IDB {
		pair.IDA, pair.IDB = pair.IDB, pair.IDA
	}
	m.spouses[[2]string{pair.IDA, pair.IDB}] = pair
	return nil
}

func (m *MemoryStore) ListSpousePairs(ctx context.Context) ([]SpousePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SpousePair, 0, len(m.spouses))
	for _, pair := range m.spouses {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IDA != out[j].IDA {
			return out[i].IDA < out[j].IDA
		}
		return out[i].IDB < out[j].IDB
	})
	return out, nil
}

func dedupeMembers(members []string) []string {
	seen := make(map[string]bool, len(members))
	out := members[:0]
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
