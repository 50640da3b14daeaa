// Package store defines the persisted shape of the identity-resolution
// engine and the Store interface shared by the in-memory store (tests) and
// the Postgres store (production). Downstream consumers read these records;
// they never mutate resolution state directly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrIdentityExists is returned by CreateIdentity when another identity
	// already holds the canonical key. The caller re-reads and adopts the
	// winner's id.
	ErrIdentityExists = errors.New("store: identity already exists for canonical key")

	// ErrAlreadyMerged is returned when an identity has already been merged
	// into another; one identity merges into exactly one direct target.
	ErrAlreadyMerged = errors.New("store: identity already merged")
)

// MasterIdentity is the stable, deduplicated representation of one person.
// Name fields hold the canonical comparison form. Ids are immutable and
// never reused; superseded rows are retained after a merge, never deleted.
type MasterIdentity struct {
	ID          string
	First       string
	Middle      string
	Last        string
	Suffix      string
	DisplayName string
	HouseNumber string
	Street      string
	City        string
	State       string
	Zip         string
	County      string
	BlockKey    string
	Verified    bool
	Notes       string
	CreatedAt   time.Time
}

// Alias maps a raw name string's comparison form to a master identity,
// with the match pattern that produced it and a confidence in [0,1].
// Unique per (comparison form, source ref); append-mostly.
type Alias struct {
	Form       string
	SourceRef  string
	MasterID   string
	MatchType  string
	Confidence float64
	CreatedAt  time.Time
}

// MergeRecord is one link of the append-only merge log: OldID was unified
// into NewID at Timestamp. Unique per OldID; chains collapse transitively.
type MergeRecord struct {
	OldID     string
	NewID     string
	Timestamp time.Time
}

// DonationLink ties one source donation row to its resolved identity.
// Repointed when identities merge; upserted by source ref.
type DonationLink struct {
	SourceRef string
	MasterID  string
	Amount    decimal.Decimal
}

// HouseholdCluster groups identities sharing a residence, keyed by the
// deterministic household key. Recomputed idempotently per run.
type HouseholdCluster struct {
	Key         string
	Members     []string
	MemberCount int
	TotalAmount decimal.Decimal
	UpdatedAt   time.Time
}

// SpousePair is an unordered identity pair stored with IDA < IDB so the
// symmetric row never appears twice.
type SpousePair struct {
	IDA          string
	IDB          string
	HouseholdKey string
	Confidence   float64
}

// Store is the backing store for resolution state. Implementations must
// make CreateIdentity atomic on the canonical key tuple and every write
// idempotent, so a partially completed run can simply be re-run.
type Store interface {
	// CreateIdentity inserts a new identity. Returns ErrIdentityExists if
	// the canonical key (last, first, suffix) is already taken.
	CreateIdentity(ctx context.Context, id MasterIdentity) error

	// GetIdentity returns an identity by id, merged or not.
	GetIdentity(ctx context.Context, id string) (*MasterIdentity, error)

	// FindIdentityByKey looks up an identity by canonical key. Empty suffix
	// matches empty suffix only.
	FindIdentityByKey(ctx context.Context, last, first, suffix string) (*MasterIdentity, error)

	// IdentitiesByBlock returns identities sharing a blocking key, ordered
	// by id for deterministic iteration.
	IdentitiesByBlock(ctx context.Context, blockKey string) ([]MasterIdentity, error)

	// ListIdentities returns all identities ordered by id.
	ListIdentities(ctx context.Context) ([]MasterIdentity, error)

	// PutAlias records an alias, idempotently per (form, source ref).
	PutAlias(ctx context.Context, alias Alias) error

	// LookupAlias returns the alias for a comparison form, or ErrNotFound.
	LookupAlias(ctx context.Context, form string) (*Alias, error)

	// AppendMerge appends to the merge log. Returns ErrAlreadyMerged if
	// OldID is already the source of a merge.
	AppendMerge(ctx context.Context, rec MergeRecord) error

	// GetMerge returns the merge record for an old id, or ErrNotFound.
	GetMerge(ctx context.Context, oldID string) (*MergeRecord, error)

	// ListMerges returns the merge log ordered by timestamp.
	ListMerges(ctx context.Context) ([]MergeRecord, error)

	// RepointReferences rewrites every reference held by aliases, donation
	// links, spouse pairs and cluster members from oldID to newID. The
	// superseded identity row itself is retained.
	RepointReferences(ctx context.Context, oldID, newID string) error

	// LinkDonation upserts a donation link by source ref.
	LinkDonation(ctx context.Context, link DonationLink) error

	// ListDonations returns all donation links.
	ListDonations(ctx context.Context) ([]DonationLink, error)

	// UpsertHousehold writes a cluster summary keyed by household key.
	UpsertHousehold(ctx context.Context, cluster HouseholdCluster) error

	// GetHousehold returns a cluster by key, or ErrNotFound.
	GetHousehold(ctx context.Context, key string) (*HouseholdCluster, error)

	// ListHouseholds returns all cluster summaries ordered by key.
	ListHouseholds(ctx context.Context) ([]HouseholdCluster, error)

	// PutSpousePair records a pair, idempotently per (IDA, IDB).
	PutSpousePair(ctx context.Context, pair SpousePair) error

	// ListSpousePairs returns all pairs ordered by (IDA, IDB).
	ListSpousePairs(ctx context.Context) ([]SpousePair, error)
}
