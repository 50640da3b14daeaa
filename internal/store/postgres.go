package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore is the production Store backed by Postgres. Uniqueness
// constraints carry the atomic check-then-create semantics: the canonical
// key tuple and the alias (form, source_ref) pair are unique, and merge_log
// is unique per old_id.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) CreateIdentity(ctx context.Context, id MasterIdentity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO master_identity (
			id, first_name, middle_name, last_name, suffix, display_name,
			house_number, street, city, state, zip, county, block_key,
			verified, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	`, id.ID, id.First, id.Middle, id.Last, id.Suffix, id.DisplayName,
		id.HouseNumber, id.Street, id.City, id.State, id.Zip, id.County, id.BlockKey,
		id.Verified, id.Notes)
	if isUniqueViolation(err) {
		return ErrIdentityExists
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

const identityColumns = `
	id, first_name, middle_name, last_name, suffix, display_name,
	house_number, street, city, state, zip, county, block_key,
	verified, notes, created_at`

func (s *PostgresStore) scanIdentity(row interface{ Scan(...interface{}) error }) (*MasterIdentity, error) {
	var id MasterIdentity
	err := row.Scan(&id.ID, &id.First, &id.Middle, &id.Last, &id.Suffix, &id.DisplayName,
		&id.HouseNumber, &id.Street, &id.City, &id.State, &id.Zip, &id.County, &id.BlockKey,
		&id.Verified, &id.Notes, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &id, nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id string) (*MasterIdentity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+identityColumns+` FROM master_identity WHERE id = $1`, id)
	return s.scanIdentity(row)
}

func (s *PostgresStore) FindIdentityByKey(ctx context.Context, last, first, suffix string) (*MasterIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+identityColumns+`
		FROM master_identity
		WHERE last_name = $1 AND first_name = $2 AND suffix = $3
	`, last, first, suffix)
	return s.scanIdentity(row)
}

func (s *PostgresStore) IdentitiesByBlock(ctx context.Context, blockKey string) ([]MasterIdentity, error) {
	return s.queryIdentities(ctx, `
		SELECT`+identityColumns+`
		FROM master_identity WHERE block_key = $1 ORDER BY id
	`, blockKey)
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]MasterIdentity, error) {
	return s.queryIdentities(ctx, `SELECT`+identityColumns+` FROM master_identity ORDER BY id`)
}

func (s *PostgresStore) queryIdentities(ctx context.Context, query string, args ...interface{}) ([]MasterIdentity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []MasterIdentity
	for rows.Next() {
		id, err := s.scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutAlias(ctx context.Context, alias Alias) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO person_alias (form, source_ref, master_id, match_type, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (form, source_ref) DO UPDATE
		SET master_id = EXCLUDED.master_id,
		    match_type = EXCLUDED.match_type,
		    confidence = EXCLUDED.confidence
	`, alias.Form, alias.SourceRef, alias.MasterID, alias.MatchType, alias.Confidence)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupAlias(ctx context.Context, form string) (*Alias, error) {
	var alias Alias
	err := s.db.QueryRowContext(ctx, `
		SELECT form, source_ref, master_id, match_type, confidence, created_at
		FROM person_alias
		WHERE form = $1
		ORDER BY created_at, master_id
		LIMIT 1
	`, form).Scan(&alias.Form, &alias.SourceRef, &alias.MasterID, &alias.MatchType, &alias.Confidence, &alias.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup alias: %w", err)
	}
	return &alias, nil
}

func (s *PostgresStore) AppendMerge(ctx context.Context, rec MergeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_log (old_id, new_id, merged_at) VALUES ($1, $2, $3)
	`, rec.OldID, rec.NewID, rec.Timestamp)
	if isUniqueViolation(err) {
		return ErrAlreadyMerged
	}
	if err != nil {
		return fmt.Errorf("append merge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMerge(ctx context.Context, oldID string) (*MergeRecord, error) {
	var rec MergeRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT old_id, new_id, merged_at FROM merge_log WHERE old_id = $1
	`, oldID).Scan(&rec.OldID, &rec.NewID, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get merge: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListMerges(ctx context.Context) ([]MergeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT old_id, new_id, merged_at FROM merge_log ORDER BY merged_at`)
	if err != nil {
		return nil, fmt.Errorf("list merges: %w", err)
	}
	defer rows.Close()

	var out []MergeRecord
	for rows.Next() {
		var rec MergeRecord
		if err := rows.Scan(&rec.OldID, &rec.NewID, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan merge: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RepointReferences rewrites all references from oldID to newID in one
// transaction. Locking both identity rows first serializes the rewrite
// against a resolver creating or adopting either id concurrently.
func (s *PostgresStore) RepointReferences(ctx context.Context, oldID, newID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin repoint: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		SELECT id FROM master_identity WHERE id IN ($1, $2) FOR UPDATE
	`, oldID, newID); err != nil {
		return fmt.Errorf("lock identities: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE person_alias SET master_id = $2 WHERE master_id = $1
	`, oldID, newID); err != nil {
		return fmt.Errorf("repoint aliases: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE donation_link SET master_id = $2 WHERE master_id = $1
	`, oldID, newID); err != nil {
		return fmt.Errorf("repoint donations: %w", err)
	}

	// Spouse pairs keep the ordered-pair invariant. A pair between the two
	// merged identities collapses into one id; remove it before the rewrite
	// so the UPDATE never produces an id_a = id_b row, which the ordering
	// CHECK would reject and abort the transaction.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM spouse_pair
		WHERE (id_a = $1 AND id_b = $2) OR (id_a = $2 AND id_b = $1)
	`, oldID, newID); err != nil {
		return fmt.Errorf("drop collapsed spouse pair: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE spouse_pair
		SET id_a = LEAST(CASE WHEN id_a = $1 THEN $2 ELSE id_a END,
		                 CASE WHEN id_b = $1 THEN $2 ELSE id_b END),
		    id_b = GREATEST(CASE WHEN id_a = $1 THEN $2 ELSE id_a END,
		                    CASE WHEN id_b = $1 THEN $2 ELSE id_b END)
		WHERE (id_a = $1 OR id_b = $1)
		  AND NOT EXISTS (
			SELECT 1 FROM spouse_pair other
			WHERE other.id_a = LEAST(CASE WHEN spouse_pair.id_a = $1 THEN $2 ELSE spouse_pair.id_a END,
			                         CASE WHEN spouse_pair.id_b = $1 THEN $2 ELSE spouse_pair.id_b END)
			  AND other.id_b = GREATEST(CASE WHEN spouse_pair.id_a = $1 THEN $2 ELSE spouse_pair.id_a END,
			                            CASE WHEN spouse_pair.id_b = $1 THEN $2 ELSE spouse_pair.id_b END)
		)
	`, oldID, newID); err != nil {
		return fmt.Errorf("repoint spouse pairs: %w", err)
	}

	// Rows the duplicate guard skipped still reference the merged id.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM spouse_pair WHERE id_a = $1 OR id_b = $1
	`, oldID); err != nil {
		return fmt.Errorf("drop duplicate spouse pairs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE household_cluster
		SET members = (
			SELECT ARRAY(SELECT DISTINCT unnest(array_replace(members, $1::text, $2::text)) ORDER BY 1)
		),
		    member_count = (
			SELECT COUNT(DISTINCT m) FROM unnest(array_replace(members, $1::text, $2::text)) AS m
		)
		WHERE $1 = ANY(members)
	`, oldID, newID); err != nil {
		return fmt.Errorf("repoint cluster members: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) LinkDonation(ctx context.Context, link DonationLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_link (source_ref, master_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_ref) DO UPDATE
		SET master_id = EXCLUDED.master_id, amount = EXCLUDED.amount
	`, link.SourceRef, link.MasterID, link.Amount)
	if err != nil {
		return fmt.Errorf("upsert donation link: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDonations(ctx context.Context) ([]DonationLink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_ref, master_id, amount FROM donation_link ORDER BY source_ref`)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []DonationLink
	for rows.Next() {
		var link DonationLink
		if err := rows.Scan(&link.SourceRef, &link.MasterID, &link.Amount); err != nil {
			return nil, fmt.Errorf("scan donation link: %w", err)
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertHousehold(ctx context.Context, cluster HouseholdCluster) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO household_cluster (household_key, members, member_count, total_amount, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (household_key) DO UPDATE
		SET members = EXCLUDED.members,
		    member_count = EXCLUDED.member_count,
		    total_amount = EXCLUDED.total_amount,
		    updated_at = NOW()
	`, cluster.Key, pq.Array(cluster.Members), cluster.MemberCount, cluster.TotalAmount)
	if err != nil {
		return fmt.Errorf("upsert household: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHousehold(ctx context.Context, key string) (*HouseholdCluster, error) {
	var cluster HouseholdCluster
	err := s.db.QueryRowContext(ctx, `
		SELECT household_key, members, member_count, total_amount, updated_at
		FROM household_cluster WHERE household_key = $1
	`, key).Scan(&cluster.Key, pq.Array(&cluster.Members), &cluster.MemberCount, &cluster.TotalAmount, &cluster.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return &cluster, nil
}

func (s *PostgresStore) ListHouseholds(ctx context.Context) ([]HouseholdCluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT household_key, members, member_count, total_amount, updated_at
		FROM household_cluster ORDER BY household_key
	`)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var out []HouseholdCluster
	for rows.Next() {
		var cluster HouseholdCluster
		if err := rows.Scan(&cluster.Key, pq.Array(&cluster.Members), &cluster.MemberCount, &cluster.TotalAmount, &cluster.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		out = append(out, cluster)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutSpousePair(ctx context.Context, pair SpousePair) error {
	if pair.IDA > pair.IDB {
		pair.IDA, pair.IDB = pair.IDB, pair.IDA
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spouse_pair (id_a, id_b, household_key, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id_a, id_b) DO UPDATE
		SET household_key = EXCLUDED.household_key, confidence = EXCLUDED.confidence
	`, pair.IDA, pair.IDB, pair.HouseholdKey, pair.Confidence)
	if err != nil {
		return fmt.Errorf("upsert spouse pair: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSpousePairs(ctx context.Context) ([]SpousePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id_a, id_b, household_key, confidence FROM spouse_pair ORDER BY id_a, id_b
	`)
	if err != nil {
		return nil, fmt.Errorf("list spouse pairs: %w", err)
	}
	defer rows.Close()

	var out []SpousePair
	for rows.Next() {
		var pair SpousePair
		if err := rows.Scan(&pair.IDA, &pair.IDB, &pair.HouseholdKey, &pair.Confidence); err != nil {
			return nil, fmt.Errorf("scan spouse pair: %w", err)
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}
