package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

const (
	getEntryQuery = `SELECT value, expiry FROM cache_entries
WHERE cache_type = $1 AND cache_key = $2`

	upsertEntryQuery = `INSERT INTO cache_entries (
	cache_type, cache_key, value, expiry
) VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_type, cache_key) DO UPDATE SET
	value = excluded.value, expiry = excluded.expiry`

	getSetExpiryQuery = `SELECT expiry FROM cache_sets
WHERE cache_type = $1 AND cache_key = $2`

	deleteSetMembersQuery = `DELETE FROM cache_set_members
WHERE cache_type = $1 AND cache_key = $2`

	upsertSetQuery = `INSERT INTO cache_sets (
	cache_type, cache_key, expiry
) VALUES ($1, $2, $3)
ON CONFLICT (cache_type, cache_key) DO UPDATE SET expiry = excluded.expiry`

	upsertSetMemberQuery = `INSERT INTO cache_set_members (
	cache_type, cache_key, sort_key, value
) VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_type, cache_key, sort_key) DO UPDATE SET
	value = excluded.value`

	getSetMembersQuery = `SELECT m.sort_key, m.value
FROM cache_set_members m
JOIN cache_sets s
	ON s.cache_type = m.cache_type AND s.cache_key = m.cache_key
WHERE m.cache_type = $1 AND m.cache_key = $2 AND s.expiry > $3`

	purgeEntriesQuery = `DELETE FROM cache_entries WHERE expiry <= $1`

	purgeSetMembersQuery = `DELETE FROM cache_set_members
WHERE EXISTS (
	SELECT 1 FROM cache_sets s
	WHERE s.cache_type = cache_set_members.cache_type
		AND s.cache_key = cache_set_members.cache_key
		AND s.expiry <= $1
)`

	purgeSetsQuery = `DELETE FROM cache_sets WHERE expiry <= $1`
)

// BaseDB is the shared implementation of the SQL backed stores.
type BaseDB struct {
	*sql.DB

	clock clock.Clock
}

// A compile time check to ensure BaseDB implements Store.
var _ Store = (*BaseDB)(nil)

// ExecTx runs txBody in a database transaction which is committed if txBody
// succeeds and rolled back otherwise.
func (db *BaseDB) ExecTx(ctx context.Context, txBody func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Rollback is safe to call even if the tx is already closed, so if
	// the tx commits successfully, this is a no-op.
	defer tx.Rollback() //nolint: errcheck

	if err := txBody(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// GetJSON decodes the unexpired entry under the key into v.
func (db *BaseDB) GetJSON(ctx context.Context, t Type, key string,
	v any) (bool, error) {

	var (
		value  []byte
		expiry int64
	)
	err := db.QueryRowContext(
		ctx, getEntryQuery, string(t), key,
	).Scan(&value, &expiry)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil

	case err != nil:
		return false, err
	}

	if expiry <= db.clock.Now().UnixNano() {
		return false, nil
	}

	return true, json.Unmarshal(value, v)
}

// SetJSON stores v under the key.
func (db *BaseDB) SetJSON(ctx context.Context, t Type, key string, v any,
	ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	expiry := db.clock.Now().Add(ttl).UnixNano()
	_, err = db.ExecContext(
		ctx, upsertEntryQuery, string(t), key, value, expiry,
	)

	return err
}

// AddJSONToSortedSet adds v to the sorted set under the key.
func (db *BaseDB) AddJSONToSortedSet(ctx context.Context, t Type, key,
	sortKey string, v any, ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	now := db.clock.Now()

	return db.ExecTx(ctx, func(tx *sql.Tx) error {
		// An expired set starts over.
		var expiry int64
		err := tx.QueryRowContext(
			ctx, getSetExpiryQuery, string(t), key,
		).Scan(&expiry)
		switch {
		case errors.Is(err, sql.ErrNoRows):

		case err != nil:
			return err

		case expiry <= now.UnixNano():
			_, err := tx.ExecContext(
				ctx, deleteSetMembersQuery, string(t), key,
			)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(
			ctx, upsertSetQuery, string(t), key,
			now.Add(ttl).UnixNano(),
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(
			ctx, upsertSetMemberQuery, string(t), key, sortKey,
			value,
		)

		return err
	})
}

// GetSortedSet returns the members of an unexpired sorted set.
func (db *BaseDB) GetSortedSet(ctx context.Context, t Type,
	key string) ([]SortedMember, error) {

	rows, err := db.QueryContext(
		ctx, getSetMembersQuery, string(t), key,
		db.clock.Now().UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []SortedMember
	for rows.Next() {
		var (
			sortKey string
			value   []byte
		)
		if err := rows.Scan(&sortKey, &value); err != nil {
			return nil, err
		}

		members = append(members, SortedMember{
			Sort:  sortKey,
			Value: value,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Text collation differs between the backends, so the byte order is
	// established here.
	sort.Slice(members, func(i, j int) bool {
		return members[i].Sort < members[j].Sort
	})

	return members, nil
}

// PurgeExpired removes expired entries and sets.
func (db *BaseDB) PurgeExpired(ctx context.Context) (int, error) {
	now := db.clock.Now().UnixNano()

	var purged int
	err := db.ExecTx(ctx, func(tx *sql.Tx) error {
		purged = 0

		for _, query := range []string{
			purgeEntriesQuery, purgeSetMembersQuery, purgeSetsQuery,
		} {
			result, err := tx.ExecContext(ctx, query, now)
			if err != nil {
				return err
			}

			// Members are counted through their set.
			if query == purgeSetMembersQuery {
				continue
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			purged += int(affected)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return purged, nil
}
