package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"go.etcd.io/bbolt"
)

var (
	// boltFileName is the default file name of the cache database.
	boltFileName = "cache.db"

	// entriesBucketKey holds one sub-bucket per cache type.
	//
	// path: entriesBucket -> typeBucket[type]
	//
	// maps: key -> expiry || json
	entriesBucketKey = []byte("entries")

	// setsBucketKey holds one sub-bucket per cache type, each holding one
	// sub-bucket per sorted set.
	//
	// path: setsBucket -> typeBucket[type] -> setBucket[key]
	setsBucketKey = []byte("sets")

	// setExpiryKey stores the expiry of a sorted set.
	//
	// path: setsBucket -> typeBucket[type] -> setBucket[key] -> setExpiryKey
	//
	// value: expiry
	setExpiryKey = []byte("expiry")

	// setMembersKey is the sub-bucket holding the members of a set.
	//
	// path: setsBucket -> typeBucket[type] -> setBucket[key] -> membersBucket
	//
	// maps: sort key -> json
	setMembersKey = []byte("members")

	byteOrder = binary.BigEndian

	// errCorruptEntry is returned for values shorter than the expiry
	// prefix.
	errCorruptEntry = errors.New("corrupt cache entry")
)

// BoltConfig holds the configuration of the bolt cache.
type BoltConfig struct {
	// DataDir is the directory the database file is created in.
	DataDir string `long:"datadir" description:"Directory of the bolt cache database."`
}

// BoltStore is a Store backed by a bolt database file.
type BoltStore struct {
	db    *bbolt.DB
	clock clock.Clock
}

// A compile time check to ensure BoltStore implements Store.
var _ Store = (*BoltStore)(nil)

// NewBoltStore opens or creates the bolt cache in the configured directory.
func NewBoltStore(cfg *BoltConfig, clock clock.Clock) (*BoltStore, error) {
	// If the target path for the cache doesn't exist, then we'll create it
	// now before we proceed.
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}

	path := filepath.Join(cfg.DataDir, boltFileName)
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, key := range [][]byte{entriesBucketKey, setsBucketKey} {
			_, err := tx.CreateBucketIfNotExists(key)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Infof("Using bolt cache at %v", path)

	return &BoltStore{
		db:    db,
		clock: clock,
	}, nil
}

// encodeExpiry serializes an expiry as unix nanoseconds.
func encodeExpiry(expiry time.Time) []byte {
	var b [8]byte
	byteOrder.PutUint64(b[:], uint64(expiry.UnixNano()))

	return b[:]
}

// isExpired returns true if the serialized expiry is not after now.
func isExpired(b []byte, now time.Time) bool {
	return int64(byteOrder.Uint64(b)) <= now.UnixNano()
}

// GetJSON decodes the unexpired entry under the key into v.
func (s *BoltStore) GetJSON(_ context.Context, t Type, key string,
	v any) (bool, error) {

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		typeBucket := tx.Bucket(entriesBucketKey).Bucket([]byte(t))
		if typeBucket == nil {
			return nil
		}

		stored := typeBucket.Get([]byte(key))
		if stored == nil {
			return nil
		}

		if len(stored) < 8 {
			return fmt.Errorf("%w: %v/%v", errCorruptEntry, t, key)
		}

		if isExpired(stored[:8], s.clock.Now()) {
			return nil
		}

		value = bytes.Clone(stored[8:])

		return nil
	})
	if err != nil || value == nil {
		return false, err
	}

	return true, json.Unmarshal(value, v)
}

// SetJSON stores v under the key.
func (s *BoltStore) SetJSON(_ context.Context, t Type, key string, v any,
	ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	stored := append(encodeExpiry(s.clock.Now().Add(ttl)), value...)

	return s.db.Update(func(tx *bbolt.Tx) error {
		typeBucket, err := tx.Bucket(entriesBucketKey).
			CreateBucketIfNotExists([]byte(t))
		if err != nil {
			return err
		}

		return typeBucket.Put([]byte(key), stored)
	})
}

// AddJSONToSortedSet adds v to the sorted set under the key.
func (s *BoltStore) AddJSONToSortedSet(_ context.Context, t Type, key,
	sortKey string, v any, ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	now := s.clock.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		typeBucket, err := tx.Bucket(setsBucketKey).
			CreateBucketIfNotExists([]byte(t))
		if err != nil {
			return err
		}

		// An expired set starts over.
		setBucket := typeBucket.Bucket([]byte(key))
		if setBucket != nil {
			expiry := setBucket.Get(setExpiryKey)
			if expiry == nil || isExpired(expiry, now) {
				err := typeBucket.DeleteBucket([]byte(key))
				if err != nil {
					return err
				}
			}
		}

		setBucket, err = typeBucket.CreateBucketIfNotExists(
			[]byte(key),
		)
		if err != nil {
			return err
		}

		err = setBucket.Put(setExpiryKey, encodeExpiry(now.Add(ttl)))
		if err != nil {
			return err
		}

		members, err := setBucket.CreateBucketIfNotExists(setMembersKey)
		if err != nil {
			return err
		}

		return members.Put([]byte(sortKey), value)
	})
}

// GetSortedSet returns the members of an unexpired sorted set.
func (s *BoltStore) GetSortedSet(_ context.Context, t Type,
	key string) ([]SortedMember, error) {

	var result []SortedMember
	err := s.db.View(func(tx *bbolt.Tx) error {
		typeBucket := tx.Bucket(setsBucketKey).Bucket([]byte(t))
		if typeBucket == nil {
			return nil
		}

		setBucket := typeBucket.Bucket([]byte(key))
		if setBucket == nil {
			return nil
		}

		expiry := setBucket.Get(setExpiryKey)
		if expiry == nil || isExpired(expiry, s.clock.Now()) {
			return nil
		}

		members := setBucket.Bucket(setMembersKey)
		if members == nil {
			return nil
		}

		// Bolt iterates keys in byte order, which is the sort key
		// order.
		return members.ForEach(func(k, v []byte) error {
			result = append(result, SortedMember{
				Sort:  string(k),
				Value: bytes.Clone(v),
			})

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// PurgeExpired removes expired entries and sets.
func (s *BoltStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.clock.Now()

	var purged int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		purged = 0

		err := forEachTypeBucket(
			tx.Bucket(entriesBucketKey),
			func(typeBucket *bbolt.Bucket) error {
				var expired [][]byte
				err := typeBucket.ForEach(func(k, v []byte) error {
					if len(v) < 8 || isExpired(v[:8], now) {
						expired = append(
							expired, bytes.Clone(k),
						)
					}

					return nil
				})
				if err != nil {
					return err
				}

				for _, k := range expired {
					if err := typeBucket.Delete(k); err != nil {
						return err
					}
				}
				purged += len(expired)

				return nil
			},
		)
		if err != nil {
			return err
		}

		return forEachTypeBucket(
			tx.Bucket(setsBucketKey),
			func(typeBucket *bbolt.Bucket) error {
				var expired [][]byte
				err := typeBucket.ForEachBucket(func(k []byte) error {
					expiry := typeBucket.Bucket(k).Get(
						setExpiryKey,
					)
					if expiry == nil || isExpired(expiry, now) {
						expired = append(
							expired, bytes.Clone(k),
						)
					}

					return nil
				})
				if err != nil {
					return err
				}

				for _, k := range expired {
					err := typeBucket.DeleteBucket(k)
					if err != nil {
						return err
					}
				}
				purged += len(expired)

				return nil
			},
		)
	})
	if err != nil {
		return 0, err
	}

	return purged, nil
}

// forEachTypeBucket calls cb for every nested bucket of the parent.
func forEachTypeBucket(parent *bbolt.Bucket,
	cb func(*bbolt.Bucket) error) error {

	return parent.ForEachBucket(func(k []byte) error {
		return cb(parent.Bucket(k))
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
