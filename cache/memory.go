package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// entryKey identifies an entry or set across cache types.
type entryKey struct {
	t   Type
	key string
}

type memoryEntry struct {
	value  []byte
	expiry time.Time
}

type memorySet struct {
	members map[string][]byte
	expiry  time.Time
}

// MemoryStore is a Store that keeps everything in process memory. Expired
// entries are hidden on read and removed by PurgeExpired.
type MemoryStore struct {
	clock clock.Clock

	entries map[entryKey]*memoryEntry
	sets    map[entryKey]*memorySet

	mu sync.Mutex
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore(clock clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[entryKey]*memoryEntry),
		sets:    make(map[entryKey]*memorySet),
	}
}

// A compile time check to ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// GetJSON decodes the unexpired entry under the key into v.
func (m *MemoryStore) GetJSON(_ context.Context, t Type, key string,
	v any) (bool, error) {

	m.mu.Lock()
	entry, ok := m.entries[entryKey{t: t, key: key}]
	if ok && !m.clock.Now().Before(entry.expiry) {
		ok = false
	}

	var value []byte
	if ok {
		value = entry.value
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(value, v)
}

// SetJSON stores v under the key.
func (m *MemoryStore) SetJSON(_ context.Context, t Type, key string, v any,
	ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entryKey{t: t, key: key}] = &memoryEntry{
		value:  value,
		expiry: m.clock.Now().Add(ttl),
	}

	return nil
}

// AddJSONToSortedSet adds v to the sorted set under the key.
func (m *MemoryStore) AddJSONToSortedSet(_ context.Context, t Type, key,
	sortKey string, v any, ttl time.Duration) error {

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	id := entryKey{t: t, key: key}

	set, ok := m.sets[id]
	if !ok || !now.Before(set.expiry) {
		set = &memorySet{
			members: make(map[string][]byte),
		}
		m.sets[id] = set
	}

	set.members[sortKey] = value
	set.expiry = now.Add(ttl)

	return nil
}

// GetSortedSet returns the members of an unexpired sorted set.
func (m *MemoryStore) GetSortedSet(_ context.Context, t Type,
	key string) ([]SortedMember, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[entryKey{t: t, key: key}]
	if !ok || !m.clock.Now().Before(set.expiry) {
		return nil, nil
	}

	members := make([]SortedMember, 0, len(set.members))
	for sortKey, value := range set.members {
		members = append(members, SortedMember{
			Sort:  sortKey,
			Value: append(json.RawMessage(nil), value...),
		})
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Sort < members[j].Sort
	})

	return members, nil
}

// PurgeExpired removes expired entries and sets.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	var purged int
	for id, entry := range m.entries {
		if !now.Before(entry.expiry) {
			delete(m.entries, id)
			purged++
		}
	}

	for id, set := range m.sets {
		if !now.Before(set.expiry) {
			delete(m.sets, id)
			purged++
		}
	}

	return purged, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
