package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Type namespaces the keys of a cache.
type Type string

const (
	// TypeInvoice maps an invoice id to the invoice.
	TypeInvoice Type = "invoice"

	// TypeSwapAddress maps a watched address to the swap it funds.
	TypeSwapAddress Type = "swap_address"

	// TypeSwapKey maps a claim public key to its key index.
	TypeSwapKey Type = "swap_key"

	// TypeSwapElements holds the sorted event set of a swap.
	TypeSwapElements Type = "swap_elements"

	// TypeSwapTransactionID marks transactions the block listener should
	// pay attention to.
	TypeSwapTransactionID Type = "swap_transaction_id"

	// TypeBlockMetadata caches chain block metadata.
	TypeBlockMetadata Type = "get_block_metadata"
)

// SortedMember is a member of a sorted set.
type SortedMember struct {
	// Sort is the key the member is ordered and deduplicated by.
	Sort string

	// Value is the JSON encoded member.
	Value json.RawMessage
}

// Store is a key value store with expiring JSON entries and expiring sorted
// sets.
type Store interface {
	// GetJSON decodes the unexpired entry under the key into v. False is
	// returned if there is no such entry.
	GetJSON(ctx context.Context, t Type, key string, v any) (bool, error)

	// SetJSON stores v under the key, replacing any previous entry, and
	// expires it after the ttl.
	SetJSON(ctx context.Context, t Type, key string, v any,
		ttl time.Duration) error

	// AddJSONToSortedSet adds v to the sorted set under the key. Adding a
	// member with an existing sort key replaces it. The expiry of the
	// whole set is reset to the ttl.
	AddJSONToSortedSet(ctx context.Context, t Type, key, sort string,
		v any, ttl time.Duration) error

	// GetSortedSet returns the members of an unexpired sorted set in
	// ascending sort key order.
	GetSortedSet(ctx context.Context, t Type,
		key string) ([]SortedMember, error)

	// PurgeExpired removes expired entries and sets and returns how many
	// were removed.
	PurgeExpired(ctx context.Context) (int, error)

	// Close releases the resources of the store.
	Close() error
}
