package watch

import (
	"sync"
)

// lastAddress is a resolved address and the swap it points at.
type lastAddress struct {
	address string
	swap    swapAddressRow
}

// LastAddressCache remembers the most recently resolved swap address per
// network. Scans commonly look up the same address repeatedly, a hit skips
// the store round trip for the swap pointer. It only ever answers for the
// identical address, so it can not return data of another swap.
type LastAddressCache struct {
	last map[string]lastAddress

	mu sync.Mutex
}

// NewLastAddressCache returns an empty cache.
func NewLastAddressCache() *LastAddressCache {
	return &LastAddressCache{
		last: make(map[string]lastAddress),
	}
}

// get returns the swap pointer if address is the last resolved one of the
// network.
func (c *LastAddressCache) get(network, address string) (swapAddressRow,
	bool) {

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.last[network]
	if !ok || last.address != address {
		return swapAddressRow{}, false
	}

	return last.swap, true
}

// put replaces the last resolved address of the network.
func (c *LastAddressCache) put(network, address string, swap swapAddressRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last[network] = lastAddress{
		address: address,
		swap:    swap,
	}
}
