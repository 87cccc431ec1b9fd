package test

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

// MockDeriver derives swap keys from CreateKey, ignoring the network.
type MockDeriver struct {
	// Err is returned by every derivation when set.
	Err error

	// Calls counts the derivations.
	Calls int

	mu sync.Mutex
}

// DeriveServerSwapKey returns the public key of CreateKey(index).
func (m *MockDeriver) DeriveServerSwapKey(_ context.Context, index uint32,
	_ string) (*btcec.PublicKey, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++

	if m.Err != nil {
		return nil, m.Err
	}

	_, pubKey := CreateKey(int32(index))

	return pubKey, nil
}

// CallCount returns the number of derivations so far.
func (m *MockDeriver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Calls
}
