package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightningnetwork/lnd/keychain"
)

// Deriver derives the server's swap claim keys.
type Deriver interface {
	// DeriveServerSwapKey returns the public key at the given index of the
	// swap key family on the named network.
	DeriveServerSwapKey(ctx context.Context, index uint32,
		network string) (*btcec.PublicKey, error)
}

// ErrNoSeed is returned by NoSeedDeriver.
var ErrNoSeed = errors.New("no key derivation seed configured")

// NoSeedDeriver fails every derivation. It stands in where keys are never
// needed.
type NoSeedDeriver struct{}

// DeriveServerSwapKey always returns ErrNoSeed.
func (NoSeedDeriver) DeriveServerSwapKey(context.Context, uint32,
	string) (*btcec.PublicKey, error) {

	return nil, ErrNoSeed
}

// SeedDeriver derives swap keys from a BIP32 seed along the path
//
//	m/1017'/coin_type'/key_family'/0/index
//
// which mirrors the key locator layout of lnd's keychain.
type SeedDeriver struct {
	seed []byte

	// branches caches the non-hardened branch key per network so only the
	// final step is derived per call.
	branches map[string]*hdkeychain.ExtendedKey

	mu sync.Mutex
}

// NewSeedDeriver returns a deriver for the given seed.
func NewSeedDeriver(seed []byte) (*SeedDeriver, error) {
	if len(seed) < hdkeychain.MinSeedBytes ||
		len(seed) > hdkeychain.MaxSeedBytes {

		return nil, hdkeychain.ErrInvalidSeedLen
	}

	return &SeedDeriver{
		seed:     seed,
		branches: make(map[string]*hdkeychain.ExtendedKey),
	}, nil
}

// A compile time check to ensure SeedDeriver implements Deriver.
var _ Deriver = (*SeedDeriver)(nil)

// DeriveServerSwapKey returns the public key at the given index of the swap
// key family on the named network.
func (s *SeedDeriver) DeriveServerSwapKey(_ context.Context, index uint32,
	network string) (*btcec.PublicKey, error) {

	net, err := netparams.Lookup(network)
	if err != nil {
		return nil, err
	}

	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("key index %d out of range", index)
	}

	branch, err := s.branch(net)
	if err != nil {
		return nil, err
	}

	child, err := branch.Derive(index)
	if err != nil {
		return nil, err
	}

	return child.ECPubKey()
}

// branch returns the external branch key of the swap key family.
func (s *SeedDeriver) branch(
	net *netparams.Network) (*hdkeychain.ExtendedKey, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if branch, ok := s.branches[net.Name]; ok {
		return branch, nil
	}

	master, err := hdkeychain.NewMaster(s.seed, net.Params)
	if err != nil {
		return nil, err
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + keychain.BIP0043Purpose,
		hdkeychain.HardenedKeyStart + net.CoinType,
		hdkeychain.HardenedKeyStart + swap.KeyFamily,
		0,
	}

	key := master
	for _, step := range path {
		key, err = key.Derive(step)
		if err != nil {
			return nil, err
		}
	}

	s.branches[net.Name] = key

	return key, nil
}
