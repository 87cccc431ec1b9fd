package keys

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/stretchr/testify/require"
)

// TestSeedDeriver asserts that derivation is deterministic per index and
// separated per coin type.
func TestSeedDeriver(t *testing.T) {
	ctx := context.Background()
	seed := bytes.Repeat([]byte{0x42}, hdkeychain.RecommendedSeedLen)

	deriver, err := NewSeedDeriver(seed)
	require.NoError(t, err)

	first, err := deriver.DeriveServerSwapKey(ctx, 3, "regtest")
	require.NoError(t, err)

	again, err := deriver.DeriveServerSwapKey(ctx, 3, "regtest")
	require.NoError(t, err)
	require.True(t, first.IsEqual(again))

	// A fresh deriver without the cached branch derives the same key.
	fresh, err := NewSeedDeriver(seed)
	require.NoError(t, err)

	again, err = fresh.DeriveServerSwapKey(ctx, 3, "regtest")
	require.NoError(t, err)
	require.True(t, first.IsEqual(again))

	other, err := deriver.DeriveServerSwapKey(ctx, 4, "regtest")
	require.NoError(t, err)
	require.False(t, first.IsEqual(other))

	// Testnet and regtest share their coin type, mainnet does not.
	testnet, err := deriver.DeriveServerSwapKey(ctx, 3, "testnet")
	require.NoError(t, err)
	require.True(t, first.IsEqual(testnet))

	mainnet, err := deriver.DeriveServerSwapKey(ctx, 3, "bitcoin")
	require.NoError(t, err)
	require.False(t, first.IsEqual(mainnet))
}

// TestSeedDeriverErrors tests the input validation of the seed deriver.
func TestSeedDeriverErrors(t *testing.T) {
	_, err := NewSeedDeriver([]byte{1})
	require.ErrorIs(t, err, hdkeychain.ErrInvalidSeedLen)

	deriver, err := NewSeedDeriver(
		bytes.Repeat([]byte{1}, hdkeychain.RecommendedSeedLen),
	)
	require.NoError(t, err)

	_, err = deriver.DeriveServerSwapKey(context.Background(), 1, "nope")
	require.ErrorIs(t, err, netparams.ErrUnknownNetwork)

	_, err = deriver.DeriveServerSwapKey(
		context.Background(), hdkeychain.HardenedKeyStart, "regtest",
	)
	require.Error(t, err)
}

func TestNoSeedDeriver(t *testing.T) {
	var deriver Deriver = NoSeedDeriver{}

	_, err := deriver.DeriveServerSwapKey(context.Background(), 1, "regtest")
	require.ErrorIs(t, err, ErrNoSeed)
}
