package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/stretchr/testify/require"
)

// TestLookup asserts the capabilities of the registered networks.
func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		segwit    bool
		cash      bool
		bech32HRP string
	}{
		{name: "bitcoin", segwit: true, bech32HRP: "bc"},
		{name: "testnet", segwit: true, bech32HRP: "tb"},
		{name: "regtest", segwit: true, bech32HRP: "bcrt"},
		{name: "bitcoincash", cash: true},
		{name: "bitcoincashtestnet", cash: true},
		{name: "bitcoincashregtest", cash: true},
		{name: "litecoin", segwit: true, bech32HRP: "ltc"},
		{name: "ltctestnet", segwit: true, bech32HRP: "tltc"},
		{name: "ltcregtest", segwit: true, bech32HRP: "rltc"},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			n, err := Lookup(test.name)
			require.NoError(t, err)

			require.Equal(t, test.name, n.Name)
			require.Equal(t, test.name, n.Params.Name)
			require.Equal(t, test.segwit, n.Segwit)
			require.Equal(t, test.cash, n.IsCashAddressNetwork())
			require.Equal(t, test.bech32HRP, n.Params.Bech32HRPSegwit)
		})
	}

	require.Len(t, Names(), len(tests))
}

// TestLitecoinMagics asserts that litecoin version bytes are copied onto the
// btcd typed parameters.
func TestLitecoinMagics(t *testing.T) {
	require.Equal(t, byte(0x30), Litecoin.Params.PubKeyHashAddrID)
	require.Equal(t, byte(0x32), Litecoin.Params.ScriptHashAddrID)

	// Litecoin regtest witness addresses must not collide with bitcoin
	// regtest ones.
	require.Equal(t, "rltc", LitecoinRegtest.Params.Bech32HRPSegwit)
	require.NotEqual(
		t, Regtest.Params.Bech32HRPSegwit,
		LitecoinRegtest.Params.Bech32HRPSegwit,
	)

	// The bitcoin parameters must be left untouched.
	require.Equal(t, byte(0x00), Bitcoin.Params.PubKeyHashAddrID)
	require.Equal(t, byte(0x05), Bitcoin.Params.ScriptHashAddrID)
	require.Equal(t, "mainnet", chaincfg.MainNetParams.Name)
	require.Equal(t, "bcrt", chaincfg.RegressionNetParams.Bech32HRPSegwit)
}

// TestLookupUnknown asserts that an unknown network is a validation error.
func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("dogecoin")
	require.ErrorIs(t, err, ErrUnknownNetwork)
	require.Equal(t, swaperr.KindValidation, swaperr.KindOf(err))
}
