package swap

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/address"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/test"
	"github.com/stretchr/testify/require"
)

const testHeight = 700000

// newTestScript returns a refund public key swap script.
func newTestScript(t *testing.T) []byte {
	t.Helper()

	_, dest := test.CreateKey(1)
	_, refund := test.CreateKey(2)
	_, hash := test.CreatePreimage(1)

	script, err := NewSwapScript(dest, refund, hash, testHeight)
	require.NoError(t, err)

	return script
}

func requireOutputScript(t *testing.T, addr string, net *netparams.Network,
	expected []byte) {

	t.Helper()

	decoded, err := btcutil.DecodeAddress(addr, net.Params)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)
	require.Equal(t, expected, pkScript)
}

// TestDescribeScript tests decoding of the refund public key swap script and
// that every derived address classifies as the expected type.
func TestDescribeScript(t *testing.T) {
	_, dest := test.CreateKey(1)
	_, refund := test.CreateKey(2)
	_, hash := test.CreatePreimage(1)
	script := newTestScript(t)

	details, err := Describe(hex.EncodeToString(script), "regtest")
	require.NoError(t, err)

	require.Equal(t, RefundPubKeyForm, details.Form)
	require.True(t, details.DestinationPublicKey.IsEqual(dest))
	require.True(t, details.RefundPublicKey.IsSome())
	require.Equal(
		t, btcutil.Hash160(refund.SerializeCompressed()),
		details.RefundPublicKeyHash,
	)
	require.Equal(t, hash, details.PaymentHash)
	require.EqualValues(t, testHeight, details.TimelockBlockHeight)
	require.Equal(t, script, details.RedeemScript)

	require.Empty(t, details.BchP2shAddress)
	require.Len(t, details.Addresses(), 3)

	expectedTypes := map[string]address.Type{
		details.P2shAddress:      address.TypeP2SH,
		details.P2shP2wshAddress: address.TypeP2SH,
		details.P2wshAddress:     address.TypeP2WSH,
	}
	for addr, addrType := range expectedTypes {
		classified, err := address.Classify(addr, "regtest")
		require.NoError(t, err)
		require.Equal(t, addrType, classified.Type)
	}

	requireOutputScript(
		t, details.P2shAddress, netparams.Regtest,
		details.P2shOutputScript,
	)
	requireOutputScript(
		t, details.P2shP2wshAddress, netparams.Regtest,
		details.P2shP2wshOutputScript,
	)
	requireOutputScript(
		t, details.P2wshAddress, netparams.Regtest,
		details.P2wshOutputScript,
	)
}

// TestDescribePkHashScript tests decoding of the refund key hash form.
func TestDescribePkHashScript(t *testing.T) {
	_, dest := test.CreateKey(1)
	_, hash := test.CreatePreimage(2)
	pkHash := bytes.Repeat([]byte{0xab}, 20)

	script, err := NewPkHashSwapScript(dest, pkHash, hash, 144)
	require.NoError(t, err)

	details, err := DescribeScript(script, netparams.Litecoin)
	require.NoError(t, err)

	require.Equal(t, RefundPkHashForm, details.Form)
	require.True(t, details.RefundPublicKey.IsNone())
	require.Equal(t, pkHash, details.RefundPublicKeyHash)
	require.Equal(t, hash, details.PaymentHash)
	require.EqualValues(t, 144, details.TimelockBlockHeight)

	classified, err := address.Classify(details.P2wshAddress, "litecoin")
	require.NoError(t, err)
	require.Equal(t, address.TypeP2WSH, classified.Type)

	_, err = NewPkHashSwapScript(dest, pkHash[:19], hash, 144)
	require.Error(t, err)
}

// TestDescribeCashScript asserts that cash networks only derive the legacy
// and cash address families, and that both encode the same hash.
func TestDescribeCashScript(t *testing.T) {
	script := newTestScript(t)

	details, err := DescribeScript(script, netparams.BitcoinCash)
	require.NoError(t, err)

	require.NotEmpty(t, details.BchP2shAddress)
	require.NotEmpty(t, details.P2shAddress)
	require.Empty(t, details.P2wshAddress)
	require.Empty(t, details.P2shP2wshAddress)
	require.Nil(t, details.P2wshOutputScript)

	cash, err := address.Classify(details.BchP2shAddress, "bitcoincash")
	require.NoError(t, err)

	legacy, err := address.Classify(details.P2shAddress, "bitcoincash")
	require.NoError(t, err)

	require.Equal(t, address.TypeP2SH, cash.Type)
	require.Equal(t, legacy.Hash, cash.Hash)
	require.Equal(t, btcutil.Hash160(script), cash.Hash)
}

// TestDescribeInvalidScript tests that structural mismatches fail with the
// invalid redeem script error.
func TestDescribeInvalidScript(t *testing.T) {
	_, dest := test.CreateKey(1)
	_, refund := test.CreateKey(2)
	_, hash := test.CreatePreimage(1)
	script := newTestScript(t)

	build := func(height int64, destKey []byte) []byte {
		script, err := txscript.NewScriptBuilder().
			AddOp(txscript.OP_SHA256).
			AddData(hash[:]).
			AddOp(txscript.OP_EQUAL).
			AddOp(txscript.OP_IF).
			AddData(destKey).
			AddOp(txscript.OP_ELSE).
			AddInt64(height).
			AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
			AddOp(txscript.OP_DROP).
			AddData(refund.SerializeCompressed()).
			AddOp(txscript.OP_ENDIF).
			AddOp(txscript.OP_CHECKSIG).
			Script()
		require.NoError(t, err)

		return script
	}

	invalidKey := bytes.Repeat([]byte{0x05}, 33)

	tests := []struct {
		name   string
		script []byte
	}{
		{
			name: "empty",
		},
		{
			name:   "truncated",
			script: script[:len(script)-1],
		},
		{
			name:   "trailing opcode",
			script: append(append([]byte{}, script...), 0x51),
		},
		{
			name:   "wrong opcode",
			script: append([]byte{txscript.OP_HASH160}, script[1:]...),
		},
		{
			name:   "zero height",
			script: build(0, dest.SerializeCompressed()),
		},
		{
			name:   "negative height",
			script: build(-5, dest.SerializeCompressed()),
		},
		{
			name: "timestamp lock",
			script: build(
				txscript.LockTimeThreshold,
				dest.SerializeCompressed(),
			),
		},
		{
			name:   "invalid destination key",
			script: build(testHeight, invalidKey),
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			_, err := DescribeScript(test.script, netparams.Regtest)
			require.ErrorIs(t, err, ErrInvalidRedeemScript)
		})
	}

	_, err := Describe("zz", "regtest")
	require.ErrorIs(t, err, ErrInvalidRedeemScript)

	_, err = Describe(hex.EncodeToString(script), "nope")
	require.ErrorIs(t, err, netparams.ErrUnknownNetwork)
}

// TestDecodeScriptNum tests the refund height number decoding.
func TestDecodeScriptNum(t *testing.T) {
	tests := []struct {
		data     []byte
		expected int64
		err      bool
	}{
		{data: nil, expected: 0},
		{data: []byte{0x01}, expected: 1},
		{data: []byte{0x81}, expected: -1},
		{data: []byte{0x60, 0xae, 0x0a}, expected: 700000},
		{data: []byte{0x80, 0x00}, expected: 128},
		{data: []byte{0x00}, err: true},
		{data: []byte{0x01, 0x00}, err: true},
		{data: []byte{1, 2, 3, 4, 5, 6}, err: true},
	}

	for _, test := range tests {
		num, err := decodeScriptNum(test.data)
		if test.err {
			require.Error(t, err, "data %x", test.data)
			continue
		}

		require.NoError(t, err, "data %x", test.data)
		require.Equal(t, test.expected, num)
	}
}

// TestClassifySpend tests claim and refund detection for witness and p2sh
// spends.
func TestClassifySpend(t *testing.T) {
	script := newTestScript(t)
	preimage, hash := test.CreatePreimage(1)
	sig := bytes.Repeat([]byte{0x30}, 71)

	claim := &wire.TxIn{
		Witness: wire.TxWitness{sig, preimage[:], script},
	}
	spend, ok := ClassifySpend(claim)
	require.True(t, ok)
	require.Equal(t, SpendClaim, spend.Type)
	require.Equal(t, preimage, spend.Preimage)
	require.Equal(t, hash, spend.PaymentHash)
	require.Equal(t, script, spend.RedeemScript)

	refund := &wire.TxIn{
		Witness: wire.TxWitness{sig, {}, script},
	}
	spend, ok = ClassifySpend(refund)
	require.True(t, ok)
	require.Equal(t, SpendRefund, spend.Type)

	sigScript, err := txscript.NewScriptBuilder().
		AddData(sig).
		AddData(preimage[:]).
		AddData(script).
		Script()
	require.NoError(t, err)

	spend, ok = ClassifySpend(&wire.TxIn{SignatureScript: sigScript})
	require.True(t, ok)
	require.Equal(t, SpendClaim, spend.Type)
	require.Equal(t, "claim", spend.Type.String())

	// A key spend is not a swap spend.
	_, pubKey := test.CreateKey(3)
	_, ok = ClassifySpend(&wire.TxIn{
		Witness: wire.TxWitness{sig, pubKey.SerializeCompressed()},
	})
	require.False(t, ok)

	_, ok = ClassifySpend(&wire.TxIn{})
	require.False(t, ok)
}
