package test

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

var (
	// Timeout is the default timeout when tests wait for something to
	// happen.
	Timeout = time.Second * 5

	// invoiceTimestamp keeps encoded invoices stable across runs.
	invoiceTimestamp = time.Unix(1700000000, 0)
)

// EncodePayReq encodes a zpay32 invoice with a fixed key.
func EncodePayReq(payReq *zpay32.Invoice) (string, error) {
	privKey, _ := CreateKey(5)

	return payReq.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := chainhash.HashB(msg)

			return ecdsa.SignCompact(privKey, hash, true), nil
		},
	})
}

// NewInvoice returns an encoded invoice for the payment hash on the given
// chain.
func NewInvoice(t *testing.T, params *chaincfg.Params, hash lntypes.Hash,
	amt lnwire.MilliSatoshi) string {

	t.Helper()

	var paymentAddr [32]byte
	copy(paymentAddr[:], hash[:])
	paymentAddr[0] ^= 0xff

	payReq, err := zpay32.NewInvoice(
		params, hash, invoiceTimestamp,
		zpay32.Amount(amt),
		zpay32.Description("swap"),
		zpay32.PaymentAddr(paymentAddr),
	)
	require.NoError(t, err)

	encoded, err := EncodePayReq(payReq)
	require.NoError(t, err)

	return encoded
}
