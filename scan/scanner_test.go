package scan

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/invoice"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/test"
	"github.com/lightninglabs/swapwatch/watch"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

const (
	testIndex  = 3
	testTokens = 50000
	testHeight = 700000
)

type testContext struct {
	scanner  *Scanner
	pool     *pool.Pool
	details  *swap.ScriptDetails
	invoice  string
	preimage lntypes.Preimage
	swapID   string
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	ctx := context.Background()

	_, dest := test.CreateKey(testIndex)
	_, refund := test.CreateKey(100)
	preimage, hash := test.CreatePreimage(9)

	script, err := swap.NewSwapScript(dest, refund, hash, testHeight)
	require.NoError(t, err)

	details, err := swap.DescribeScript(script, netparams.Regtest)
	require.NoError(t, err)

	store := cache.NewMemoryStore(clock.NewDefaultClock())
	registry := watch.NewRegistry(
		store, &test.MockDeriver{}, &invoice.ZpayParser{},
	)
	lookup := watch.NewLookup(store, watch.NewLastAddressCache())
	p := pool.NewPool(store, nil)

	payReq := test.NewInvoice(t, netparams.Regtest.Params, hash, 50000000)
	require.NoError(t, registry.RegisterWatch(ctx, &watch.Watch{
		ClaimKeyIndex:  testIndex,
		Invoice:        payReq,
		Network:        "regtest",
		RedeemScript:   hex.EncodeToString(script),
		ExpectedTokens: testTokens,
	}))

	return &testContext{
		scanner:  NewScanner(lookup, p),
		pool:     p,
		details:  details,
		invoice:  payReq,
		preimage: preimage,
		swapID:   hash.String(),
	}
}

// fundingTx pays the swap's native witness address next to an unrelated
// output.
func (c *testContext) fundingTx(t *testing.T) *wire.MsgTx {
	_, other := test.CreateKey(50)
	otherAddr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(other.SerializeCompressed()),
		netparams.Regtest.Params,
	)
	require.NoError(t, err)

	otherScript, err := txscript.PayToAddrScript(otherAddr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 4},
		Witness:          wire.TxWitness{{1}, {2}},
	})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: otherScript})
	tx.AddTxOut(&wire.TxOut{
		Value:    testTokens,
		PkScript: c.details.P2wshOutputScript,
	})

	return tx
}

// claimTx spends the funding output revealing the preimage.
func (c *testContext) claimTx(funding *wire.MsgTx) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  funding.TxHash(),
			Index: 1,
		},
		Witness: wire.TxWitness{
			make([]byte, 71), c.preimage[:],
			c.details.RedeemScript,
		},
	})
	tx.AddTxOut(&wire.TxOut{Value: testTokens - 500, PkScript: []byte{0}})

	return tx
}

// refundTx spends a p2sh output of the swap through the timeout branch.
func (c *testContext) refundTx(t *testing.T) *wire.MsgTx {
	sigScript, err := txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddOp(txscript.OP_0).
		AddData(c.details.RedeemScript).
		Script()
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.LockTime = testHeight
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{7}},
		SignatureScript:  sigScript,
	})
	tx.AddTxOut(&wire.TxOut{Value: testTokens - 500, PkScript: []byte{0}})

	return tx
}

// TestScanTransaction asserts that the funding, claim and refund of a
// registered swap end up in its element set.
func TestScanTransaction(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	funding := c.fundingTx(t)
	elements, err := c.scanner.ScanTransaction(
		ctx, "regtest", funding, "",
	)
	require.NoError(t, err)
	require.Equal(t, []pool.Element{&pool.Funding{
		ID:      funding.TxHash().String(),
		Index:   testIndex,
		Invoice: c.invoice,
		Network: "regtest",
		Output:  hex.EncodeToString(c.details.P2wshOutputScript),
		Script:  hex.EncodeToString(c.details.RedeemScript),
		Tokens:  testTokens,
		Vout:    1,
	}}, elements)

	claim := c.claimTx(funding)
	block := chainhash.Hash{1}.String()
	elements, err = c.scanner.ScanTransaction(ctx, "regtest", claim, block)
	require.NoError(t, err)
	require.Equal(t, []pool.Element{&pool.Claim{
		Block:    block,
		ID:       claim.TxHash().String(),
		Invoice:  c.invoice,
		Network:  "regtest",
		Outpoint: funding.TxHash().String() + ":1",
		Preimage: c.preimage.String(),
		Script:   hex.EncodeToString(c.details.RedeemScript),
	}}, elements)

	refund := c.refundTx(t)
	elements, err = c.scanner.ScanTransaction(ctx, "regtest", refund, "")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	require.IsType(t, &pool.Refund{}, elements[0])

	stored, err := c.pool.SwapElements(ctx, c.swapID)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	interesting, err := c.pool.IsInterestingTransaction(
		ctx, "regtest", claim.TxHash().String(),
	)
	require.NoError(t, err)
	require.True(t, interesting)
}

// TestScanUnrelatedTransaction asserts that transactions of other networks
// or scripts are ignored.
func TestScanUnrelatedTransaction(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	funding := c.fundingTx(t)

	// The same output script resolves to a different address on testnet.
	elements, err := c.scanner.ScanTransaction(
		ctx, "testnet", funding, "",
	)
	require.NoError(t, err)
	require.Empty(t, elements)

	_, err = c.scanner.ScanTransaction(ctx, "unknown", funding, "")
	require.ErrorIs(t, err, netparams.ErrUnknownNetwork)
}

func TestScanBlock(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	funding := c.fundingTx(t)
	block := wire.NewMsgBlock(&wire.BlockHeader{Version: 4})
	require.NoError(t, block.AddTransaction(funding))
	require.NoError(t, block.AddTransaction(c.claimTx(funding)))

	elements, err := c.scanner.ScanBlock(ctx, "regtest", block)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	blockHash := block.BlockHash().String()
	for _, element := range elements {
		switch e := element.(type) {
		case *pool.Funding:
			require.Equal(t, blockHash, e.Block)

		case *pool.Claim:
			require.Equal(t, blockHash, e.Block)

		default:
			t.Fatalf("unexpected element %T", element)
		}
	}
}

// TestScanBlockZeroValueOutput asserts that an output without value paying
// to the swap is recorded like any other funding.
func TestScanBlockZeroValueOutput(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	dust := wire.NewMsgTx(2)
	dust.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 9},
		Witness:          wire.TxWitness{{1}},
	})
	dust.AddTxOut(&wire.TxOut{
		Value:    0,
		PkScript: c.details.P2wshOutputScript,
	})

	block := wire.NewMsgBlock(&wire.BlockHeader{Version: 4})
	require.NoError(t, block.AddTransaction(dust))
	require.NoError(t, block.AddTransaction(c.fundingTx(t)))

	elements, err := c.scanner.ScanBlock(ctx, "regtest", block)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	stored, err := c.pool.SwapElements(ctx, c.swapID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

// rejectingSink fails fundings with err and passes everything else on.
type rejectingSink struct {
	ElementSink
	err error
}

func (r *rejectingSink) AddDetectedSwap(ctx context.Context, swapID string,
	element pool.Element) error {

	if _, ok := element.(*pool.Funding); ok {
		return r.err
	}

	return r.ElementSink.AddDetectedSwap(ctx, swapID, element)
}

// TestScanRejectedElement asserts that an element the sink refuses is
// skipped without stopping the block scan, while store failures abort it.
func TestScanRejectedElement(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	funding := c.fundingTx(t)
	block := wire.NewMsgBlock(&wire.BlockHeader{Version: 4})
	require.NoError(t, block.AddTransaction(funding))
	require.NoError(t, block.AddTransaction(c.claimTx(funding)))

	scanner := NewScanner(c.scanner.lookup, &rejectingSink{
		ElementSink: c.pool,
		err:         pool.ErrExpectedFundingTokens,
	})
	elements, err := scanner.ScanBlock(ctx, "regtest", block)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	require.IsType(t, &pool.Claim{}, elements[0])

	scanner = NewScanner(c.scanner.lookup, &rejectingSink{
		ElementSink: c.pool,
		err:         pool.ErrCacheWrite,
	})
	_, err = scanner.ScanBlock(ctx, "regtest", block)
	require.ErrorIs(t, err, pool.ErrCacheWrite)
}

type failingLookup struct{}

func (failingLookup) LookupWatchedOutput(context.Context, string,
	string) (*watch.WatchedOutput, error) {

	return nil, errors.New("lookup down")
}

func TestScanLookupFailure(t *testing.T) {
	c := newTestContext(t)
	scanner := NewScanner(failingLookup{}, c.pool)

	_, err := scanner.ScanTransaction(
		context.Background(), "regtest", c.fundingTx(t), "",
	)
	require.Error(t, err)
}
