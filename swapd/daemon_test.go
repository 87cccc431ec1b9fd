package swapd

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/chain"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/test"
	"github.com/lightninglabs/swapwatch/watch"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

type daemonContext struct {
	daemon   *Daemon
	source   *chain.MockSource
	service  *swapwatch.Service
	details  *swap.ScriptDetails
	preimage lntypes.Preimage
	swapID   string
}

func newDaemonContext(t *testing.T, rescanDepth uint32) *daemonContext {
	t.Helper()

	ctx := context.Background()
	store := cache.NewMemoryStore(clock.NewDefaultClock())

	service, err := swapwatch.New(&swapwatch.Config{
		Store:   store,
		Deriver: &test.MockDeriver{},
	})
	require.NoError(t, err)

	_, dest := test.CreateKey(3)
	_, refund := test.CreateKey(100)
	preimage, hash := test.CreatePreimage(9)

	script, err := swap.NewSwapScript(dest, refund, hash, 700000)
	require.NoError(t, err)

	details, err := swap.DescribeScript(script, netparams.Regtest)
	require.NoError(t, err)

	require.NoError(t, service.RegisterWatch(ctx, &watch.Watch{
		ClaimKeyIndex: 3,
		Invoice: test.NewInvoice(
			t, netparams.Regtest.Params, hash, 50000000,
		),
		Network:        "regtest",
		RedeemScript:   hex.EncodeToString(script),
		ExpectedTokens: 50000,
	}))

	cfg := DefaultConfig()
	cfg.Network = "regtest"
	cfg.RescanDepth = rescanDepth

	source := chain.NewMockSource("regtest")

	return &daemonContext{
		daemon:   New(&cfg, service, source, store),
		source:   source,
		service:  service,
		details:  details,
		preimage: preimage,
		swapID:   hash.String(),
	}
}

func (c *daemonContext) fundingTx(lockTime uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.LockTime = lockTime
	tx.AddTxIn(&wire.TxIn{})
	tx.AddTxOut(&wire.TxOut{
		Value:    50000,
		PkScript: c.details.P2wshOutputScript,
	})

	return tx
}

func (c *daemonContext) claimTx(funding *wire.MsgTx) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: funding.TxHash()},
		Witness: wire.TxWitness{
			make([]byte, 72), c.preimage[:], c.details.RedeemScript,
		},
	})
	tx.AddTxOut(&wire.TxOut{Value: 49000, PkScript: []byte{0x51}})

	return tx
}

func (c *daemonContext) elements(t *testing.T) []pool.Element {
	elements, err := c.service.SwapElements(
		context.Background(), c.swapID,
	)
	require.NoError(t, err)

	return elements
}

// TestDaemonPoll asserts that mempool transactions and new blocks are
// scanned once.
func TestDaemonPoll(t *testing.T) {
	ctx := context.Background()
	c := newDaemonContext(t, 6)

	c.source.AddBlock()
	require.NoError(t, c.daemon.poll(ctx))
	require.Empty(t, c.elements(t))

	funding := c.fundingTx(1)
	c.source.AddMempoolTx(funding)
	require.NoError(t, c.daemon.poll(ctx))
	require.Len(t, c.elements(t), 1)

	// Polling again without changes does not fetch anything new.
	require.NoError(t, c.daemon.poll(ctx))
	require.Len(t, c.elements(t), 1)

	// Confirming the funding and its claim adds the confirmed elements.
	claim := c.claimTx(funding)
	blockHash := c.source.AddBlock(funding, claim)
	require.NoError(t, c.daemon.poll(ctx))

	elements := c.elements(t)
	require.Len(t, elements, 3)

	interesting, err := c.service.IsInterestingTransaction(
		ctx, "regtest", claim.TxHash().String(),
	)
	require.NoError(t, err)
	require.True(t, interesting)
	require.Equal(t, blockHash, c.daemon.lastTip)
}

// TestDaemonRescanDepth asserts that no more than the rescan depth of blocks
// is scanned after a gap.
func TestDaemonRescanDepth(t *testing.T) {
	ctx := context.Background()
	c := newDaemonContext(t, 2)

	c.source.AddBlock(c.fundingTx(1))
	c.source.AddBlock(c.fundingTx(2))
	c.source.AddBlock(c.fundingTx(3))

	require.NoError(t, c.daemon.poll(ctx))
	require.Len(t, c.elements(t), 2)
	require.Len(t, c.daemon.scanned, 2)

	// Later blocks stop at the last scanned one.
	c.source.AddBlock(c.fundingTx(4))
	require.NoError(t, c.daemon.poll(ctx))
	require.Len(t, c.elements(t), 3)

	c.source.AddBlock()
	c.source.AddBlock()
	require.NoError(t, c.daemon.poll(ctx))
	require.Len(t, c.daemon.scanned, 4)
	require.Len(t, c.daemon.scannedSet, 4)
}

// TestDaemonStartStop asserts that the poll loop scans on ticks and shuts
// down cleanly.
func TestDaemonStartStop(t *testing.T) {
	defer test.Guard(t)()

	c := newDaemonContext(t, 6)

	pollTicker := ticker.NewForce(time.Hour)
	c.daemon.pollTicker = pollTicker
	c.daemon.purgeTicker = ticker.NewForce(time.Hour)

	require.NoError(t, c.daemon.Start())

	c.source.AddBlock(c.fundingTx(1))

	select {
	case pollTicker.Force <- time.Now():
	case <-time.After(test.Timeout):
		t.Fatal("poll loop not running")
	}

	require.Eventually(t, func() bool {
		elements, err := c.service.SwapElements(
			context.Background(), c.swapID,
		)

		return err == nil && len(elements) == 1
	}, test.Timeout, 10*time.Millisecond)

	c.daemon.Stop()
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	testClock := clock.NewTestClock(time.Unix(1700000000, 0))
	store := cache.NewMemoryStore(testClock)

	require.NoError(t, store.SetJSON(
		ctx, cache.TypeInvoice, "id", "invoice", time.Minute,
	))

	cfg := DefaultConfig()
	d := New(&cfg, nil, chain.NewMockSource("regtest"), store)

	testClock.SetTime(testClock.Now().Add(time.Hour))
	d.purge(ctx)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}
