package watch

import (
	"context"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/invoice"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightninglabs/swapwatch/test"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const (
	testIndex  = 3
	testTokens = 50000
	testHeight = 700000
)

var errStoreDown = errors.New("store down")

// failingStore fails every read or write when the matching flag is set.
type failingStore struct {
	cache.Store

	failReads  bool
	failWrites bool
	reads      atomic.Int32
}

func (f *failingStore) GetJSON(ctx context.Context, t cache.Type,
	key string, v any) (bool, error) {

	f.reads.Add(1)
	if f.failReads {
		return false, errStoreDown
	}

	return f.Store.GetJSON(ctx, t, key, v)
}

func (f *failingStore) SetJSON(ctx context.Context, t cache.Type,
	key string, v any, ttl time.Duration) error {

	if f.failWrites {
		return errStoreDown
	}

	return f.Store.SetJSON(ctx, t, key, v, ttl)
}

type testContext struct {
	store    *failingStore
	deriver  *test.MockDeriver
	registry *Registry
	lookup   *Lookup
	watch    *Watch
	details  *swap.ScriptDetails
	id       string
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	_, dest := test.CreateKey(testIndex)
	_, refund := test.CreateKey(100)
	_, hash := test.CreatePreimage(9)

	script, err := swap.NewSwapScript(dest, refund, hash, testHeight)
	require.NoError(t, err)

	details, err := swap.DescribeScript(script, netparams.Regtest)
	require.NoError(t, err)

	store := &failingStore{
		Store: cache.NewMemoryStore(clock.NewDefaultClock()),
	}
	deriver := &test.MockDeriver{}

	return &testContext{
		store:    store,
		deriver:  deriver,
		registry: NewRegistry(store, deriver, &invoice.ZpayParser{}),
		lookup:   NewLookup(store, NewLastAddressCache()),
		watch: &Watch{
			ClaimKeyIndex: testIndex,
			Invoice: test.NewInvoice(
				t, netparams.Regtest.Params, hash, 50000000,
			),
			Network:        "regtest",
			RedeemScript:   hex.EncodeToString(script),
			ExpectedTokens: testTokens,
		},
		details: details,
		id:      hash.String(),
	}
}

// TestRegisterThenLookup asserts that every derived address resolves to the
// registered swap.
func TestRegisterThenLookup(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	require.NoError(t, c.registry.RegisterWatch(ctx, c.watch))

	expected := &WatchedOutput{
		Index:   testIndex,
		Invoice: c.watch.Invoice,
		Script:  c.watch.RedeemScript,
		Tokens:  testTokens,
		Type:    FundingType,
	}

	require.Len(t, c.details.Addresses(), 3)
	for _, addr := range c.details.Addresses() {
		watched, err := c.lookup.LookupWatchedOutput(
			ctx, addr, "regtest",
		)
		require.NoError(t, err)
		require.Equal(t, expected, watched)
	}

	// The invoice row is keyed by the invoice id.
	var row invoiceRow
	found, err := c.store.GetJSON(ctx, cache.TypeInvoice, c.id, &row)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, c.watch.Invoice, row.Invoice)

	// Registering again rewrites the same rows.
	require.NoError(t, c.registry.RegisterWatch(ctx, c.watch))
}

// TestSwapTimeout asserts that the rows of a registered swap stop resolving
// once they expire, even for an address held by the last address cache.
func TestSwapTimeout(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	testClock := clock.NewTestClock(time.Unix(1700000000, 0))
	store := cache.NewMemoryStore(testClock)
	registry := NewRegistry(store, c.deriver, &invoice.ZpayParser{})
	lookup := NewLookup(store, NewLastAddressCache())

	require.NoError(t, registry.RegisterWatch(ctx, c.watch))

	testClock.SetTime(testClock.Now().Add(SwapTimeout - time.Second))

	watched, err := lookup.LookupWatchedOutput(
		ctx, c.details.P2wshAddress, "regtest",
	)
	require.NoError(t, err)
	require.NotNil(t, watched)

	testClock.SetTime(testClock.Now().Add(2 * time.Second))

	for _, addr := range c.details.Addresses() {
		watched, err := lookup.LookupWatchedOutput(
			ctx, addr, "regtest",
		)
		require.NoError(t, err)
		require.Nil(t, watched)
	}
}

// TestLookupUnknownAddress asserts that unwatched addresses are not an error.
func TestLookupUnknownAddress(t *testing.T) {
	c := newTestContext(t)

	watched, err := c.lookup.LookupWatchedOutput(
		context.Background(), c.details.P2wshAddress, "regtest",
	)
	require.NoError(t, err)
	require.Nil(t, watched)
}

// TestLookupLastAddress asserts that repeated lookups of the same address
// skip the swap pointer read.
func TestLookupLastAddress(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	require.NoError(t, c.registry.RegisterWatch(ctx, c.watch))

	addr := c.details.P2wshAddress
	_, err := c.lookup.LookupWatchedOutput(ctx, addr, "regtest")
	require.NoError(t, err)
	require.EqualValues(t, 3, c.store.reads.Load())

	watched, err := c.lookup.LookupWatchedOutput(ctx, addr, "regtest")
	require.NoError(t, err)
	require.NotNil(t, watched)
	require.EqualValues(t, 5, c.store.reads.Load())

	// Another address of the same network replaces the entry.
	_, err = c.lookup.LookupWatchedOutput(
		ctx, c.details.P2shAddress, "regtest",
	)
	require.NoError(t, err)
	require.EqualValues(t, 8, c.store.reads.Load())

	_, ok := c.lookup.last.get("regtest", addr)
	require.False(t, ok)

	_, ok = c.lookup.last.get("testnet", c.details.P2shAddress)
	require.False(t, ok)
}

// TestLookupIncompleteSwap asserts that missing key or invoice rows and
// undecodable scripts resolve to nothing.
func TestLookupIncompleteSwap(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	require.NoError(t, c.registry.RegisterWatch(ctx, c.watch))

	// Drop the invoice row by overwriting it with an empty one.
	err := c.store.SetJSON(
		ctx, cache.TypeInvoice, c.id, &invoiceRow{}, time.Hour,
	)
	require.NoError(t, err)

	watched, err := c.lookup.LookupWatchedOutput(
		ctx, c.details.P2wshAddress, "regtest",
	)
	require.NoError(t, err)
	require.Nil(t, watched)

	// A corrupt swap script is swallowed.
	err = c.store.SetJSON(ctx, cache.TypeSwapAddress, "corrupt",
		&swapAddressRow{ID: c.id, Script: "00", Tokens: 1}, time.Hour)
	require.NoError(t, err)

	watched, err = c.lookup.LookupWatchedOutput(ctx, "corrupt", "regtest")
	require.NoError(t, err)
	require.Nil(t, watched)
}

// TestLookupErrors tests input validation and read failures.
func TestLookupErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	_, err := c.lookup.LookupWatchedOutput(ctx, "", "regtest")
	require.ErrorIs(t, err, ErrExpectedAddress)

	_, err = c.lookup.LookupWatchedOutput(ctx, "addr", "")
	require.ErrorIs(t, err, ErrExpectedLookupNetwork)

	_, err = NewLookup(nil, nil).LookupWatchedOutput(ctx, "a", "regtest")
	require.ErrorIs(t, err, ErrExpectedLookupStore)

	c.store.failReads = true
	_, err = c.lookup.LookupWatchedOutput(ctx, "addr", "regtest")
	require.ErrorIs(t, err, ErrCacheRead)
	require.Equal(t, swaperr.KindCacheReadFailed, swaperr.KindOf(err))
}

// TestRegisterWatchErrors tests the failures of RegisterWatch.
func TestRegisterWatchErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*testContext)
		err    error
	}{
		{
			name: "no store",
			modify: func(c *testContext) {
				c.registry.store = nil
			},
			err: ErrExpectedStore,
		},
		{
			name: "no index",
			modify: func(c *testContext) {
				c.watch.ClaimKeyIndex = 0
			},
			err: ErrExpectedKeyIndex,
		},
		{
			name: "no invoice",
			modify: func(c *testContext) {
				c.watch.Invoice = ""
			},
			err: ErrExpectedInvoice,
		},
		{
			name: "no network",
			modify: func(c *testContext) {
				c.watch.Network = ""
			},
			err: ErrExpectedNetwork,
		},
		{
			name: "no script",
			modify: func(c *testContext) {
				c.watch.RedeemScript = ""
			},
			err: ErrExpectedRedeemScript,
		},
		{
			name: "no tokens",
			modify: func(c *testContext) {
				c.watch.ExpectedTokens = 0
			},
			err: ErrExpectedTokens,
		},
		{
			name: "derivation fails",
			modify: func(c *testContext) {
				c.deriver.Err = errors.New("no seed")
			},
			err: ErrDeriveSwapKey,
		},
		{
			name: "invalid invoice",
			modify: func(c *testContext) {
				c.watch.Invoice = "lnbcrt1invalid"
			},
			err: invoice.ErrExpectedValidInvoice,
		},
		{
			name: "invalid script",
			modify: func(c *testContext) {
				c.watch.RedeemScript = "51"
			},
			err: ErrExpectedValidRedeemScript,
		},
		{
			name: "write fails",
			modify: func(c *testContext) {
				c.store.failWrites = true
			},
			err: ErrCacheWrite,
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			c := newTestContext(t)
			test.modify(c)

			err := c.registry.RegisterWatch(ctx, c.watch)
			require.ErrorIs(t, err, test.err)
		})
	}
}
