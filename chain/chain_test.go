package chain

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/stretchr/testify/require"
)

func testTx(lockTime uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.LockTime = lockTime
	tx.AddTxIn(&wire.TxIn{})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})

	return tx
}

// TestMetadataCache asserts that block metadata is served from the cache
// until it expires.
func TestMetadataCache(t *testing.T) {
	ctx := context.Background()
	testClock := clock.NewTestClock(time.Unix(1700000000, 0))

	source := NewMockSource("regtest")
	first := source.AddBlock(testTx(1))
	second := source.AddBlock(testTx(2), testTx(3))

	metadataCache := NewMetadataCache(
		source, cache.NewMemoryStore(testClock),
	)

	metadata, err := metadataCache.BlockMetadata(ctx, second)
	require.NoError(t, err)
	require.Equal(t, first, metadata.PreviousHash)
	require.Equal(t, int64(2), metadata.Height)
	require.Len(t, metadata.TransactionIDs, 2)
	require.Equal(t, 1, source.MetadataCalls())

	cached, err := metadataCache.BlockMetadata(ctx, second)
	require.NoError(t, err)
	require.Equal(t, metadata, cached)
	require.Equal(t, 1, source.MetadataCalls())

	testClock.SetTime(testClock.Now().Add(MetadataTimeout + time.Second))

	_, err = metadataCache.BlockMetadata(ctx, second)
	require.NoError(t, err)
	require.Equal(t, 2, source.MetadataCalls())

	// Misses are not cached.
	_, err = metadataCache.BlockMetadata(ctx, "00")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = metadataCache.BlockMetadata(ctx, "00")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 4, source.MetadataCalls())

	// The genesis block of the mock has no parent.
	genesis, err := metadataCache.BlockMetadata(ctx, first)
	require.NoError(t, err)
	require.Empty(t, genesis.PreviousHash)
}

func TestMockSourceMempool(t *testing.T) {
	ctx := context.Background()
	source := NewMockSource("regtest")

	tx := testTx(5)
	txid, err := source.Broadcast(ctx, tx)
	require.NoError(t, err)

	mempool, err := source.Mempool(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{txid}, mempool)

	hash := source.AddBlock(tx)

	mempool, err = source.Mempool(ctx)
	require.NoError(t, err)
	require.Empty(t, mempool)

	tip, height, err := source.BestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, hash, tip)
	require.Equal(t, int64(1), height)

	fetched, err := source.Transaction(ctx, txid)
	require.NoError(t, err)
	require.Equal(t, tx, fetched)
}

func TestFeeRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected chainfee.SatPerKWeight
	}{
		{
			name:     "above floor",
			rate:     0.0002,
			expected: 5000,
		},
		{
			name:     "below floor",
			rate:     0.000001,
			expected: chainfee.FeePerKwFloor,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			rate, err := feeRate(
				testCase.rate, chainfee.FeePerKwFloor,
			)
			require.NoError(t, err)
			require.Equal(t, testCase.expected, rate)
		})
	}
}
