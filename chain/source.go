package chain

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

// ErrNotFound is returned when the requested block or transaction is not
// known to the chain backend.
var ErrNotFound = errors.New("not found")

// BlockMetadata is the part of a block needed to follow the chain.
type BlockMetadata struct {
	// Hash is the block hash.
	Hash string `json:"hash"`

	// Height is the block height.
	Height int64 `json:"height"`

	// PreviousHash is the hash of the parent block.
	PreviousHash string `json:"previous_hash"`

	// TransactionIDs are the ids of the transactions in the block.
	TransactionIDs []string `json:"transaction_ids"`
}

// Utxo is an unspent transaction output.
type Utxo struct {
	// Confirmations is the number of confirmations of the output, zero
	// while it is in the mempool.
	Confirmations int64

	// Output is the hex encoded output script.
	Output string

	// Tokens is the value of the output.
	Tokens int64
}

// Source is a view of the chain of a single network.
type Source interface {
	// Network returns the name of the network the source follows.
	Network() string

	// BestBlock returns the hash and height of the chain tip.
	BestBlock(ctx context.Context) (string, int64, error)

	// BlockMetadata returns the metadata of a block.
	BlockMetadata(ctx context.Context, hash string) (*BlockMetadata,
		error)

	// Block returns a full block.
	Block(ctx context.Context, hash string) (*wire.MsgBlock, error)

	// Transaction returns a transaction of the mempool or the chain.
	Transaction(ctx context.Context, txid string) (*wire.MsgTx, error)

	// Mempool returns the ids of the unconfirmed transactions.
	Mempool(ctx context.Context) ([]string, error)

	// Utxo returns an unspent output. Nil is returned if the output is
	// spent or unknown.
	Utxo(ctx context.Context, outpoint wire.OutPoint) (*Utxo, error)

	// FeeRate returns the fee rate estimated to confirm within the
	// target number of blocks.
	FeeRate(ctx context.Context, confTarget uint32) (chainfee.SatPerKWeight,
		error)

	// Broadcast publishes a transaction and returns its id.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error)
}
