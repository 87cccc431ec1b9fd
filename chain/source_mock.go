package chain

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

// MockSource is an in memory chain for tests. Blocks are added with
// AddBlock, which also moves the tip.
type MockSource struct {
	sync.Mutex

	network  string
	blocks   map[string]*wire.MsgBlock
	heights  map[string]int64
	txs      map[string]*wire.MsgTx
	mempool  []string
	utxos    map[wire.OutPoint]*Utxo
	tip      string
	height   int64
	feeRate  chainfee.SatPerKWeight
	metadata int

	// Broadcasts holds every published transaction.
	Broadcasts []*wire.MsgTx
}

// NewMockSource returns an empty mock chain of the network.
func NewMockSource(network string) *MockSource {
	return &MockSource{
		network: network,
		blocks:  make(map[string]*wire.MsgBlock),
		heights: make(map[string]int64),
		txs:     make(map[string]*wire.MsgTx),
		utxos:   make(map[wire.OutPoint]*Utxo),
		feeRate: chainfee.FeePerKwFloor,
	}
}

// AddBlock mines a block with the transactions on top of the tip and
// returns its hash. Mined transactions leave the mempool.
func (m *MockSource) AddBlock(txs ...*wire.MsgTx) string {
	m.Lock()
	defer m.Unlock()

	header := &wire.BlockHeader{Version: 4, Nonce: uint32(m.height)}
	if m.tip != "" {
		header.PrevBlock = m.blocks[m.tip].BlockHash()
	}

	block := wire.NewMsgBlock(header)
	mined := make(map[string]struct{})
	for _, tx := range txs {
		_ = block.AddTransaction(tx)

		txid := tx.TxHash().String()
		m.txs[txid] = tx
		mined[txid] = struct{}{}
	}

	var mempool []string
	for _, txid := range m.mempool {
		if _, ok := mined[txid]; !ok {
			mempool = append(mempool, txid)
		}
	}
	m.mempool = mempool

	hash := block.BlockHash().String()
	m.blocks[hash] = block
	m.height++
	m.heights[hash] = m.height
	m.tip = hash

	return hash
}

// AddMempoolTx adds an unconfirmed transaction.
func (m *MockSource) AddMempoolTx(tx *wire.MsgTx) {
	m.Lock()
	defer m.Unlock()

	txid := tx.TxHash().String()
	m.txs[txid] = tx
	m.mempool = append(m.mempool, txid)
}

// SetUtxo sets or clears an unspent output.
func (m *MockSource) SetUtxo(outpoint wire.OutPoint, utxo *Utxo) {
	m.Lock()
	defer m.Unlock()

	if utxo == nil {
		delete(m.utxos, outpoint)
		return
	}
	m.utxos[outpoint] = utxo
}

// MetadataCalls returns how often block metadata was requested.
func (m *MockSource) MetadataCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.metadata
}

// Network returns the name of the network the source follows.
func (m *MockSource) Network() string {
	return m.network
}

// BestBlock returns the hash and height of the chain tip.
func (m *MockSource) BestBlock(context.Context) (string, int64, error) {
	m.Lock()
	defer m.Unlock()

	return m.tip, m.height, nil
}

// BlockMetadata returns the metadata of a block.
func (m *MockSource) BlockMetadata(_ context.Context,
	hash string) (*BlockMetadata, error) {

	m.Lock()
	defer m.Unlock()

	m.metadata++

	block, ok := m.blocks[hash]
	if !ok {
		return nil, ErrNotFound
	}

	metadata := &BlockMetadata{
		Hash:   hash,
		Height: m.heights[hash],
	}
	if metadata.Height > 1 {
		metadata.PreviousHash = block.Header.PrevBlock.String()
	}
	for _, tx := range block.Transactions {
		metadata.TransactionIDs = append(
			metadata.TransactionIDs, tx.TxHash().String(),
		)
	}

	return metadata, nil
}

// Block returns a full block.
func (m *MockSource) Block(_ context.Context,
	hash string) (*wire.MsgBlock, error) {

	m.Lock()
	defer m.Unlock()

	block, ok := m.blocks[hash]
	if !ok {
		return nil, ErrNotFound
	}

	return block, nil
}

// Transaction returns a transaction of the mempool or the chain.
func (m *MockSource) Transaction(_ context.Context,
	txid string) (*wire.MsgTx, error) {

	m.Lock()
	defer m.Unlock()

	tx, ok := m.txs[txid]
	if !ok {
		return nil, ErrNotFound
	}

	return tx, nil
}

// Mempool returns the ids of the unconfirmed transactions.
func (m *MockSource) Mempool(context.Context) ([]string, error) {
	m.Lock()
	defer m.Unlock()

	return append([]string(nil), m.mempool...), nil
}

// Utxo returns an unspent output.
func (m *MockSource) Utxo(_ context.Context,
	outpoint wire.OutPoint) (*Utxo, error) {

	m.Lock()
	defer m.Unlock()

	return m.utxos[outpoint], nil
}

// FeeRate returns the fixed fee rate of the mock.
func (m *MockSource) FeeRate(context.Context,
	uint32) (chainfee.SatPerKWeight, error) {

	return m.feeRate, nil
}

// Broadcast adds the transaction to the mempool.
func (m *MockSource) Broadcast(_ context.Context,
	tx *wire.MsgTx) (string, error) {

	m.AddMempoolTx(tx)

	m.Lock()
	m.Broadcasts = append(m.Broadcasts, tx)
	m.Unlock()

	return tx.TxHash().String(), nil
}
