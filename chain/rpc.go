package chain

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

// RPCConfig holds the connection details of a bitcoind style RPC server.
type RPCConfig struct {
	Host   string `long:"host" description:"The host:port of the chain RPC server"`
	User   string `long:"user" description:"Username for RPC connections"`
	Pass   string `long:"pass" description:"Password for RPC connections"`
	NoTLS  bool   `long:"notls" description:"Disable TLS for the RPC connection"`
	TLSCrt string `long:"tlscert" description:"Path to the certificate of the RPC server"`
}

// RPCSource is a chain source backed by a bitcoind or btcd RPC server.
type RPCSource struct {
	network string
	client  *rpcclient.Client

	// minFeeRate is the floor of returned fee estimates.
	minFeeRate chainfee.SatPerKWeight
}

// NewRPCSource connects to the RPC server of a network.
func NewRPCSource(network string, cfg *RPCConfig) (*RPCSource, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:                 cfg.Host,
		User:                 cfg.User,
		Pass:                 cfg.Pass,
		DisableConnectOnNew:  true,
		DisableAutoReconnect: false,
		DisableTLS:           cfg.NoTLS,
		HTTPPostMode:         true,
	}

	if !cfg.NoTLS && cfg.TLSCrt != "" {
		certs, err := os.ReadFile(cfg.TLSCrt)
		if err != nil {
			return nil, fmt.Errorf("unable to read rpc tls "+
				"certificate: %w", err)
		}
		connCfg.Certificates = certs
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create rpc client: %w", err)
	}

	log.Infof("Using chain RPC server %v for %v", cfg.Host, network)

	return &RPCSource{
		network:    network,
		client:     client,
		minFeeRate: chainfee.FeePerKwFloor,
	}, nil
}

// Network returns the name of the network the source follows.
func (r *RPCSource) Network() string {
	return r.network
}

// Stop shuts down the RPC client.
func (r *RPCSource) Stop() {
	r.client.Shutdown()
}

// BestBlock returns the hash and height of the chain tip.
func (r *RPCSource) BestBlock(ctx context.Context) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	hash, height, err := r.client.GetBestBlock()
	if err != nil {
		return "", 0, err
	}

	return hash.String(), int64(height), nil
}

// BlockMetadata returns the metadata of a block.
func (r *RPCSource) BlockMetadata(ctx context.Context,
	hash string) (*BlockMetadata, error) {

	blockHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	block, err := r.client.GetBlockVerbose(blockHash)
	if err != nil {
		return nil, notFound(err)
	}

	return &BlockMetadata{
		Hash:           block.Hash,
		Height:         block.Height,
		PreviousHash:   block.PreviousHash,
		TransactionIDs: block.Tx,
	}, nil
}

// Block returns a full block.
func (r *RPCSource) Block(ctx context.Context,
	hash string) (*wire.MsgBlock, error) {

	blockHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	block, err := r.client.GetBlock(blockHash)
	if err != nil {
		return nil, notFound(err)
	}

	return block, nil
}

// Transaction returns a transaction of the mempool or the chain.
func (r *RPCSource) Transaction(ctx context.Context,
	txid string) (*wire.MsgTx, error) {

	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := r.client.GetRawTransaction(txHash)
	if err != nil {
		return nil, notFound(err)
	}

	return tx.MsgTx(), nil
}

// Mempool returns the ids of the unconfirmed transactions.
func (r *RPCSource) Mempool(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hashes, err := r.client.GetRawMempool()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		ids = append(ids, hash.String())
	}

	return ids, nil
}

// Utxo returns an unspent output. Nil is returned if the output is spent or
// unknown.
func (r *RPCSource) Utxo(ctx context.Context,
	outpoint wire.OutPoint) (*Utxo, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := r.client.GetTxOut(&outpoint.Hash, outpoint.Index, true)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	tokens, err := btcutil.NewAmount(result.Value)
	if err != nil {
		return nil, err
	}

	return &Utxo{
		Confirmations: result.Confirmations,
		Output:        result.ScriptPubKey.Hex,
		Tokens:        int64(tokens),
	}, nil
}

// FeeRate returns the fee rate estimated to confirm within the target number
// of blocks, never less than the relay floor.
func (r *RPCSource) FeeRate(ctx context.Context,
	confTarget uint32) (chainfee.SatPerKWeight, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mode := btcjson.EstimateModeConservative
	result, err := r.client.EstimateSmartFee(int64(confTarget), &mode)
	if err != nil {
		return 0, err
	}

	if result.FeeRate == nil {
		return 0, fmt.Errorf("no fee estimate for target %d: %v",
			confTarget, result.Errors)
	}

	return feeRate(*result.FeeRate, r.minFeeRate)
}

// feeRate converts a fee rate in coins per kvB to sat/kw.
func feeRate(coinsPerKVByte float64,
	floor chainfee.SatPerKWeight) (chainfee.SatPerKWeight, error) {

	satPerKB, err := btcutil.NewAmount(coinsPerKVByte)
	if err != nil {
		return 0, err
	}

	satPerKw := chainfee.SatPerKVByte(satPerKB).FeePerKWeight()
	if satPerKw < floor {
		log.Debugf("Estimated fee rate of %v is too low, using fee "+
			"floor of %v instead", satPerKw, floor)

		satPerKw = floor
	}

	return satPerKw, nil
}

// Broadcast publishes a transaction and returns its id.
func (r *RPCSource) Broadcast(ctx context.Context,
	tx *wire.MsgTx) (string, error) {

	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := r.client.SendRawTransaction(tx, false)
	if err != nil {
		return "", err
	}

	log.Infof("Broadcast transaction %v", hash)

	return hash.String(), nil
}

// notFound maps the RPC errors for unknown blocks and transactions onto
// ErrNotFound.
func notFound(err error) error {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		// Unknown blocks and transactions share this code.
		if rpcErr.Code == btcjson.ErrRPCInvalidAddressOrKey {
			return fmt.Errorf("%w: %v", ErrNotFound, rpcErr.Message)
		}
	}

	return err
}
