package scan

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/address"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightninglabs/swapwatch/watch"
	"golang.org/x/sync/errgroup"
)

// blockScanners is the number of transactions of a block scanned in
// parallel.
const blockScanners = 8

// OutputLookup resolves addresses to watched swap outputs.
type OutputLookup interface {
	// LookupWatchedOutput returns the swap funded by the address or nil.
	LookupWatchedOutput(ctx context.Context, address,
		network string) (*watch.WatchedOutput, error)
}

// ElementSink receives the swap elements detected by the scanner.
type ElementSink interface {
	// AddDetectedSwap adds an element to the set of the swap.
	AddDetectedSwap(ctx context.Context, swapID string,
		element pool.Element) error
}

// Scanner detects swap fundings and spends in transactions.
type Scanner struct {
	lookup OutputLookup
	sink   ElementSink
}

// NewScanner returns a scanner resolving addresses through the lookup and
// passing detections to the sink.
func NewScanner(lookup OutputLookup, sink ElementSink) *Scanner {
	return &Scanner{
		lookup: lookup,
		sink:   sink,
	}
}

// ScanTransaction detects the swap elements of a transaction and adds them
// to the sink. The block hash is empty for unconfirmed transactions. The
// detected elements are returned.
func (s *Scanner) ScanTransaction(ctx context.Context, network string,
	tx *wire.MsgTx, block string) ([]pool.Element, error) {

	net, err := netparams.Lookup(network)
	if err != nil {
		return nil, err
	}

	txid := tx.TxHash().String()

	var elements []pool.Element
	add := func(swapID string, element pool.Element) error {
		err := s.sink.AddDetectedSwap(ctx, swapID, element)
		switch {
		case rejected(err):
			log.Warnf("Skipping %v of swap %v in %v: %v",
				element.Type(), swap.ShortID(swapID), txid, err)

			return nil

		case err != nil:
			return err
		}

		log.Debugf("Detected %v of swap %v in %v", element.Type(),
			swap.ShortID(swapID), txid)

		elements = append(elements, element)

		return nil
	}

	for vout, txOut := range tx.TxOut {
		funding, swapID, err := s.fundingElement(
			ctx, net, txid, uint32(vout), txOut,
		)
		if err != nil {
			return elements, err
		}
		if funding == nil {
			continue
		}

		funding.Block = block
		if err := add(swapID, funding); err != nil {
			return elements, err
		}
	}

	for _, txIn := range tx.TxIn {
		element, swapID, err := s.spendElement(ctx, net, txid, txIn)
		if err != nil {
			return elements, err
		}
		if element == nil {
			continue
		}

		switch e := element.(type) {
		case *pool.Claim:
			e.Block = block

		case *pool.Refund:
			e.Block = block
		}

		if err := add(swapID, element); err != nil {
			return elements, err
		}
	}

	return elements, nil
}

// rejected returns true for errors about the element itself rather than the
// store it is added to. A rejected element must not stop the scan of the
// transactions around it.
func rejected(err error) bool {
	if err == nil {
		return false
	}

	switch swaperr.KindOf(err) {
	case swaperr.KindValidation, swaperr.KindInvalidAddress,
		swaperr.KindInvalidRedeemScript, swaperr.KindDerivationFailed:

		return true
	}

	return false
}

// fundingElement returns the funding element of an output paying to a
// watched address along with its swap id.
func (s *Scanner) fundingElement(ctx context.Context, net *netparams.Network,
	txid string, vout uint32, txOut *wire.TxOut) (*pool.Funding, string,
	error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		txOut.PkScript, net.Params,
	)
	if err != nil || len(addrs) != 1 {
		return nil, "", nil
	}

	watched, err := s.lookup.LookupWatchedOutput(
		ctx, addrs[0].EncodeAddress(), net.Name,
	)
	if err != nil {
		return nil, "", err
	}
	if watched == nil {
		return nil, "", nil
	}

	details, err := swap.Describe(watched.Script, net.Name)
	if err != nil {
		return nil, "", err
	}

	return &pool.Funding{
		ID:      txid,
		Index:   watched.Index,
		Invoice: watched.Invoice,
		Network: net.Name,
		Output:  hex.EncodeToString(txOut.PkScript),
		Script:  watched.Script,
		Tokens:  txOut.Value,
		Vout:    vout,
	}, details.PaymentHash.String(), nil
}

// spendElement returns the claim or refund element of an input spending a
// watched swap output along with its swap id.
func (s *Scanner) spendElement(ctx context.Context, net *netparams.Network,
	txid string, txIn *wire.TxIn) (pool.Element, string, error) {

	spend, ok := swap.ClassifySpend(txIn)
	if !ok {
		return nil, "", nil
	}

	// The swap is registered under each of its addresses, the one for
	// the spent output type is enough to find it.
	var (
		addr string
		err  error
	)
	if len(txIn.Witness) > 0 {
		addr, err = address.WitnessScriptHash(spend.RedeemScript, net)
	} else {
		addr, err = address.ScriptHash(spend.RedeemScript, net)
	}
	if err != nil || addr == "" {
		return nil, "", nil
	}

	watched, err := s.lookup.LookupWatchedOutput(ctx, addr, net.Name)
	if err != nil {
		return nil, "", err
	}
	if watched == nil {
		return nil, "", nil
	}

	script := hex.EncodeToString(spend.RedeemScript)
	outpoint := txIn.PreviousOutPoint.String()
	swapID := spend.PaymentHash.String()

	if spend.Type == swap.SpendClaim {
		return &pool.Claim{
			ID:       txid,
			Invoice:  watched.Invoice,
			Network:  net.Name,
			Outpoint: outpoint,
			Preimage: spend.Preimage.String(),
			Script:   script,
		}, swapID, nil
	}

	return &pool.Refund{
		ID:       txid,
		Invoice:  watched.Invoice,
		Network:  net.Name,
		Outpoint: outpoint,
		Script:   script,
	}, swapID, nil
}

// ScanBlock scans every transaction of a block. The detected elements are
// returned in no particular order.
func (s *Scanner) ScanBlock(ctx context.Context, network string,
	block *wire.MsgBlock) ([]pool.Element, error) {

	blockHash := block.BlockHash().String()
	results := make([][]pool.Element, len(block.Transactions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(blockScanners)

	for i, tx := range block.Transactions {
		g.Go(func() error {
			elements, err := s.ScanTransaction(
				ctx, network, tx, blockHash,
			)
			results[i] = elements

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var elements []pool.Element
	for _, result := range results {
		elements = append(elements, result...)
	}

	log.Debugf("Scanned block %v with %d transactions, %d swap elements",
		blockHash, len(block.Transactions), len(elements))

	return elements, nil
}
