package swapwatch

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/invoice"
	"github.com/lightninglabs/swapwatch/keys"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/scan"
	"github.com/lightninglabs/swapwatch/watch"
)

// Config holds the collaborators of a Service.
type Config struct {
	// Store holds the watched swaps and the swap element sets.
	Store cache.Store

	// Markers holds the interesting transaction marks. If nil, marks are
	// kept in memory.
	Markers cache.Store

	// Deriver derives the claim keys of registered swaps.
	Deriver keys.Deriver

	// Invoices parses swap invoices. Defaults to BOLT 11 parsing.
	Invoices invoice.Parser

	// DisableLastAddress turns off the per network shortcut for the most
	// recently resolved address.
	DisableLastAddress bool
}

// Service watches the chain for swap fundings and spends and collects what
// it finds per swap.
type Service struct {
	registry *watch.Registry
	lookup   *watch.Lookup
	pool     *pool.Pool
	scanner  *scan.Scanner
}

// New returns a service built from the config.
func New(cfg *Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cache store required")
	}

	if cfg.Deriver == nil {
		return nil, errors.New("key deriver required")
	}

	invoices := cfg.Invoices
	if invoices == nil {
		invoices = &invoice.ZpayParser{}
	}

	var last *watch.LastAddressCache
	if !cfg.DisableLastAddress {
		last = watch.NewLastAddressCache()
	}

	lookup := watch.NewLookup(cfg.Store, last)
	swapPool := pool.NewPool(cfg.Store, cfg.Markers)

	return &Service{
		registry: watch.NewRegistry(cfg.Store, cfg.Deriver, invoices),
		lookup:   lookup,
		pool:     swapPool,
		scanner:  scan.NewScanner(lookup, swapPool),
	}, nil
}

// RegisterWatch starts watching the addresses of a swap script.
func (s *Service) RegisterWatch(ctx context.Context, w *watch.Watch) error {
	return s.registry.RegisterWatch(ctx, w)
}

// LookupWatchedOutput returns the swap funded by paying to the address, or
// nil if the address is not watched.
func (s *Service) LookupWatchedOutput(ctx context.Context, address,
	network string) (*watch.WatchedOutput, error) {

	return s.lookup.LookupWatchedOutput(ctx, address, network)
}

// AddDetectedSwap adds an element to the set of a swap.
func (s *Service) AddDetectedSwap(ctx context.Context, swapID string,
	element pool.Element) error {

	return s.pool.AddDetectedSwap(ctx, swapID, element)
}

// AddDetectedSwapSet adds the single element of a set to the set of a swap.
func (s *Service) AddDetectedSwapSet(ctx context.Context, swapID string,
	set *pool.ElementSet) error {

	if set == nil {
		return pool.ErrExpectedSwapElement
	}

	element, err := set.Element()
	if err != nil {
		return err
	}

	return s.pool.AddDetectedSwap(ctx, swapID, element)
}

// SwapElements returns the elements detected for a swap.
func (s *Service) SwapElements(ctx context.Context,
	swapID string) ([]pool.Element, error) {

	return s.pool.SwapElements(ctx, swapID)
}

// IsInterestingTransaction reports whether a confirmed swap element was
// recently found in the transaction.
func (s *Service) IsInterestingTransaction(ctx context.Context, network,
	txid string) (bool, error) {

	return s.pool.IsInterestingTransaction(ctx, network, txid)
}

// ScanTransaction detects and stores the swap elements of a transaction.
// The block hash is empty for unconfirmed transactions.
func (s *Service) ScanTransaction(ctx context.Context, network string,
	tx *wire.MsgTx, block string) ([]pool.Element, error) {

	elements, err := s.scanner.ScanTransaction(ctx, network, tx, block)
	if err != nil {
		return nil, err
	}

	if len(elements) > 0 {
		log.Debugf("Transaction %v carries %d swap elements",
			tx.TxHash(), len(elements))
	}

	return elements, nil
}

// ScanBlock detects and stores the swap elements of a block.
func (s *Service) ScanBlock(ctx context.Context, network string,
	block *wire.MsgBlock) ([]pool.Element, error) {

	return s.scanner.ScanBlock(ctx, network, block)
}
