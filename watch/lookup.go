package watch

import (
	"context"
	"encoding/hex"

	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/swaperr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrExpectedAddress is returned when no address is given.
	ErrExpectedAddress = swaperr.New(
		swaperr.KindValidation, "ExpectedAddress",
	)

	// ErrExpectedLookupStore is returned when no cache store is
	// configured.
	ErrExpectedLookupStore = swaperr.New(
		swaperr.KindValidation, "ExpectedCacheTypeForWatchedOutput",
	)

	// ErrExpectedLookupNetwork is returned when no network is given.
	ErrExpectedLookupNetwork = swaperr.New(
		swaperr.KindValidation, "ExpectedNetworkForWatchedOutput",
	)

	// ErrCacheRead is returned when a row can not be read.
	ErrCacheRead = swaperr.New(
		swaperr.KindCacheReadFailed, "FailedToGetCachedSwapOutput",
	)
)

// WatchedOutput is the swap a watched address funds.
type WatchedOutput struct {
	// Index is the claim key index of the swap.
	Index uint32

	// Invoice is the payment request of the swap.
	Invoice string

	// Script is the hex encoded redeem script.
	Script string

	// Tokens is the amount the output is expected to hold.
	Tokens int64

	// Type is always FundingType.
	Type string
}

// Lookup resolves observed addresses to the swaps registered for them.
type Lookup struct {
	store cache.Store
	last  *LastAddressCache
}

// NewLookup returns a lookup reading from the store. A nil last address
// cache disables the shortcut.
func NewLookup(store cache.Store, last *LastAddressCache) *Lookup {
	return &Lookup{
		store: store,
		last:  last,
	}
}

// LookupWatchedOutput returns the swap funded by paying to the address. Nil
// is returned without an error if the address is not watched, or if the rows
// stored for it do not resolve to a complete swap.
func (l *Lookup) LookupWatchedOutput(ctx context.Context, address,
	network string) (*WatchedOutput, error) {

	switch {
	case address == "":
		return nil, ErrExpectedAddress

	case l.store == nil:
		return nil, ErrExpectedLookupStore

	case network == "":
		return nil, ErrExpectedLookupNetwork
	}

	pointer, found, err := l.swapPointer(ctx, address, network)
	if err != nil || !found {
		return nil, err
	}

	// Rows that do not hold a swap script are unrelated noise, scans must
	// not be aborted by them.
	details, err := swap.Describe(pointer.Script, network)
	if err != nil {
		log.Debugf("Ignoring watched address %v with undecodable "+
			"script: %v", address, err)

		return nil, nil
	}

	var (
		keyRow    swapKeyRow
		invRow    invoiceRow
		keyFound  bool
		invFound  bool
		publicKey = details.DestinationPublicKey.SerializeCompressed()
		eg, egCtx = errgroup.WithContext(ctx)
	)

	eg.Go(func() error {
		var err error
		keyFound, err = l.store.GetJSON(
			egCtx, cache.TypeSwapKey, hex.EncodeToString(publicKey),
			&keyRow,
		)
		if err != nil {
			return swaperr.Wrap(ErrCacheRead, err)
		}

		return nil
	})

	eg.Go(func() error {
		var err error
		invFound, err = l.store.GetJSON(
			egCtx, cache.TypeInvoice, pointer.ID, &invRow,
		)
		if err != nil {
			return swaperr.Wrap(ErrCacheRead, err)
		}

		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if !keyFound || keyRow.Index == 0 || !invFound || invRow.Invoice == "" {
		return nil, nil
	}

	return &WatchedOutput{
		Index:   keyRow.Index,
		Invoice: invRow.Invoice,
		Script:  pointer.Script,
		Tokens:  pointer.Tokens,
		Type:    FundingType,
	}, nil
}

// swapPointer returns the swap address row of the address, consulting the
// last address cache first.
func (l *Lookup) swapPointer(ctx context.Context, address,
	network string) (swapAddressRow, bool, error) {

	if l.last != nil {
		if pointer, ok := l.last.get(network, address); ok {
			return pointer, true, nil
		}
	}

	var pointer swapAddressRow
	found, err := l.store.GetJSON(
		ctx, cache.TypeSwapAddress, address, &pointer,
	)
	if err != nil {
		return pointer, false, swaperr.Wrap(ErrCacheRead, err)
	}

	if !found || pointer.ID == "" || pointer.Script == "" ||
		pointer.Tokens == 0 {

		return pointer, false, nil
	}

	if l.last != nil {
		l.last.put(network, address, pointer)
	}

	return pointer, true, nil
}
