package watch

import (
	"context"
	"encoding/hex"

	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/invoice"
	"github.com/lightninglabs/swapwatch/keys"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/swaperr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrExpectedStore is returned when no cache store is configured.
	ErrExpectedStore = swaperr.New(
		swaperr.KindValidation, "ExpectedCacheTypeForWatchStorage",
	)

	// ErrExpectedKeyIndex is returned for a zero claim key index.
	ErrExpectedKeyIndex = swaperr.New(
		swaperr.KindValidation, "ExpectedKeyIndexForSwap",
	)

	// ErrExpectedInvoice is returned when no invoice is given.
	ErrExpectedInvoice = swaperr.New(
		swaperr.KindValidation, "ExpectedInvoiceAssociatedWithSwapScript",
	)

	// ErrExpectedNetwork is returned when no network is given.
	ErrExpectedNetwork = swaperr.New(
		swaperr.KindValidation, "ExpectedNetworkToWatchOn",
	)

	// ErrExpectedRedeemScript is returned when no redeem script is given.
	ErrExpectedRedeemScript = swaperr.New(
		swaperr.KindValidation, "ExpectedRedeemScriptToWatchFor",
	)

	// ErrExpectedTokens is returned when the expected amount is not
	// positive.
	ErrExpectedTokens = swaperr.New(
		swaperr.KindValidation, "ExpectedTokensToWatchFor",
	)

	// ErrDeriveSwapKey is returned when the claim key can not be derived.
	ErrDeriveSwapKey = swaperr.New(
		swaperr.KindDerivationFailed, "FailedToDeriveSwapKeyPair",
	)

	// ErrExpectedValidRedeemScript is returned when the redeem script is
	// not a swap script.
	ErrExpectedValidRedeemScript = swaperr.New(
		swaperr.KindInvalidRedeemScript, "ExpectedValidRedeemScript",
	)

	// ErrCacheWrite is returned when a row can not be stored.
	ErrCacheWrite = swaperr.New(
		swaperr.KindCacheWriteFailed, "FailedToCacheSwapOutput",
	)
)

// Watch holds the parameters of a swap whose outputs should be watched for.
type Watch struct {
	// ClaimKeyIndex is the index of the server key that claims the swap.
	ClaimKeyIndex uint32

	// Invoice is the BOLT 11 payment request of the swap.
	Invoice string

	// Network is the name of the network the swap is on.
	Network string

	// RedeemScript is the hex encoded swap redeem script.
	RedeemScript string

	// ExpectedTokens is the amount expected to be paid to the script.
	ExpectedTokens int64
}

// Registry stores the rows that allow resolving swap outputs.
type Registry struct {
	store    cache.Store
	deriver  keys.Deriver
	invoices invoice.Parser
}

// NewRegistry returns a registry writing to the given store.
func NewRegistry(store cache.Store, deriver keys.Deriver,
	invoices invoice.Parser) *Registry {

	return &Registry{
		store:    store,
		deriver:  deriver,
		invoices: invoices,
	}
}

// validate checks that all parameters of a watch are present.
func (r *Registry) validate(w *Watch) error {
	switch {
	case r.store == nil:
		return ErrExpectedStore

	case w.ClaimKeyIndex == 0:
		return ErrExpectedKeyIndex

	case w.Invoice == "":
		return ErrExpectedInvoice

	case w.Network == "":
		return ErrExpectedNetwork

	case w.RedeemScript == "":
		return ErrExpectedRedeemScript

	case w.ExpectedTokens <= 0:
		return ErrExpectedTokens
	}

	return nil
}

// RegisterWatch stores one row per address the swap script can be paid to,
// one row mapping the claim public key to its index and one row mapping the
// invoice id to the invoice. All rows expire after SwapTimeout. Rows written
// before a failing write are left in place, registering again rewrites them.
func (r *Registry) RegisterWatch(ctx context.Context, w *Watch) error {
	if err := r.validate(w); err != nil {
		return err
	}

	publicKey, err := r.deriver.DeriveServerSwapKey(
		ctx, w.ClaimKeyIndex, w.Network,
	)
	if err != nil {
		return swaperr.Wrap(ErrDeriveSwapKey, err)
	}

	payReq, err := r.invoices.ParsePaymentRequest(w.Invoice)
	if err != nil {
		return swaperr.Wrap(invoice.ErrExpectedValidInvoice, err)
	}

	details, err := swap.Describe(w.RedeemScript, w.Network)
	if err != nil {
		return swaperr.Wrap(ErrExpectedValidRedeemScript, err)
	}

	type row struct {
		t     cache.Type
		key   string
		value any
	}

	rows := []row{{
		t:     cache.TypeInvoice,
		key:   payReq.ID,
		value: &invoiceRow{Invoice: w.Invoice},
	}, {
		t:   cache.TypeSwapKey,
		key: hex.EncodeToString(publicKey.SerializeCompressed()),
		value: &swapKeyRow{
			Index:   w.ClaimKeyIndex,
			Invoice: w.Invoice,
		},
	}}

	addressRow := &swapAddressRow{
		ID:     payReq.ID,
		Script: w.RedeemScript,
		Tokens: w.ExpectedTokens,
	}
	for _, addr := range details.Addresses() {
		rows = append(rows, row{
			t:     cache.TypeSwapAddress,
			key:   addr,
			value: addressRow,
		})
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row

		eg.Go(func() error {
			err := r.store.SetJSON(
				ctx, row.t, row.key, row.value, SwapTimeout,
			)
			if err != nil {
				return swaperr.Wrapf(
					ErrCacheWrite, "%v %v: %v", row.t,
					row.key, err,
				)
			}

			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	swap.NewPrefixLog(log, payReq.ID).Infof("Watching %d addresses "+
		"for %d tokens on %v", len(details.Addresses()),
		w.ExpectedTokens, w.Network)

	return nil
}
