package pool

import (
	"context"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnutils"
)

const (
	// ElementTimeout is how long a swap's element set is kept after the
	// last element was added.
	ElementTimeout = 3 * time.Hour

	// InterestingTransactionTimeout is how long a confirmed swap
	// transaction stays marked for the block listener.
	InterestingTransactionTimeout = 12 * time.Hour
)

var (
	// ErrExpectedCacheType is returned when no cache store is configured.
	ErrExpectedCacheType = swaperr.New(
		swaperr.KindValidation, "ExpectedCacheType",
	)

	// ErrExpectedSwapID is returned when no swap id is given.
	ErrExpectedSwapID = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapId",
	)

	// ErrDecodeSwapScript is returned when the redeem script of a chain
	// element can not be decoded.
	ErrDecodeSwapScript = swaperr.New(
		swaperr.KindDerivationFailed, "FailedToDecodeSwapScript",
	)

	// ErrCacheWrite is returned when the element can not be added.
	ErrCacheWrite = swaperr.New(
		swaperr.KindCacheWriteFailed, "FailedToAddSwapElement",
	)

	// ErrCacheRead is returned when the element set can not be read.
	ErrCacheRead = swaperr.New(
		swaperr.KindCacheReadFailed, "FailedToGetSwapElements",
	)
)

// transactionMarker is the value of an interesting transaction mark.
type transactionMarker struct {
	ID string `json:"id"`
}

// Pool collects the elements detected for each swap into a sorted set keyed
// by the swap's invoice id.
type Pool struct {
	store cache.Store

	// markers holds the interesting transaction marks, which only matter
	// to the block listener of this process.
	markers cache.Store
}

// NewPool returns a pool adding elements to the store. A nil markers store
// keeps the transaction marks in memory.
func NewPool(store, markers cache.Store) *Pool {
	if markers == nil {
		markers = cache.NewMemoryStore(clock.NewDefaultClock())
	}

	return &Pool{
		store:   store,
		markers: markers,
	}
}

// AddDetectedSwap validates an element and adds it to the set of the swap.
// Adding an identical element again leaves the set unchanged. Confirmed chain
// elements additionally mark their transaction as interesting, a failure to
// do so is logged but does not fail the call.
func (p *Pool) AddDetectedSwap(ctx context.Context, swapID string,
	element Element) error {

	if element == nil {
		return ErrExpectedSwapElement
	}

	if p.store == nil {
		return ErrExpectedCacheType
	}

	if err := element.validate(); err != nil {
		return err
	}

	if swapID == "" {
		return ErrExpectedSwapID
	}

	var height uint32
	chainElement, isChain := element.(ChainElement)
	if isChain {
		fields := chainElement.chainFields()

		details, err := swap.Describe(fields.script, fields.network)
		if err != nil {
			return swaperr.Wrap(ErrDecodeSwapScript, err)
		}
		height = details.TimelockBlockHeight
	}

	key := sortKey(element, height)
	plog := swap.NewPrefixLog(log, swapID)

	if isChain && chainElement.chainFields().block != "" {
		fields := chainElement.chainFields()

		err := p.markers.SetJSON(
			ctx, cache.TypeSwapTransactionID,
			fields.network+","+fields.id,
			&transactionMarker{ID: fields.id},
			InterestingTransactionTimeout,
		)
		if err != nil {
			plog.Errorf("Unable to mark transaction %v as "+
				"interesting: %v", fields.id, err)
		}
	}

	err := p.store.AddJSONToSortedSet(
		ctx, cache.TypeSwapElements, swapID, key, element,
		ElementTimeout,
	)
	if err != nil {
		return swaperr.Wrap(ErrCacheWrite, err)
	}

	plog.Debugf("Added %v element %v", element.Type(), key)
	plog.Tracef("Element: %v", lnutils.NewLogClosure(func() string {
		return spew.Sdump(element)
	}))

	return nil
}

// SwapElements returns the elements of a swap in height order.
func (p *Pool) SwapElements(ctx context.Context,
	swapID string) ([]Element, error) {

	if p.store == nil {
		return nil, ErrExpectedCacheType
	}

	if swapID == "" {
		return nil, ErrExpectedSwapID
	}

	members, err := p.store.GetSortedSet(
		ctx, cache.TypeSwapElements, swapID,
	)
	if err != nil {
		return nil, swaperr.Wrap(ErrCacheRead, err)
	}

	sort.SliceStable(members, func(i, j int) bool {
		return sortKeyLess(members[i].Sort, members[j].Sort)
	})

	elements := make([]Element, 0, len(members))
	for _, member := range members {
		element, err := DecodeElement(member.Value)
		if err != nil {
			return nil, swaperr.Wrap(ErrCacheRead, err)
		}

		elements = append(elements, element)
	}

	return elements, nil
}

// IsInterestingTransaction returns true if a confirmed swap element was
// added for the transaction within the marker lifetime.
func (p *Pool) IsInterestingTransaction(ctx context.Context, network,
	txid string) (bool, error) {

	var marker transactionMarker
	found, err := p.markers.GetJSON(
		ctx, cache.TypeSwapTransactionID, network+","+txid, &marker,
	)
	if err != nil {
		return false, swaperr.Wrap(ErrCacheRead, err)
	}

	return found && marker.ID == txid, nil
}
