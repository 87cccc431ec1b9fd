package invoice

import (
	"sort"

	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

var (
	// ErrExpectedValidInvoice is returned when a payment request can not
	// be decoded on any known network.
	ErrExpectedValidInvoice = swaperr.New(
		swaperr.KindValidation, "ExpectedValidInvoice",
	)
)

// Invoice holds the parts of a payment request the swap bookkeeping relies
// on.
type Invoice struct {
	// ID identifies the swap the invoice belongs to. It is the hex encoded
	// payment hash.
	ID string

	// PaymentHash is the hash of the preimage that settles the invoice.
	PaymentHash lntypes.Hash

	// Network is the network the invoice was encoded for.
	Network *netparams.Network

	// Amount is the requested amount, zero for open amount invoices.
	Amount lnwire.MilliSatoshi

	// Request is the encoded payment request.
	Request string
}

// Parser decodes payment requests.
type Parser interface {
	// ParsePaymentRequest decodes a payment request.
	ParsePaymentRequest(request string) (*Invoice, error)
}

// ZpayParser decodes BOLT 11 payment requests of all segwit capable
// networks.
type ZpayParser struct{}

// A compile time check to ensure ZpayParser implements Parser.
var _ Parser = (*ZpayParser)(nil)

// ParsePaymentRequest decodes a BOLT 11 payment request.
func (p *ZpayParser) ParsePaymentRequest(request string) (*Invoice, error) {
	if request == "" {
		return nil, swaperr.Wrapf(
			ErrExpectedValidInvoice, "empty payment request",
		)
	}

	nets, err := invoiceNetworks()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, net := range nets {
		payReq, err := zpay32.Decode(request, net.Params)
		if err != nil {
			lastErr = err
			continue
		}

		if payReq.PaymentHash == nil {
			return nil, swaperr.Wrapf(
				ErrExpectedValidInvoice, "missing payment hash",
			)
		}

		hash := lntypes.Hash(*payReq.PaymentHash)

		invoice := &Invoice{
			ID:          hash.String(),
			PaymentHash: hash,
			Network:     net,
			Request:     request,
		}
		if payReq.MilliSat != nil {
			invoice.Amount = *payReq.MilliSat
		}

		return invoice, nil
	}

	return nil, swaperr.Wrap(ErrExpectedValidInvoice, lastErr)
}

// invoiceNetworks returns the networks invoices are defined for, which are
// the ones with a witness address prefix. Longer prefixes come first so a
// prefix that starts with another one, like bcrt and bc, is matched
// exactly.
func invoiceNetworks() ([]*netparams.Network, error) {
	var nets []*netparams.Network
	for _, name := range netparams.Names() {
		net, err := netparams.Lookup(name)
		if err != nil {
			return nil, err
		}

		if !net.Segwit {
			continue
		}

		nets = append(nets, net)
	}

	sort.SliceStable(nets, func(i, j int) bool {
		return len(nets[i].Params.Bech32HRPSegwit) >
			len(nets[j].Params.Bech32HRPSegwit)
	})

	return nets, nil
}
