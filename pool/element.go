package pool

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lightninglabs/swapwatch/swaperr"
)

const (
	// TypeAttempt is the type of payment attempt elements.
	TypeAttempt = "attempt"

	// TypeClaim is the type of claim elements.
	TypeClaim = "claim"

	// TypeFunding is the type of funding elements.
	TypeFunding = "funding"

	// TypeRefund is the type of refund elements.
	TypeRefund = "refund"
)

var (
	// ErrExpectedSwapElement is returned unless exactly one element is
	// given.
	ErrExpectedSwapElement = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapElement",
	)

	// ErrUnexpectedSwapElementType is returned when decoding an element
	// of an unknown type.
	ErrUnexpectedSwapElementType = swaperr.New(
		swaperr.KindValidation, "UnexpectedSwapElementType",
	)
)

// Element is a detected swap element. It is implemented by Attempt, Claim,
// Funding and Refund.
type Element interface {
	// Type returns the element type name.
	Type() string

	// validate checks the fields required for the element type.
	validate() error

	// sortComponent returns the part of the element that tells apart
	// elements of the same transaction.
	sortComponent() string
}

// ChainElement is an element observed on chain.
type ChainElement interface {
	Element

	// chainFields returns the fields all chain elements share.
	chainFields() chainFields
}

// chainFields are the fields shared by claims, fundings and refunds.
type chainFields struct {
	block   string
	id      string
	invoice string
	network string
	script  string
}

// Attempt is a payment attempt towards the swap invoice.
type Attempt struct {
	// Date is the ISO 8601 time of the attempt.
	Date string `json:"date"`

	// Hops are the short channel ids of the route.
	Hops []string `json:"hops"`

	// ID identifies the attempt.
	ID string `json:"id"`
}

// Type returns the element type name.
func (a *Attempt) Type() string {
	return TypeAttempt
}

func (a *Attempt) sortComponent() string {
	return a.ID
}

// MarshalJSON encodes the attempt along with its type.
func (a *Attempt) MarshalJSON() ([]byte, error) {
	type attempt Attempt

	return json.Marshal(struct {
		*attempt
		Type string `json:"type"`
	}{(*attempt)(a), TypeAttempt})
}

// Claim is a transaction input spending a swap output with the preimage.
type Claim struct {
	// Block is the hash of the block the claim confirmed in, empty while
	// unconfirmed.
	Block string `json:"block,omitempty"`

	// ID is the claim transaction id.
	ID string `json:"id"`

	// Invoice is the swap invoice.
	Invoice string `json:"invoice"`

	// Network is the name of the swap network.
	Network string `json:"network"`

	// Outpoint is the spent swap output.
	Outpoint string `json:"outpoint"`

	// Preimage is the hex encoded revealed preimage.
	Preimage string `json:"preimage"`

	// Script is the hex encoded redeem script.
	Script string `json:"script"`
}

// Type returns the element type name.
func (c *Claim) Type() string {
	return TypeClaim
}

func (c *Claim) sortComponent() string {
	return c.Outpoint
}

func (c *Claim) chainFields() chainFields {
	return chainFields{c.Block, c.ID, c.Invoice, c.Network, c.Script}
}

// MarshalJSON encodes the claim along with its type.
func (c *Claim) MarshalJSON() ([]byte, error) {
	type claim Claim

	return json.Marshal(struct {
		*claim
		Type string `json:"type"`
	}{(*claim)(c), TypeClaim})
}

// Funding is a transaction output paying to a swap address.
type Funding struct {
	// Block is the hash of the block the funding confirmed in, empty
	// while unconfirmed.
	Block string `json:"block,omitempty"`

	// ID is the funding transaction id.
	ID string `json:"id"`

	// Index is the claim key index of the swap.
	Index uint32 `json:"index"`

	// Invoice is the swap invoice.
	Invoice string `json:"invoice"`

	// Network is the name of the swap network.
	Network string `json:"network"`

	// Output is the hex encoded output script.
	Output string `json:"output"`

	// Script is the hex encoded redeem script.
	Script string `json:"script"`

	// Tokens is the value of the output.
	Tokens int64 `json:"tokens"`

	// Vout is the index of the output.
	Vout uint32 `json:"vout"`
}

// Type returns the element type name.
func (f *Funding) Type() string {
	return TypeFunding
}

func (f *Funding) sortComponent() string {
	return strconv.FormatUint(uint64(f.Vout), 10)
}

func (f *Funding) chainFields() chainFields {
	return chainFields{f.Block, f.ID, f.Invoice, f.Network, f.Script}
}

// MarshalJSON encodes the funding along with its type.
func (f *Funding) MarshalJSON() ([]byte, error) {
	type funding Funding

	return json.Marshal(struct {
		*funding
		Type string `json:"type"`
	}{(*funding)(f), TypeFunding})
}

// Refund is a transaction input spending a swap output after the timeout.
type Refund struct {
	// Block is the hash of the block the refund confirmed in, empty while
	// unconfirmed.
	Block string `json:"block,omitempty"`

	// ID is the refund transaction id.
	ID string `json:"id"`

	// Invoice is the swap invoice.
	Invoice string `json:"invoice"`

	// Network is the name of the swap network.
	Network string `json:"network"`

	// Outpoint is the spent swap output.
	Outpoint string `json:"outpoint"`

	// Script is the hex encoded redeem script.
	Script string `json:"script"`
}

// Type returns the element type name.
func (r *Refund) Type() string {
	return TypeRefund
}

func (r *Refund) sortComponent() string {
	return r.Outpoint
}

func (r *Refund) chainFields() chainFields {
	return chainFields{r.Block, r.ID, r.Invoice, r.Network, r.Script}
}

// MarshalJSON encodes the refund along with its type.
func (r *Refund) MarshalJSON() ([]byte, error) {
	type refund Refund

	return json.Marshal(struct {
		*refund
		Type string `json:"type"`
	}{(*refund)(r), TypeRefund})
}

// DecodeElement decodes an element encoded with its type.
func DecodeElement(data []byte) (Element, error) {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}

	var element Element
	switch typed.Type {
	case TypeAttempt:
		element = &Attempt{}

	case TypeClaim:
		element = &Claim{}

	case TypeFunding:
		element = &Funding{}

	case TypeRefund:
		element = &Refund{}

	default:
		return nil, swaperr.Wrapf(
			ErrUnexpectedSwapElementType, "type %q", typed.Type,
		)
	}

	if err := json.Unmarshal(data, element); err != nil {
		return nil, fmt.Errorf("decode %v element: %w", typed.Type, err)
	}

	return element, nil
}

// ElementSet is the wire form of a detected element: exactly one of the
// fields is expected to be set.
type ElementSet struct {
	Attempt *Attempt `json:"attempt,omitempty"`
	Claim   *Claim   `json:"claim,omitempty"`
	Funding *Funding `json:"funding,omitempty"`
	Refund  *Refund  `json:"refund,omitempty"`
}

// Element returns the single element of the set.
func (s *ElementSet) Element() (Element, error) {
	var elements []Element
	if s.Attempt != nil {
		elements = append(elements, s.Attempt)
	}
	if s.Claim != nil {
		elements = append(elements, s.Claim)
	}
	if s.Funding != nil {
		elements = append(elements, s.Funding)
	}
	if s.Refund != nil {
		elements = append(elements, s.Refund)
	}

	if len(elements) != 1 {
		return nil, swaperr.Wrapf(
			ErrExpectedSwapElement, "got %d elements",
			len(elements),
		)
	}

	return elements[0], nil
}
