package pool

import (
	"time"

	"github.com/lightninglabs/swapwatch/swaperr"
)

var (
	// ErrExpectedAttemptDate is returned for attempts without a valid
	// ISO 8601 date.
	ErrExpectedAttemptDate = swaperr.New(
		swaperr.KindValidation, "ExpectedAttemptDate",
	)

	// ErrExpectedAttemptHops is returned for attempts without a route.
	ErrExpectedAttemptHops = swaperr.New(
		swaperr.KindValidation, "ExpectedAttemptHops",
	)

	// ErrExpectedAttemptID is returned for attempts without an id.
	ErrExpectedAttemptID = swaperr.New(
		swaperr.KindValidation, "ExpectedAttemptId",
	)

	// ErrExpectedTransactionID is returned for chain elements without a
	// transaction id.
	ErrExpectedTransactionID = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapElementTransactionId",
	)

	// ErrExpectedInvoice is returned for chain elements without an
	// invoice.
	ErrExpectedInvoice = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapElementInvoice",
	)

	// ErrExpectedNetwork is returned for chain elements without a
	// network.
	ErrExpectedNetwork = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapElementNetwork",
	)

	// ErrExpectedRedeemScript is returned for chain elements without a
	// redeem script.
	ErrExpectedRedeemScript = swaperr.New(
		swaperr.KindValidation, "ExpectedSwapElementRedeemScript",
	)

	// ErrExpectedClaimOutpoint is returned for claims without the spent
	// outpoint.
	ErrExpectedClaimOutpoint = swaperr.New(
		swaperr.KindValidation, "ExpectedClaimSpentOutpoint",
	)

	// ErrExpectedClaimPreimage is returned for claims without the
	// preimage.
	ErrExpectedClaimPreimage = swaperr.New(
		swaperr.KindValidation, "ExpectedClaimSwapPreimage",
	)

	// ErrExpectedFundingKeyIndex is returned for fundings without a claim
	// key index.
	ErrExpectedFundingKeyIndex = swaperr.New(
		swaperr.KindValidation, "ExpectedFundingClaimKeyIndex",
	)

	// ErrExpectedFundingOutput is returned for fundings without the
	// output script.
	ErrExpectedFundingOutput = swaperr.New(
		swaperr.KindValidation, "ExpectedFundingOutputScript",
	)

	// ErrExpectedFundingTokens is returned for fundings with a negative
	// value. Zero value outputs are valid.
	ErrExpectedFundingTokens = swaperr.New(
		swaperr.KindValidation, "ExpectedFundingTokensValue",
	)

	// ErrExpectedRefundOutpoint is returned for refunds without the spent
	// outpoint.
	ErrExpectedRefundOutpoint = swaperr.New(
		swaperr.KindValidation, "ExpectedRefundSpentOutpoint",
	)
)

func (a *Attempt) validate() error {
	if a == nil {
		return ErrExpectedSwapElement
	}

	if a.Date == "" {
		return ErrExpectedAttemptDate
	}

	if _, err := time.Parse(time.RFC3339Nano, a.Date); err != nil {
		return swaperr.Wrap(ErrExpectedAttemptDate, err)
	}

	if a.Hops == nil {
		return ErrExpectedAttemptHops
	}

	if a.ID == "" {
		return ErrExpectedAttemptID
	}

	return nil
}

// validate checks the fields every chain element carries.
func (c chainFields) validate() error {
	switch {
	case c.id == "":
		return ErrExpectedTransactionID

	case c.invoice == "":
		return ErrExpectedInvoice

	case c.network == "":
		return ErrExpectedNetwork

	case c.script == "":
		return ErrExpectedRedeemScript
	}

	return nil
}

func (c *Claim) validate() error {
	if c == nil {
		return ErrExpectedSwapElement
	}

	if err := c.chainFields().validate(); err != nil {
		return err
	}

	switch {
	case c.Outpoint == "":
		return ErrExpectedClaimOutpoint

	case c.Preimage == "":
		return ErrExpectedClaimPreimage
	}

	return nil
}

// validate checks the funding fields. The output index has no missing state
// and is not checked.
func (f *Funding) validate() error {
	if f == nil {
		return ErrExpectedSwapElement
	}

	if err := f.chainFields().validate(); err != nil {
		return err
	}

	switch {
	case f.Index == 0:
		return ErrExpectedFundingKeyIndex

	case f.Output == "":
		return ErrExpectedFundingOutput

	case f.Tokens < 0:
		return ErrExpectedFundingTokens
	}

	return nil
}

func (r *Refund) validate() error {
	if r == nil {
		return ErrExpectedSwapElement
	}

	if err := r.chainFields().validate(); err != nil {
		return err
	}

	if r.Outpoint == "" {
		return ErrExpectedRefundOutpoint
	}

	return nil
}
