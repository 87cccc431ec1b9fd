package swap

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lntypes"
)

// SpendType is the branch of a swap script an input spends.
type SpendType uint8

const (
	// SpendClaim is a spend revealing the payment preimage.
	SpendClaim SpendType = iota

	// SpendRefund is a spend through the timelocked refund branch.
	SpendRefund
)

// String returns the element type name of the spend.
func (s SpendType) String() string {
	switch s {
	case SpendClaim:
		return "claim"

	case SpendRefund:
		return "refund"

	default:
		return "unknown"
	}
}

// Spend describes an input that spends a swap output.
type Spend struct {
	// Type is the branch that was spent.
	Type SpendType

	// RedeemScript is the swap script revealed by the input.
	RedeemScript []byte

	// PaymentHash is the payment hash committed to by the script.
	PaymentHash lntypes.Hash

	// Preimage is set for claims.
	Preimage lntypes.Preimage
}

// ClassifySpend inspects a transaction input and returns the swap spend it
// represents. False is returned if the input does not reveal a swap script.
// Both native witness and p2sh spends are recognized, nested witness spends
// carry their script in the witness.
func ClassifySpend(txIn *wire.TxIn) (*Spend, bool) {
	stack := [][]byte(txIn.Witness)

	if len(stack) == 0 {
		if len(txIn.SignatureScript) == 0 {
			return nil, false
		}

		pushes, err := txscript.PushedData(txIn.SignatureScript)
		if err != nil {
			return nil, false
		}
		stack = pushes
	}

	// A nested witness spend only pushes the witness program, which is
	// not a swap script and is rejected by the parser below.
	if len(stack) < 2 {
		return nil, false
	}

	script := stack[len(stack)-1]
	parsed, err := parseSwapScript(script)
	if err != nil {
		return nil, false
	}

	spend := &Spend{
		Type:         SpendRefund,
		RedeemScript: script,
		PaymentHash:  parsed.paymentHash,
	}

	// The preimage is the item right below the script.
	candidate := stack[len(stack)-2]
	if len(candidate) == lntypes.PreimageSize &&
		sha256.Sum256(candidate) == parsed.paymentHash {

		spend.Type = SpendClaim
		copy(spend.Preimage[:], candidate)
	}

	return spend, true
}
