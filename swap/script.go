package swap

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/lntypes"
)

const (
	// maxLockTimeScriptNumLen is the maximum length of the script number
	// that encodes the refund height.
	maxLockTimeScriptNumLen = 5

	// pubKeyHashLen is the length of a hash160 public key hash.
	pubKeyHashLen = 20
)

var (
	// ErrInvalidRedeemScript is returned when a script is not a swap
	// script.
	ErrInvalidRedeemScript = swaperr.New(
		swaperr.KindInvalidRedeemScript, "InvalidRedeemScript",
	)
)

// ScriptForm identifies which of the two swap script templates a redeem
// script follows.
type ScriptForm uint8

const (
	// RefundPubKeyForm commits to the refund public key directly.
	RefundPubKeyForm ScriptForm = iota

	// RefundPkHashForm commits to the hash of the refund public key which
	// the refund spend has to reveal.
	RefundPkHashForm
)

// String returns a human readable name of the script form.
func (f ScriptForm) String() string {
	switch f {
	case RefundPubKeyForm:
		return "RefundPubKey"

	case RefundPkHashForm:
		return "RefundPkHash"

	default:
		return "Unknown"
	}
}

// NewSwapScript returns the redeem script of a swap that refunds to a public
// key:
//
//	OP_SHA256 <payment hash> OP_EQUAL
//	OP_IF
//		<destination key>
//	OP_ELSE
//		<height> OP_CHECKLOCKTIMEVERIFY OP_DROP <refund key>
//	OP_ENDIF
//	OP_CHECKSIG
func NewSwapScript(destination, refund *btcec.PublicKey,
	paymentHash lntypes.Hash, height uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(paymentHash[:])
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddData(destination.SerializeCompressed())
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(height))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(refund.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// NewPkHashSwapScript returns the redeem script of a swap that refunds to the
// key committed to by a public key hash:
//
//	OP_DUP OP_SHA256 <payment hash> OP_EQUAL
//	OP_IF
//		OP_DROP <destination key>
//	OP_ELSE
//		<height> OP_CHECKLOCKTIMEVERIFY OP_DROP
//		OP_DUP OP_HASH160 <refund key hash> OP_EQUALVERIFY
//	OP_ENDIF
//	OP_CHECKSIG
func NewPkHashSwapScript(destination *btcec.PublicKey, refundPkHash []byte,
	paymentHash lntypes.Hash, height uint32) ([]byte, error) {

	if len(refundPkHash) != pubKeyHashLen {
		return nil, fmt.Errorf("refund key hash must be %d bytes, "+
			"got %d", pubKeyHashLen, len(refundPkHash))
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(paymentHash[:])
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(destination.SerializeCompressed())
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(height))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(refundPkHash)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// templateEntry is a single expected element of a swap script.
type templateEntry struct {
	// opcode is the expected opcode. Ignored for height entries.
	opcode byte

	// height marks the entry holding the refund height script number.
	height bool

	// field is the name the pushed data is recorded under.
	field string
}

var (
	refundPubKeyTemplate = []templateEntry{
		{opcode: txscript.OP_SHA256},
		{opcode: txscript.OP_DATA_32, field: "hash"},
		{opcode: txscript.OP_EQUAL},
		{opcode: txscript.OP_IF},
		{opcode: txscript.OP_DATA_33, field: "destination"},
		{opcode: txscript.OP_ELSE},
		{height: true},
		{opcode: txscript.OP_CHECKLOCKTIMEVERIFY},
		{opcode: txscript.OP_DROP},
		{opcode: txscript.OP_DATA_33, field: "refund"},
		{opcode: txscript.OP_ENDIF},
		{opcode: txscript.OP_CHECKSIG},
	}

	refundPkHashTemplate = []templateEntry{
		{opcode: txscript.OP_DUP},
		{opcode: txscript.OP_SHA256},
		{opcode: txscript.OP_DATA_32, field: "hash"},
		{opcode: txscript.OP_EQUAL},
		{opcode: txscript.OP_IF},
		{opcode: txscript.OP_DROP},
		{opcode: txscript.OP_DATA_33, field: "destination"},
		{opcode: txscript.OP_ELSE},
		{height: true},
		{opcode: txscript.OP_CHECKLOCKTIMEVERIFY},
		{opcode: txscript.OP_DROP},
		{opcode: txscript.OP_DUP},
		{opcode: txscript.OP_HASH160},
		{opcode: txscript.OP_DATA_20, field: "refundhash"},
		{opcode: txscript.OP_EQUALVERIFY},
		{opcode: txscript.OP_ENDIF},
		{opcode: txscript.OP_CHECKSIG},
	}
)

// parsedScript holds the elements recovered from a swap script.
type parsedScript struct {
	form         ScriptForm
	destination  *btcec.PublicKey
	refund       fn.Option[*btcec.PublicKey]
	refundPkHash []byte
	paymentHash  lntypes.Hash
	height       uint32
}

// parseSwapScript matches a redeem script against the swap templates.
func parseSwapScript(script []byte) (*parsedScript, error) {
	if len(script) == 0 {
		return nil, swaperr.Wrapf(
			ErrInvalidRedeemScript, "empty script",
		)
	}

	template, form := refundPubKeyTemplate, RefundPubKeyForm
	if script[0] == txscript.OP_DUP {
		template, form = refundPkHashTemplate, RefundPkHashForm
	}

	fields, height, err := matchTemplate(script, template)
	if err != nil {
		return nil, swaperr.Wrap(ErrInvalidRedeemScript, err)
	}

	destination, err := btcec.ParsePubKey(fields["destination"])
	if err != nil {
		return nil, swaperr.Wrapf(
			ErrInvalidRedeemScript, "destination key: %v", err,
		)
	}

	parsed := &parsedScript{
		form:        form,
		destination: destination,
		height:      height,
	}
	copy(parsed.paymentHash[:], fields["hash"])

	switch form {
	case RefundPubKeyForm:
		// A refund key that does not parse still leaves a usable
		// script for the claim side.
		refund, err := btcec.ParsePubKey(fields["refund"])
		if err == nil {
			parsed.refund = fn.Some(refund)
			parsed.refundPkHash = btcutil.Hash160(
				refund.SerializeCompressed(),
			)
		}

	case RefundPkHashForm:
		parsed.refundPkHash = fields["refundhash"]
	}

	return parsed, nil
}

// matchTemplate walks the script tokens and checks them against the template,
// returning the named data pushes and the refund height.
func matchTemplate(script []byte,
	template []templateEntry) (map[string][]byte, uint32, error) {

	var (
		offset int
		height int64
		fields = make(map[string][]byte)
	)

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if offset >= len(template) {
			return nil, 0, errors.New("too many script elements")
		}

		op, data := tokenizer.Opcode(), tokenizer.Data()
		entry := template[offset]
		offset++

		if entry.height {
			switch {
			case data != nil:
				num, err := decodeScriptNum(data)
				if err != nil {
					return nil, 0, err
				}
				height = num

			case txscript.IsSmallInt(op):
				height = int64(txscript.AsSmallInt(op))

			default:
				return nil, 0, errors.New("expected height")
			}

			continue
		}

		if op != entry.opcode {
			return nil, 0, fmt.Errorf("expected opcode %v at %d, "+
				"got %v", entry.opcode, offset-1, op)
		}

		if entry.field != "" {
			fields[entry.field] = data
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, 0, err
	}
	if offset != len(template) {
		return nil, 0, errors.New("incorrect script length")
	}

	if height <= 0 || height >= txscript.LockTimeThreshold {
		return nil, 0, fmt.Errorf("invalid refund height %d", height)
	}

	return fields, uint32(height), nil
}

// decodeScriptNum decodes a minimally encoded little endian sign magnitude
// script number.
func decodeScriptNum(data []byte) (int64, error) {
	if len(data) > maxLockTimeScriptNumLen {
		return 0, fmt.Errorf("script number of %d bytes exceeds %d",
			len(data), maxLockTimeScriptNumLen)
	}

	if len(data) == 0 {
		return 0, nil
	}

	// The most significant byte may only be zero if the byte before it
	// has its sign bit set.
	last := data[len(data)-1]
	if last&0x7f == 0 && (len(data) == 1 || data[len(data)-2]&0x80 == 0) {
		return 0, errors.New("non-minimally encoded script number")
	}

	var result int64
	for i, b := range data {
		result |= int64(b) << uint8(8*i)
	}

	if last&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(data)-1)))
		return -result, nil
	}

	return result, nil
}
