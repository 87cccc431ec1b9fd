package swap

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/swapwatch/address"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnutils"
)

// ScriptDetails holds everything that can be derived from a swap redeem
// script on a given network. Address fields are empty when the network does
// not support the address family.
type ScriptDetails struct {
	// Form is the template the script follows.
	Form ScriptForm

	// DestinationPublicKey is the key of the claim branch.
	DestinationPublicKey *btcec.PublicKey

	// RefundPublicKey is the key of the refund branch when the script
	// commits to it directly.
	RefundPublicKey fn.Option[*btcec.PublicKey]

	// RefundPublicKeyHash is the hash160 of the refund key.
	RefundPublicKeyHash []byte

	// PaymentHash is the hash the claim preimage must hash to.
	PaymentHash lntypes.Hash

	// TimelockBlockHeight is the absolute height after which the refund
	// branch becomes spendable.
	TimelockBlockHeight uint32

	// BchP2shAddress is the cash address encoding of the p2sh address.
	BchP2shAddress string

	// P2shAddress is the legacy pay to script hash address.
	P2shAddress string

	// P2shP2wshAddress is the nested witness script hash address.
	P2shP2wshAddress string

	// P2wshAddress is the native witness script hash address.
	P2wshAddress string

	// P2shOutputScript is the output script paying to P2shAddress.
	P2shOutputScript []byte

	// P2shP2wshOutputScript is the output script paying to
	// P2shP2wshAddress.
	P2shP2wshOutputScript []byte

	// P2wshOutputScript is the output script paying to P2wshAddress.
	P2wshOutputScript []byte

	// RedeemScript is the script the details were derived from.
	RedeemScript []byte
}

// Addresses returns the non-empty addresses of the script.
func (d *ScriptDetails) Addresses() []string {
	var addrs []string
	for _, addr := range []string{
		d.BchP2shAddress, d.P2shAddress, d.P2shP2wshAddress,
		d.P2wshAddress,
	} {
		if addr != "" {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}

// Describe decodes a hex encoded swap redeem script for the named network.
func Describe(scriptHex, network string) (*ScriptDetails, error) {
	net, err := netparams.Lookup(network)
	if err != nil {
		return nil, err
	}

	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return nil, swaperr.Wrap(ErrInvalidRedeemScript, err)
	}

	return DescribeScript(script, net)
}

// DescribeScript decodes a swap redeem script and derives every address it
// can be paid to on the network.
func DescribeScript(script []byte,
	net *netparams.Network) (*ScriptDetails, error) {

	parsed, err := parseSwapScript(script)
	if err != nil {
		return nil, err
	}

	details := &ScriptDetails{
		Form:                 parsed.form,
		DestinationPublicKey: parsed.destination,
		RefundPublicKey:      parsed.refund,
		RefundPublicKeyHash:  parsed.refundPkHash,
		PaymentHash:          parsed.paymentHash,
		TimelockBlockHeight:  parsed.height,
		RedeemScript:         script,
	}

	// Failing to encode a parsed script is a hard failure as well, the
	// details are never returned partially populated.
	fail := func(err error) (*ScriptDetails, error) {
		return nil, swaperr.Wrap(ErrInvalidRedeemScript, err)
	}

	details.P2shAddress, err = address.ScriptHash(script, net)
	if err != nil {
		return fail(err)
	}

	details.P2shOutputScript, err = scriptHashOutput(script)
	if err != nil {
		return fail(err)
	}

	details.BchP2shAddress, err = address.CashScriptHash(script, net)
	if err != nil {
		return fail(err)
	}

	if !net.Segwit {
		log.Tracef("Described %v swap script on %v: %v", details.Form,
			net, lnutils.SpewLogClosure(details))

		return details, nil
	}

	details.P2wshAddress, err = address.WitnessScriptHash(script, net)
	if err != nil {
		return fail(err)
	}

	details.P2shP2wshAddress, err = address.NestedWitnessScriptHash(
		script, net,
	)
	if err != nil {
		return fail(err)
	}

	details.P2wshOutputScript, err = input.WitnessScriptHash(script)
	if err != nil {
		return fail(err)
	}

	details.P2shP2wshOutputScript, err = scriptHashOutput(
		details.P2wshOutputScript,
	)
	if err != nil {
		return fail(err)
	}

	log.Tracef("Described %v swap script on %v: %v", details.Form, net,
		lnutils.SpewLogClosure(details))

	return details, nil
}

// scriptHashOutput returns the pay to script hash output script of a redeem
// script.
func scriptHashOutput(script []byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(script))
	builder.AddOp(txscript.OP_EQUAL)

	return builder.Script()
}
