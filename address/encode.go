package address

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/gcash/bchutil"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightningnetwork/lnd/input"
)

// ScriptHash returns the pay to script hash address of a redeem script.
func ScriptHash(script []byte, net *netparams.Network) (string, error) {
	addr, err := btcutil.NewAddressScriptHash(script, net.Params)
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}

// WitnessScriptHash returns the native pay to witness script hash address of
// a witness script. An empty address is returned on networks without segwit.
func WitnessScriptHash(script []byte, net *netparams.Network) (string,
	error) {

	if !net.Segwit {
		return "", nil
	}

	witnessProgram, err := input.WitnessScriptHash(script)
	if err != nil {
		return "", err
	}

	// The program is OP_0 followed by a push of the script hash.
	addr, err := btcutil.NewAddressWitnessScriptHash(
		witnessProgram[2:], net.Params,
	)
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}

// NestedWitnessScriptHash returns the p2sh wrapped pay to witness script hash
// address of a witness script. An empty address is returned on networks
// without segwit.
func NestedWitnessScriptHash(script []byte, net *netparams.Network) (string,
	error) {

	if !net.Segwit {
		return "", nil
	}

	witnessProgram, err := input.WitnessScriptHash(script)
	if err != nil {
		return "", err
	}

	return ScriptHash(witnessProgram, net)
}

// CashScriptHash returns the cash address encoding of the pay to script hash
// address of a redeem script. An empty address is returned on networks
// without cash addresses.
func CashScriptHash(script []byte, net *netparams.Network) (string, error) {
	if !net.IsCashAddressNetwork() {
		return "", nil
	}

	addr, err := bchutil.NewAddressScriptHash(script, net.CashParams)
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}
