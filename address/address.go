package address

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/gcash/bchutil"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// publicKeyHashLength is the length of a hash160 and of a version 0
	// witness public key hash program.
	publicKeyHashLength = 20

	// witnessScriptHashLength is the length of a version 0 witness script
	// hash program.
	witnessScriptHashLength = 32
)

var (
	// ErrExpectedAddress is returned when no address is given.
	ErrExpectedAddress = swaperr.New(
		swaperr.KindValidation, "ExpectedAddress",
	)

	// ErrExpectedNetwork is returned when the network is missing or not
	// known.
	ErrExpectedNetwork = swaperr.New(
		swaperr.KindValidation, "ExpectedNetworkForAddress",
	)

	// ErrExpectedValidAddress is returned when the address parses neither
	// as a base58 nor as a bech32 address of the network.
	ErrExpectedValidAddress = swaperr.New(
		swaperr.KindInvalidAddress, "ExpectedValidAddress",
	)

	// ErrUnexpectedWitnessDataLength is returned for witness programs that
	// are neither a public key hash nor a script hash.
	ErrUnexpectedWitnessDataLength = swaperr.New(
		swaperr.KindInvalidAddress, "UnexpectedWitnessDataLength",
	)

	// ErrUnknownAddressVersion is returned for base58 addresses whose
	// version byte is not one of the network's.
	ErrUnknownAddressVersion = swaperr.New(
		swaperr.KindInvalidAddress, "UnknownAddressVersion",
	)
)

// Type is the output type an address pays to.
type Type string

const (
	// TypeP2PKH is a pay to public key hash address.
	TypeP2PKH Type = "p2pkh"

	// TypeP2SH is a pay to script hash address.
	TypeP2SH Type = "p2sh"

	// TypeP2WPKH is a pay to witness public key hash address.
	TypeP2WPKH Type = "p2wpkh"

	// TypeP2WSH is a pay to witness script hash address.
	TypeP2WSH Type = "p2wsh"
)

// IsWitness returns true for native witness address types.
func (t Type) IsWitness() bool {
	return t == TypeP2WPKH || t == TypeP2WSH
}

// Details is the classification of an address. Exactly one of Version and
// Prefix is set: base58 addresses carry their version byte, witness addresses
// their human readable part.
type Details struct {
	// Type is the output type of the address.
	Type Type

	// Hash is the hash160 committed to by a base58 address.
	Hash []byte

	// Data is the witness program of a witness address.
	Data []byte

	// Version is the base58 version byte.
	Version fn.Option[uint8]

	// Prefix is the bech32 human readable part.
	Prefix fn.Option[string]
}

// HashOrData returns the bytes committed to by the address regardless of its
// encoding.
func (d *Details) HashOrData() []byte {
	if d.Type.IsWitness() {
		return d.Data
	}

	return d.Hash
}

// Classify parses an address of the named network and determines its type.
// Cash addresses on networks that support them are normalized to the legacy
// encoding first, so both encodings of the same hash classify identically.
func Classify(addr, network string) (*Details, error) {
	if addr == "" {
		return nil, ErrExpectedAddress
	}

	if network == "" {
		return nil, ErrExpectedNetwork
	}

	net, err := netparams.Lookup(network)
	if err != nil {
		return nil, swaperr.Wrap(ErrExpectedNetwork, err)
	}

	return ClassifyForNetwork(addr, net)
}

// ClassifyForNetwork is like Classify but takes a resolved network.
func ClassifyForNetwork(addr string, net *netparams.Network) (*Details,
	error) {

	if addr == "" {
		return nil, ErrExpectedAddress
	}

	if net == nil {
		return nil, ErrExpectedNetwork
	}

	if net.IsCashAddressNetwork() {
		if legacy, ok := toLegacyAddress(addr, net); ok {
			addr = legacy
		}
	}

	hash, version, err := base58.CheckDecode(addr)
	if err == nil {
		return classifyBase58(hash, version, net)
	}

	hrp, program, witnessVersion, err := decodeWitnessAddress(addr)
	if err != nil {
		return nil, swaperr.Wrap(ErrExpectedValidAddress, err)
	}

	// Only the witness encoding of the network itself is accepted.
	if !net.Segwit || hrp != net.Params.Bech32HRPSegwit ||
		witnessVersion != 0 {

		return nil, swaperr.Wrapf(
			ErrExpectedValidAddress, "unexpected witness address "+
				"%v version %d on %v", hrp, witnessVersion, net,
		)
	}

	details := &Details{
		Data:   program,
		Prefix: fn.Some(hrp),
	}

	switch len(program) {
	case publicKeyHashLength:
		details.Type = TypeP2WPKH

	case witnessScriptHashLength:
		details.Type = TypeP2WSH

	default:
		return nil, swaperr.Wrapf(
			ErrUnexpectedWitnessDataLength, "witness program of "+
				"%d bytes", len(program),
		)
	}

	return details, nil
}

// classifyBase58 classifies a decoded base58 address by its version byte.
func classifyBase58(hash []byte, version byte,
	net *netparams.Network) (*Details, error) {

	if len(hash) != publicKeyHashLength {
		return nil, swaperr.Wrapf(
			ErrExpectedValidAddress, "base58 payload of %d bytes",
			len(hash),
		)
	}

	details := &Details{
		Hash:    hash,
		Version: fn.Some(version),
	}

	switch version {
	case net.Params.PubKeyHashAddrID:
		details.Type = TypeP2PKH

	case net.Params.ScriptHashAddrID:
		details.Type = TypeP2SH

	default:
		return nil, swaperr.Wrapf(
			ErrUnknownAddressVersion, "version %d on %v", version,
			net,
		)
	}

	return details, nil
}

// decodeWitnessAddress decodes a bech32 address into its human readable
// part, witness program and witness version.
func decodeWitnessAddress(addr string) (string, []byte, byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return "", nil, 0, err
	}

	if len(data) < 1 {
		return "", nil, 0, bech32.ErrInvalidLength(len(data))
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return "", nil, 0, err
	}

	return hrp, program, data[0], nil
}

// toLegacyAddress converts a cash address into the base58 encoding of the
// same hash. The second return value is false if the address is not a cash
// address.
func toLegacyAddress(addr string, net *netparams.Network) (string, bool) {
	decoded, err := bchutil.DecodeAddress(addr, net.CashParams)
	if err != nil {
		return "", false
	}

	switch a := decoded.(type) {
	case *bchutil.AddressPubKeyHash:
		return base58.CheckEncode(
			a.ScriptAddress(), net.Params.PubKeyHashAddrID,
		), true

	case *bchutil.AddressScriptHash:
		return base58.CheckEncode(
			a.ScriptAddress(), net.Params.ScriptHashAddrID,
		), true

	// Legacy encodings decoded by bchutil are not cash addresses.
	default:
		return "", false
	}
}
