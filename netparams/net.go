package netparams

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	bchcfg "github.com/gcash/bchd/chaincfg"
	"github.com/lightninglabs/swapwatch/swaperr"
	"github.com/lightningnetwork/lnd/keychain"
	litecoinCfg "github.com/ltcsuite/ltcd/chaincfg"
)

const (
	// coinTypeLitecoin is the BIP44 coin type registered for litecoin.
	coinTypeLitecoin = 2

	// coinTypeBitcoinCash is the BIP44 coin type registered for bitcoin
	// cash.
	coinTypeBitcoinCash = 145

	// ltcRegtestHRP is the witness address prefix of litecoin regtest.
	// The ltcd parameters reuse the bitcoin regtest prefix for it.
	ltcRegtestHRP = "rltc"
)

var (
	// ErrUnknownNetwork is returned when a network name is not part of the
	// registry.
	ErrUnknownNetwork = swaperr.New(
		swaperr.KindValidation, "ExpectedKnownNetwork",
	)
)

// Network couples the btcd typed chain parameters of a chain with the address
// capabilities we need to know about when deriving and classifying swap
// addresses.
type Network struct {
	// Name is the name the network is referred to by in cache entries and
	// swap elements.
	Name string

	// Params holds the legacy address version bytes and the bech32 human
	// readable part. For chains other than bitcoin the relevant magics are
	// copied onto a bitcoin parameter set.
	Params *chaincfg.Params

	// CashParams is set for networks that also accept the cash address
	// encoding.
	CashParams *bchcfg.Params

	// Segwit is true for networks that support witness outputs.
	Segwit bool

	// CoinType is the BIP44 coin type used for key derivation.
	CoinType uint32
}

// IsCashAddressNetwork returns true if the network has an alternate cash
// address encoding.
func (n *Network) IsCashAddressNetwork() bool {
	return n.CashParams != nil
}

// String returns the network name.
func (n *Network) String() string {
	return n.Name
}

var (
	// Bitcoin is the bitcoin main network.
	Bitcoin = &Network{
		Name:     "bitcoin",
		Params:   bitcoinParams("bitcoin", &chaincfg.MainNetParams),
		Segwit:   true,
		CoinType: keychain.CoinTypeBitcoin,
	}

	// Testnet is the bitcoin test network.
	Testnet = &Network{
		Name:     "testnet",
		Params:   bitcoinParams("testnet", &chaincfg.TestNet3Params),
		Segwit:   true,
		CoinType: keychain.CoinTypeTestnet,
	}

	// Regtest is a local bitcoin regression test network.
	Regtest = &Network{
		Name:     "regtest",
		Params:   bitcoinParams("regtest", &chaincfg.RegressionNetParams),
		Segwit:   true,
		CoinType: keychain.CoinTypeTestnet,
	}

	// BitcoinCash is the bitcoin cash main network.
	BitcoinCash = &Network{
		Name: "bitcoincash",
		Params: cashParams(
			"bitcoincash", &chaincfg.MainNetParams,
			coinTypeBitcoinCash,
		),
		CashParams: &bchcfg.MainNetParams,
		CoinType:   coinTypeBitcoinCash,
	}

	// BitcoinCashTestnet is the bitcoin cash test network.
	BitcoinCashTestnet = &Network{
		Name: "bitcoincashtestnet",
		Params: cashParams(
			"bitcoincashtestnet", &chaincfg.TestNet3Params,
			keychain.CoinTypeTestnet,
		),
		CashParams: &bchcfg.TestNet3Params,
		CoinType:   keychain.CoinTypeTestnet,
	}

	// BitcoinCashRegtest is a local bitcoin cash regression test network.
	BitcoinCashRegtest = &Network{
		Name: "bitcoincashregtest",
		Params: cashParams(
			"bitcoincashregtest", &chaincfg.RegressionNetParams,
			keychain.CoinTypeTestnet,
		),
		CashParams: &bchcfg.RegressionNetParams,
		CoinType:   keychain.CoinTypeTestnet,
	}

	// Litecoin is the litecoin main network.
	Litecoin = &Network{
		Name: "litecoin",
		Params: litecoinParams(
			"litecoin", &litecoinCfg.MainNetParams,
		),
		Segwit:   true,
		CoinType: coinTypeLitecoin,
	}

	// LitecoinTestnet is the fourth litecoin test network.
	LitecoinTestnet = &Network{
		Name: "ltctestnet",
		Params: litecoinParams(
			"ltctestnet", &litecoinCfg.TestNet4Params,
		),
		Segwit:   true,
		CoinType: keychain.CoinTypeTestnet,
	}

	// LitecoinRegtest is a local litecoin regression test network.
	LitecoinRegtest = &Network{
		Name: "ltcregtest",
		Params: litecoinParams(
			"ltcregtest", &litecoinCfg.RegressionNetParams,
		),
		Segwit:   true,
		CoinType: keychain.CoinTypeTestnet,
	}

	registeredNets = map[string]*Network{}
)

func init() {
	for _, n := range []*Network{
		Bitcoin, Testnet, Regtest, BitcoinCash, BitcoinCashTestnet,
		BitcoinCashRegtest, Litecoin, LitecoinTestnet, LitecoinRegtest,
	} {
		registeredNets[n.Name] = n
	}
}

// Lookup returns the network registered under the given name.
func Lookup(name string) (*Network, error) {
	n, ok := registeredNets[name]
	if !ok {
		return nil, swaperr.Wrapf(
			ErrUnknownNetwork, "unknown network %q", name,
		)
	}

	return n, nil
}

// Names returns the sorted names of all registered networks.
func Names() []string {
	names := make([]string, 0, len(registeredNets))
	for name := range registeredNets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// bitcoinParams returns a copy of the bitcoin parameters named after the
// network.
func bitcoinParams(name string, base *chaincfg.Params) *chaincfg.Params {
	params := *base
	params.Name = name

	return &params
}

// cashParams returns a copy of the bitcoin parameters with witness address
// encoding removed. The legacy version bytes of bitcoin cash are identical to
// the ones of the bitcoin chain it forked from.
func cashParams(name string, base *chaincfg.Params,
	coinType uint32) *chaincfg.Params {

	params := *base
	params.Name = name
	params.Bech32HRPSegwit = ""
	params.HDCoinType = coinType

	return &params
}

// litecoinParams applies the relevant chain configuration parameters that
// differ for litecoin to the chain parameters typed for btcsuite derivation.
func litecoinParams(name string, ltc *litecoinCfg.Params) *chaincfg.Params {
	params := chaincfg.MainNetParams
	params.Name = name
	params.Net = wire.BitcoinNet(ltc.Net)
	params.DefaultPort = ltc.DefaultPort

	// Address encoding magics.
	params.PubKeyHashAddrID = ltc.PubKeyHashAddrID
	params.ScriptHashAddrID = ltc.ScriptHashAddrID
	params.PrivateKeyID = ltc.PrivateKeyID
	params.WitnessPubKeyHashAddrID = ltc.WitnessPubKeyHashAddrID
	params.WitnessScriptHashAddrID = ltc.WitnessScriptHashAddrID
	params.Bech32HRPSegwit = ltc.Bech32HRPSegwit

	copy(params.HDPrivateKeyID[:], ltc.HDPrivateKeyID[:])
	copy(params.HDPublicKeyID[:], ltc.HDPublicKeyID[:])

	params.HDCoinType = ltc.HDCoinType

	if ltc == &litecoinCfg.RegressionNetParams {
		params.Bech32HRPSegwit = ltcRegtestHRP
	}

	return &params
}
