package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/swapwatch/address"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/watch"
	"github.com/urfave/cli"
)

var classifyCommand = cli.Command{
	Name:      "classify",
	Usage:     "show the output type of an address",
	ArgsUsage: "address",
	Action:    classify,
}

type addressView struct {
	Type    string `json:"type"`
	Hash    string `json:"hash,omitempty"`
	Data    string `json:"data,omitempty"`
	Version *uint8 `json:"version,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
}

func classify(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "classify")
	}

	details, err := address.Classify(
		ctx.Args().First(), ctx.GlobalString("network"),
	)
	if err != nil {
		return err
	}

	view := &addressView{
		Type:   string(details.Type),
		Hash:   hex.EncodeToString(details.Hash),
		Data:   hex.EncodeToString(details.Data),
		Prefix: details.Prefix.UnwrapOr(""),
	}
	details.Version.WhenSome(func(version uint8) {
		view.Version = &version
	})

	return printJSON(view)
}

var describeCommand = cli.Command{
	Name:      "describe",
	Usage:     "decode a swap redeem script and show its addresses",
	ArgsUsage: "script_hex",
	Action:    describe,
}

type scriptView struct {
	Form                 string `json:"form"`
	DestinationPublicKey string `json:"destination_public_key"`
	RefundPublicKey      string `json:"refund_public_key,omitempty"`
	RefundPublicKeyHash  string `json:"refund_public_key_hash"`
	PaymentHash          string `json:"payment_hash"`
	TimelockBlockHeight  uint32 `json:"timelock_block_height"`
	BchP2shAddress       string `json:"bch_p2sh_address,omitempty"`
	P2shAddress          string `json:"p2sh_address"`
	P2shP2wshAddress     string `json:"p2sh_p2wsh_address,omitempty"`
	P2wshAddress         string `json:"p2wsh_address,omitempty"`
	P2shOutputScript     string `json:"p2sh_output_script"`
	P2wshOutputScript    string `json:"witness_output_script,omitempty"`
}

func describe(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "describe")
	}

	details, err := swap.Describe(
		ctx.Args().First(), ctx.GlobalString("network"),
	)
	if err != nil {
		return err
	}

	view := &scriptView{
		Form: details.Form.String(),
		DestinationPublicKey: hex.EncodeToString(
			details.DestinationPublicKey.SerializeCompressed(),
		),
		RefundPublicKeyHash: hex.EncodeToString(
			details.RefundPublicKeyHash,
		),
		PaymentHash:         details.PaymentHash.String(),
		TimelockBlockHeight: details.TimelockBlockHeight,
		BchP2shAddress:      details.BchP2shAddress,
		P2shAddress:         details.P2shAddress,
		P2shP2wshAddress:    details.P2shP2wshAddress,
		P2wshAddress:        details.P2wshAddress,
		P2shOutputScript:    hex.EncodeToString(details.P2shOutputScript),
		P2wshOutputScript: hex.EncodeToString(
			details.P2wshOutputScript,
		),
	}
	details.RefundPublicKey.WhenSome(func(key *btcec.PublicKey) {
		view.RefundPublicKey = hex.EncodeToString(
			key.SerializeCompressed(),
		)
	})

	return printJSON(view)
}

var registerCommand = cli.Command{
	Name:  "register",
	Usage: "start watching the addresses of a swap",
	Flags: []cli.Flag{
		cli.UintFlag{
			Name:  "index",
			Usage: "the claim key index of the swap",
		},
		cli.StringFlag{
			Name:  "invoice",
			Usage: "the swap payment request",
		},
		cli.StringFlag{
			Name:  "script",
			Usage: "the hex encoded swap redeem script",
		},
		cli.Int64Flag{
			Name:  "tokens",
			Usage: "the amount the swap output is expected to hold",
		},
	},
	Action: register,
}

func register(ctx *cli.Context) error {
	service, cleanup, err := getService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return service.RegisterWatch(context.Background(), &watch.Watch{
		ClaimKeyIndex:  uint32(ctx.Uint("index")),
		Invoice:        ctx.String("invoice"),
		Network:        ctx.GlobalString("network"),
		RedeemScript:   ctx.String("script"),
		ExpectedTokens: ctx.Int64("tokens"),
	})
}

var lookupCommand = cli.Command{
	Name:      "lookup",
	Usage:     "show the swap an address is watched for",
	ArgsUsage: "address",
	Action:    lookup,
}

func lookup(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "lookup")
	}

	service, cleanup, err := getService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	watched, err := service.LookupWatchedOutput(
		context.Background(), ctx.Args().First(),
		ctx.GlobalString("network"),
	)
	if err != nil {
		return err
	}
	if watched == nil {
		return errors.New("address is not watched")
	}

	return printJSON(watched)
}

var eventsCommand = cli.Command{
	Name:      "events",
	Usage:     "list the elements detected for a swap",
	ArgsUsage: "swap_id",
	Action:    events,
}

func events(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "events")
	}

	service, cleanup, err := getService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	elements, err := service.SwapElements(
		context.Background(), ctx.Args().First(),
	)
	if err != nil {
		return err
	}

	return printJSON(elements)
}

var scanCommand = cli.Command{
	Name:      "scan",
	Usage:     "detect the swap elements of a raw transaction",
	ArgsUsage: "tx_hex",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "block",
			Usage: "the hash of the block the transaction confirmed in",
		},
	},
	Action: scanTx,
}

func scanTx(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "scan")
	}

	rawTx, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return err
	}

	service, cleanup, err := getService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	elements, err := service.ScanTransaction(
		context.Background(), ctx.GlobalString("network"), tx,
		ctx.String("block"),
	)
	if err != nil {
		return err
	}
	if elements == nil {
		elements = []pool.Element{}
	}

	return printJSON(elements)
}
