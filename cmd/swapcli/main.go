package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lightninglabs/swapwatch"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/keys"
	"github.com/lightninglabs/swapwatch/swapd"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/urfave/cli"
)

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}

	fmt.Println(string(out))

	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = swapwatch.Version()
	app.Name = "swapcli"
	app.Usage = "inspect swap scripts and the swapd cache"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Value: "bitcoin",
			Usage: "the network of addresses and scripts",
		},
		cli.StringFlag{
			Name:  "swapddir",
			Usage: "the swapd data directory",
		},
		cli.StringFlag{
			Name:  "cachebackend",
			Value: swapd.BackendBolt,
			Usage: "the cache backend swapd uses (bolt, sqlite)",
		},
		cli.StringFlag{
			Name:  "seedfile",
			Usage: "the hex encoded key derivation seed",
		},
	}
	app.Commands = []cli.Command{
		classifyCommand, describeCommand, registerCommand,
		lookupCommand, eventsCommand, scanCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// getConfig returns the swapd config selected by the global flags.
func getConfig(ctx *cli.Context) (*swapd.Config, error) {
	cfg := swapd.DefaultConfig()
	cfg.Network = ctx.GlobalString("network")
	cfg.CacheBackend = ctx.GlobalString("cachebackend")

	if dir := ctx.GlobalString("swapddir"); dir != "" {
		cfg.SwapdDir = dir
	}
	if seedFile := ctx.GlobalString("seedfile"); seedFile != "" {
		cfg.SeedFile = seedFile
	}

	if err := swapd.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getService opens the swapd cache of the selected network. The returned
// cleanup closes it.
func getService(ctx *cli.Context) (*swapwatch.Service, func(), error) {
	cfg, err := getConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := swapd.OpenStore(cfg, clock.NewDefaultClock())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
	}

	deriver, err := seedDeriver(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	service, err := swapwatch.New(&swapwatch.Config{
		Store:   store,
		Markers: cache.NewMemoryStore(clock.NewDefaultClock()),
		Deriver: deriver,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return service, cleanup, nil
}

// seedDeriver returns a deriver for the seed file, or one that fails every
// derivation if there is no seed file. Only registering needs keys.
func seedDeriver(cfg *swapd.Config) (keys.Deriver, error) {
	if _, err := os.Stat(cfg.SeedFile); os.IsNotExist(err) {
		return keys.NoSeedDeriver{}, nil
	}

	seed, err := swapd.ReadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	return keys.NewSeedDeriver(seed)
}
