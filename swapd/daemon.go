package swapd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lightninglabs/swapwatch"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/chain"
	"github.com/lightninglabs/swapwatch/keys"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// Daemon follows the chain of one network and feeds every new block and
// mempool transaction through the swap service.
type Daemon struct {
	network     string
	rescanDepth uint32

	service *swapwatch.Service
	source  chain.Source
	stores  []cache.Store

	// stopSource releases the chain backend connection, if any.
	stopSource func()

	pollTicker  ticker.Ticker
	purgeTicker ticker.Ticker

	// lastTip is the most recent chain tip that was scanned.
	lastTip string

	// scanned holds the hashes of recently scanned blocks, oldest first.
	scanned    []string
	scannedSet map[string]struct{}

	// mempool holds the ids of the mempool transactions already scanned.
	mempool map[string]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a daemon scanning the source with the service. The stores are
// purged periodically and closed on stop.
func New(cfg *Config, service *swapwatch.Service, source chain.Source,
	stores ...cache.Store) *Daemon {

	return &Daemon{
		network:     cfg.Network,
		rescanDepth: cfg.RescanDepth,
		service:     service,
		source:      source,
		stores:      stores,
		pollTicker:  ticker.New(cfg.PollInterval),
		purgeTicker: ticker.New(cfg.PurgeInterval),
		scannedSet:  make(map[string]struct{}),
		mempool:     make(map[string]struct{}),
		quit:        make(chan struct{}),
	}
}

// NewFromConfig opens the configured cache, connects to the chain backend
// and builds the daemon.
func NewFromConfig(cfg *Config) (*Daemon, error) {
	clk := clock.NewDefaultClock()

	store, err := OpenStore(cfg, clk)
	if err != nil {
		return nil, err
	}

	seed, err := ReadSeed(cfg.SeedFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	deriver, err := keys.NewSeedDeriver(seed)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rpcSource, err := chain.NewRPCSource(cfg.Network, cfg.Chain)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Block metadata and transaction marks only matter to this process.
	local := cache.NewMemoryStore(clk)
	source := chain.NewMetadataCache(rpcSource, local)

	service, err := swapwatch.New(&swapwatch.Config{
		Store:   store,
		Markers: local,
		Deriver: deriver,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d := New(cfg, service, source, store, local)
	d.stopSource = rpcSource.Stop

	return d, nil
}

// OpenStore opens the cache backend selected in the config.
func OpenStore(cfg *Config, clk clock.Clock) (cache.Store, error) {
	switch cfg.CacheBackend {
	case BackendMemory:
		return cache.NewMemoryStore(clk), nil

	case BackendBolt:
		return cache.NewBoltStore(
			&cache.BoltConfig{DataDir: cfg.DataDir}, clk,
		)

	case BackendSqlite:
		return cache.NewSqliteStore(cfg.Sqlite, clk)

	case BackendPostgres:
		return cache.NewPostgresStore(cfg.Postgres, clk)

	default:
		return nil, fmt.Errorf("unknown cache backend: %v",
			cfg.CacheBackend)
	}
}

// Start launches the poll loop.
func (d *Daemon) Start() error {
	log.Infof("Watching %v swaps, version %v", d.network,
		swapwatch.Version())

	d.pollTicker.Resume()
	d.purgeTicker.Resume()

	d.wg.Add(1)
	go d.run()

	return nil
}

// Stop shuts the poll loop down and closes the stores.
func (d *Daemon) Stop() {
	close(d.quit)
	d.wg.Wait()

	d.pollTicker.Stop()
	d.purgeTicker.Stop()

	if d.stopSource != nil {
		d.stopSource()
	}

	for _, store := range d.stores {
		if err := store.Close(); err != nil {
			log.Errorf("Unable to close cache: %v", err)
		}
	}

	log.Infof("Stopped")
}

func (d *Daemon) run() {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-d.quit
		cancel()
	}()

	// Catch up right away rather than after the first interval.
	if err := d.poll(ctx); err != nil {
		log.Errorf("Unable to poll chain: %v", err)
	}

	for {
		select {
		case <-d.pollTicker.Ticks():
			err := d.poll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Unable to poll chain: %v", err)
			}

		case <-d.purgeTicker.Ticks():
			d.purge(ctx)

		case <-d.quit:
			return
		}
	}
}

// poll scans the blocks added since the last poll and the new mempool
// transactions.
func (d *Daemon) poll(ctx context.Context) error {
	if err := d.scanBlocks(ctx); err != nil {
		return err
	}

	return d.scanMempool(ctx)
}

// scanBlocks walks back from the chain tip to the last scanned block, at
// most the rescan depth, and scans the unscanned blocks from the oldest.
func (d *Daemon) scanBlocks(ctx context.Context) error {
	tip, height, err := d.source.BestBlock(ctx)
	if err != nil {
		return err
	}

	if tip == "" || tip == d.lastTip {
		return nil
	}

	var pending []*chain.BlockMetadata
	hash := tip
	for i := uint32(0); i < d.rescanDepth && hash != ""; i++ {
		if _, ok := d.scannedSet[hash]; ok {
			break
		}

		metadata, err := d.source.BlockMetadata(ctx, hash)
		if err != nil {
			return err
		}

		pending = append(pending, metadata)
		hash = metadata.PreviousHash
	}

	for i := len(pending) - 1; i >= 0; i-- {
		if err := d.scanBlock(ctx, pending[i]); err != nil {
			return err
		}
	}

	log.Debugf("Chain tip %v at height %d, scanned %d blocks", tip,
		height, len(pending))

	d.lastTip = tip

	return nil
}

func (d *Daemon) scanBlock(ctx context.Context,
	metadata *chain.BlockMetadata) error {

	block, err := d.source.Block(ctx, metadata.Hash)
	if err != nil {
		return err
	}

	elements, err := d.service.ScanBlock(ctx, d.network, block)
	if err != nil {
		return err
	}

	for _, element := range elements {
		txid, ok := elementTxID(element)
		if !ok {
			continue
		}

		confirmed, err := d.service.IsInterestingTransaction(
			ctx, d.network, txid,
		)
		if err != nil {
			log.Warnf("Unable to check transaction %v: %v", txid,
				err)
			continue
		}

		if confirmed {
			log.Infof("Swap %v transaction %v confirmed in block "+
				"%d", element.Type(), txid, metadata.Height)
		}
	}

	d.markScanned(metadata.Hash)

	return nil
}

// markScanned remembers a scanned block, forgetting the oldest beyond twice
// the rescan depth.
func (d *Daemon) markScanned(hash string) {
	d.scanned = append(d.scanned, hash)
	d.scannedSet[hash] = struct{}{}

	limit := int(2 * d.rescanDepth)
	for len(d.scanned) > limit {
		delete(d.scannedSet, d.scanned[0])
		d.scanned = d.scanned[1:]
	}
}

// scanMempool scans mempool transactions not seen by an earlier poll.
func (d *Daemon) scanMempool(ctx context.Context) error {
	ids, err := d.source.Mempool(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(ids))
	for _, txid := range ids {
		current[txid] = struct{}{}

		if _, ok := d.mempool[txid]; ok {
			continue
		}

		tx, err := d.source.Transaction(ctx, txid)
		switch {
		// Evicted or mined since the mempool was listed.
		case errors.Is(err, chain.ErrNotFound):
			continue

		case err != nil:
			return err
		}

		if _, err := d.service.ScanTransaction(
			ctx, d.network, tx, "",
		); err != nil {
			return err
		}
	}

	d.mempool = current

	return nil
}

// purge removes expired rows from every store.
func (d *Daemon) purge(ctx context.Context) {
	for _, store := range d.stores {
		removed, err := store.PurgeExpired(ctx)
		if err != nil {
			log.Errorf("Unable to purge cache: %v", err)
			continue
		}

		if removed > 0 {
			log.Debugf("Purged %d expired cache rows", removed)
		}
	}
}

// elementTxID returns the transaction id of a chain element.
func elementTxID(element pool.Element) (string, bool) {
	switch e := element.(type) {
	case *pool.Claim:
		return e.ID, true

	case *pool.Funding:
		return e.ID, true

	case *pool.Refund:
		return e.ID, true

	default:
		return "", false
	}
}
