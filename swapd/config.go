package swapd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/chain"
	"github.com/lightninglabs/swapwatch/netparams"
	"github.com/lightningnetwork/lnd/lncfg"
)

const (
	// BackendMemory keeps the cache in process memory.
	BackendMemory = "memory"

	// BackendBolt keeps the cache in a bolt database file.
	BackendBolt = "bolt"

	// BackendSqlite keeps the cache in a sqlite database file.
	BackendSqlite = "sqlite"

	// BackendPostgres keeps the cache in a postgres database.
	BackendPostgres = "postgres"
)

var (
	swapdDirBase = btcutil.AppDataDir("swapd", false)

	defaultNetwork        = "bitcoin"
	defaultLogLevel       = "info"
	defaultConfigFilename = "swapd.conf"
	defaultSqliteFilename = "cache.db"
	defaultSeedFilename   = "seed.hex"
	defaultConfigFile     = filepath.Join(
		swapdDirBase, defaultConfigFilename,
	)

	defaultPollInterval  = 10 * time.Second
	defaultPurgeInterval = 10 * time.Minute
	defaultRescanDepth   = uint32(6)
)

// Config is the configuration of the swap watching daemon.
type Config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Network     string `long:"network" description:"Network to watch"`

	SwapdDir   string `long:"swapddir" description:"The directory for all of swapd's data."`
	ConfigFile string `long:"configfile" description:"Path to configuration file."`
	DataDir    string `long:"datadir" description:"Directory for the cache databases."`
	SeedFile   string `long:"seedfile" description:"Path to the hex encoded seed the claim keys are derived from."`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	CacheBackend string `long:"cachebackend" description:"The cache backend to use." choice:"memory" choice:"bolt" choice:"sqlite" choice:"postgres"`

	PollInterval  time.Duration `long:"pollinterval" description:"How often the chain tip and mempool are polled."`
	PurgeInterval time.Duration `long:"purgeinterval" description:"How often expired cache rows are removed."`
	RescanDepth   uint32        `long:"rescandepth" description:"How many blocks below a new tip are checked for missed blocks."`

	Sqlite   *cache.SqliteConfig   `group:"sqlite" namespace:"sqlite"`
	Postgres *cache.PostgresConfig `group:"postgres" namespace:"postgres"`
	Chain    *chain.RPCConfig      `group:"chain" namespace:"chain"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		Network:       defaultNetwork,
		SwapdDir:      swapdDirBase,
		ConfigFile:    defaultConfigFile,
		DataDir:       swapdDirBase,
		DebugLevel:    defaultLogLevel,
		CacheBackend:  BackendBolt,
		PollInterval:  defaultPollInterval,
		PurgeInterval: defaultPurgeInterval,
		RescanDepth:   defaultRescanDepth,
		Sqlite:        &cache.SqliteConfig{},
		Postgres: &cache.PostgresConfig{
			Host:               "localhost",
			Port:               5432,
			MaxOpenConnections: 10,
		},
		Chain: &chain.RPCConfig{
			Host: "localhost:8332",
		},
	}
}

// Validate cleans up paths in the config provided and validates it.
func Validate(cfg *Config) error {
	if _, err := netparams.Lookup(cfg.Network); err != nil {
		return fmt.Errorf("unknown network %q, expected one of %v",
			cfg.Network, strings.Join(netparams.Names(), ", "))
	}

	// Cleanup any paths before we use them.
	cfg.SwapdDir = lncfg.CleanAndExpandPath(cfg.SwapdDir)
	cfg.DataDir = lncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.SeedFile = lncfg.CleanAndExpandPath(cfg.SeedFile)
	cfg.Chain.TLSCrt = lncfg.CleanAndExpandPath(cfg.Chain.TLSCrt)

	// The swapd dir overrides the data dir unless the data dir was set
	// explicitly.
	if cfg.SwapdDir != swapdDirBase && cfg.DataDir == swapdDirBase {
		cfg.DataDir = cfg.SwapdDir
	}

	// Namespace the data directory per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)

	if cfg.SeedFile == "" {
		cfg.SeedFile = filepath.Join(cfg.DataDir, defaultSeedFilename)
	}

	if cfg.Sqlite.DatabaseFileName == "" {
		cfg.Sqlite.DatabaseFileName = filepath.Join(
			cfg.DataDir, defaultSqliteFilename,
		)
	}
	cfg.Sqlite.DatabaseFileName = lncfg.CleanAndExpandPath(
		cfg.Sqlite.DatabaseFileName,
	)

	switch {
	case cfg.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive")

	case cfg.PurgeInterval <= 0:
		return fmt.Errorf("purge interval must be positive")

	case cfg.RescanDepth == 0:
		return fmt.Errorf("rescan depth must be at least one block")
	}

	return os.MkdirAll(cfg.DataDir, os.ModePerm)
}

// ReadSeed reads the hex encoded key derivation seed.
func ReadSeed(path string) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read seed file: %w", err)
	}

	seed, err := hex.DecodeString(strings.TrimSpace(string(contents)))
	if err != nil {
		return nil, fmt.Errorf("invalid seed file %v: %w", path, err)
	}

	return seed, nil
}
