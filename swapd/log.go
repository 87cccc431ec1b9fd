package swapd

import (
	"io"
	"sort"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/swapwatch"
	"github.com/lightninglabs/swapwatch/cache"
	"github.com/lightninglabs/swapwatch/chain"
	"github.com/lightninglabs/swapwatch/pool"
	"github.com/lightninglabs/swapwatch/scan"
	"github.com/lightninglabs/swapwatch/swap"
	"github.com/lightninglabs/swapwatch/watch"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "SWPD"

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// LogManager owns the loggers of every subsystem and writes them all through
// one root handler.
type LogManager struct {
	handler btclog.Handler
	loggers build.SubLoggers
}

// SetupLoggers creates a logger for every subsystem writing to w and hands
// each to its package.
func SetupLoggers(w io.Writer) *LogManager {
	m := &LogManager{
		handler: btclog.NewDefaultHandler(w),
		loggers: make(build.SubLoggers),
	}

	m.register(Subsystem, UseLogger)
	m.register(swapwatch.Subsystem, swapwatch.UseLogger)
	m.register(swap.Subsystem, swap.UseLogger)
	m.register(cache.Subsystem, cache.UseLogger)
	m.register(watch.Subsystem, watch.UseLogger)
	m.register(pool.Subsystem, pool.UseLogger)
	m.register(scan.Subsystem, scan.UseLogger)
	m.register(chain.Subsystem, chain.UseLogger)

	return m
}

func (m *LogManager) register(subsystem string,
	useLogger func(btclog.Logger)) {

	logger := btclog.NewSLogger(m.handler.SubSystem(subsystem))
	m.loggers[subsystem] = logger
	useLogger(logger)
}

// SubLoggers returns the loggers of all subsystems.
func (m *LogManager) SubLoggers() build.SubLoggers {
	return m.loggers
}

// SupportedSubsystems returns the sorted subsystem names.
func (m *LogManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.loggers))
	for subsystem := range m.loggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the level of one subsystem. Unknown subsystems and levels
// are ignored.
func (m *LogManager) SetLogLevel(subsystem, level string) {
	logger, ok := m.loggers[subsystem]
	if !ok {
		return
	}

	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}

	logger.SetLevel(lvl)
}

// SetLogLevels sets the level of all subsystems.
func (m *LogManager) SetLogLevels(level string) {
	for subsystem := range m.loggers {
		m.SetLogLevel(subsystem, level)
	}
}

// A compile time check that LogManager can be configured from a debug level
// string.
var _ build.LeveledSubLogger = (*LogManager)(nil)
