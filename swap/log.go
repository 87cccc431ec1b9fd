package swap

import (
	"fmt"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "SWAP"

// log is a logger that is initialized with no output filters. This means the
// package will not perform any logging by default until the caller requests
// it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// NewPrefixLog returns a logger that prefixes every message with the short
// form of a swap's invoice id.
func NewPrefixLog(logger btclog.Logger, invoiceID string) btclog.Logger {
	return logger.WithPrefix(fmt.Sprintf("[%s]", ShortID(invoiceID)))
}

// ShortID returns a shortened version of an invoice id suitable for use in
// logging.
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}

	return id[:6]
}
