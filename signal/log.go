package signal

import "github.com/btcsuite/btclog"

// log is the package-level logger used by the interrupt handler.
// It's disabled by default and expected to be set by the caller via
// UseLogger.
var log = btclog.Disabled

// UseLogger sets the package-level logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
