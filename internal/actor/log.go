package actor

import (
	"context"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// log is the package-wide structured logger for the actor runtime. It
// defaults to a plain stdout backend at info level; hosts embedding this
// package call UseLogger to redirect it into their own logging stack, the
// same convention the teacher repo's cmd/substrated uses to wire
// `actor.UseLogger(actorLogger)` into this package.
var log btclog.Logger = buildDefaultLogger()

const subsystem = "ACTR"

func buildDefaultLogger() btclog.Logger {
	handler := btclogv2.NewDefaultHandler(os.Stdout)
	logger := btclogv2.NewSLogger(handler)
	logger.SetLevel(btclog.LevelInfo)

	return logger.WithPrefix(subsystem)
}

// UseLogger configures the actor package to use the provided logger instead
// of its default stdout backend. Call this once during process startup,
// before any cells are spawned.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// structured logging helpers. These give every call site a ctx-first,
// key/value-pairs-last shape, mirroring the teacher's log.DebugS/TraceS/
// WarnS call sites (whose definitions were not present in the retrieved
// files and are reconstructed here over btclog/v2).
//
// The context argument is accepted for call-site symmetry with a future
// context-aware backend (e.g. trace-id injection) and is not otherwise
// consulted: btclog.Logger has no context-aware API of its own.

func traceS(_ context.Context, msg string, kv ...interface{}) {
	log.Tracef("%s %v", msg, kv)
}

func debugS(_ context.Context, msg string, kv ...interface{}) {
	log.Debugf("%s %v", msg, kv)
}

func infoS(_ context.Context, msg string, kv ...interface{}) {
	log.Infof("%s %v", msg, kv)
}

func warnS(_ context.Context, msg string, kv ...interface{}) {
	log.Warnf("%s %v", msg, kv)
}

func errorS(_ context.Context, msg string, err error, kv ...interface{}) {
	log.Errorf("%s: %v %v", msg, err, kv)
}
