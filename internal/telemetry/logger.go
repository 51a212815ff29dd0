// Package telemetry provides the structured logging and metrics used
// throughout the engine: a leveled logger per subsystem and the
// Prometheus gauges/histograms/counters that track actor and broadcast
// health.
package telemetry

import (
	"os"

	"github.com/decred/slog"
)

// Logger is the leveled logger every subsystem takes a handle to. It is
// decred/slog's own interface type, so any subsystem logger created
// through a Backend satisfies it directly.
type Logger = slog.Logger

// backend is the process-wide log sink; subsystems each get their own
// named Logger off of it so log lines carry a subsystem tag.
var backend = slog.NewBackend(os.Stdout)

// NewLogger returns a named leveled logger at the given level, one per
// subsystem (e.g. "GAME", "MATCH", "EVTLOG").
func NewLogger(subsystem string, level slog.Level) Logger {
	l := backend.Logger(subsystem)
	l.SetLevel(level)
	return l
}

// Disabled returns a logger that discards everything, useful for tests
// that don't want log noise.
func Disabled() Logger {
	l := backend.Logger("DISABLED")
	l.SetLevel(slog.LevelOff)
	return l
}
