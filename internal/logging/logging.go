// Package logging constructs the zap logger shared by the graph store,
// instrumentation wrappers, and the dashboard push loop.
package logging

import "go.uber.org/zap"

// New builds a production zap logger, or a development one (human-readable,
// debug-level) when debug is true (config.Config.Debug, from MOIRE_LOG_DEBUG).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must calls New and panics on error, for callers that construct their
// logger once at process start.
func Must(debug bool) *zap.Logger {
	logger, err := New(debug)
	if err != nil {
		panic(err)
	}
	return logger
}
