// Package logging provides a minimal logging interface and adapters for the
// reviewer application.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine, agents and the A2A layer use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - AppLogger with level filtering, json/text output and per-component
//     attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
