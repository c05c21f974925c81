// Package logging provides structured logging for posebridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error), shared by child loggers
//   - Source locations at debug level
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	bridgeLog := logger.Component("bridge")
//	bridgeLog.Info("connection state changed", "to", "connected")
//
// Components accept their own small Logger interface rather than this type,
// so tests can pass a capturing fake.
package logging
