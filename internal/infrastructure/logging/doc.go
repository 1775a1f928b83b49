// Package logging provides structured logging for the Gray Logic agent.
//
// This package wraps Go's standard log/slog package. Every entry carries
// service and version fields, and components add their own name with
// Component.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stderr, stdout, discard
//
// Standard output is reserved for the operator console, hence the stderr
// default.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("telemetry").Info("subscribed", "topic", "#")
//
// Never log secrets, tokens, or broker passwords.
package logging
