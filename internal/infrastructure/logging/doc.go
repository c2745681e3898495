// Package logging provides structured logging for onkyod.
//
// It wraps log/slog with the daemon's default fields (service, version)
// and the level and format chosen in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// At debug level every notification broadcast to clients is logged too.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.With("component", "gateway").Info("listening", "address", addr)
package logging
