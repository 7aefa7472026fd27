// Package logging provides structured logging for LPWAN Core.
//
// It wraps log/slog so every component logs the same way: JSON for
// production, text for development, and default service/version fields on
// every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("mailbox").Info("downlink queued", "dev_eui", eui)
//
// Never log network credentials or application payload secrets.
package logging
