// Package logging provides structured logging for the Gray Logic Compositor.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields on every entry.
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
//	runnerLog := logger.Component("runner")
//	runnerLog.Info("tick loop started", "interval", cfg.GetTickInterval())
//
// The *Logger satisfies the small Logger interfaces declared by the domain
// packages (content, bridge, compositor, api).
//
// Never log secrets, tokens or passwords.
package logging
