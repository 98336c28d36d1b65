// Package logging provides structured logging configuration for stubby.
//
// This package wraps log/slog so the server, the control router and the CLI
// all log the same way.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("listening", "addr", handle.Addr())
//
// Components accept a *slog.Logger through an option. If none is provided
// they fall back to logging.Nop().
package logging
