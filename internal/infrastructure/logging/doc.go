// Package logging provides structured logging for Warden Core.
//
// It wraps the standard library's log/slog with service defaults:
// JSON or text output, level filtering from configuration, and
// service/version attributes on every record.
//
// Components receive a *Logger (or a narrower local interface) by
// injection and add their own default attributes via With:
//
//	engineLog := logger.With("component", "access")
package logging
