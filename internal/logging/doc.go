// Package logging provides structured logging helpers shared across the
// SDK, built on the standard library's slog package.
//
// It centralizes attribute naming and sanitization so that tokens, API
// keys, and webhook secrets never reach log output, and user emails are
// hashed before logging.
package logging
