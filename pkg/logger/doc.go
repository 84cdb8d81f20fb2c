// Package logger builds configured log/slog loggers with optional
// context-value extraction, so request- or job-scoped identifiers appear on
// every record without manual plumbing.
package logger
