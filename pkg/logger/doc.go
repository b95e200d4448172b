// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON output in prod, text
// otherwise, with service and environment attributes attached.
package logger
