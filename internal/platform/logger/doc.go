// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries request or item scoped loggers through
// context.Context so that log lines from one work item share its identifiers.
package logger
