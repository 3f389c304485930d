// Package log provides the structured logging interface used across the
// ensemble workflow.
//
// The Logger interface is slog-shaped (message plus alternating key/value
// fields) so estimators and workflow steps do not depend on a concrete
// backend. The process-wide implementation is backed by zerolog and is
// configured once with SetupLogger; tests use TestLogger to capture output.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("ensemble.random_forest").With(
//	    log.ModelNameKey, "RandomForestClassifier",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 50,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface.
//
// Fields are alternating key/value pairs. A lone error passed as the first
// field of Error or Warn is logged under ErrAttrKey together with its stack
// trace.
type Logger interface {
	// Debug logs detailed diagnostic information, usually disabled outside
	// development.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	//
	// Example:
	//   logger.Info("Model training completed",
	//       log.DurationMsKey, 5432,
	//       log.AccuracyKey, 0.95,
	//   )
	Info(msg string, fields ...any)

	// Warn logs a condition that does not stop the workflow, such as a
	// saved model missing from disk.
	Warn(msg string, fields ...any)

	// Error logs an error condition.
	//
	// Example:
	//   logger.Error("Model training failed",
	//       err,
	//       log.OperationKey, log.OperationFit,
	//   )
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. It allows injecting a test provider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
