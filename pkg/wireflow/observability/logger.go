// Package observability provides structured logging, metrics, and tracing
// for wireflow graphs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id and node fields.
func EnrichLogger(logger *slog.Logger, runID, node string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node", node),
	)
}

// LogRunStart logs the start of a composite run.
func LogRunStart(logger *slog.Logger, runID, node string) {
	if logger == nil {
		return
	}
	logger.Info("composite run starting",
		slog.String("run_id", runID),
		slog.String("node", node),
	)
}

// LogRunComplete logs successful composite run completion.
func LogRunComplete(logger *slog.Logger, runID, node string, durationMs float64, childRuns int) {
	if logger == nil {
		return
	}
	logger.Info("composite run completed",
		slog.String("run_id", runID),
		slog.String("node", node),
		slog.Float64("duration_ms", durationMs),
		slog.Int("children_executed", childRuns),
	)
}

// LogRunError logs composite run failure.
func LogRunError(logger *slog.Logger, runID, node string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("composite run failed",
		slog.String("run_id", runID),
		slog.String("node", node),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, node string, remote bool) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node", node),
		slog.Bool("executor", remote),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, node string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node", node),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, node string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node", node),
		slog.String("error", err.Error()),
	)
}

// LogCacheHit logs a run skipped because the inputs matched the cache.
func LogCacheHit(logger *slog.Logger, node string) {
	if logger == nil {
		return
	}
	logger.Debug("node cache hit",
		slog.String("node", node),
	)
}

// LogStorage logs a storage operation.
func LogStorage(logger *slog.Logger, key, op string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("node storage",
		slog.String("key", key),
		slog.String("operation", op),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogStorageError logs a failed storage operation (non-fatal checkpoints).
func LogStorageError(logger *slog.Logger, key, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("node storage failed",
		slog.String("key", key),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
