package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records wireflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeRun records a node run with its duration and error status.
	RecordNodeRun(ctx context.Context, node string, duration time.Duration, err error)

	// RecordCompositeRun records the completion of a composite's run loop.
	RecordCompositeRun(ctx context.Context, node string, success bool, duration time.Duration)

	// RecordStorage records the payload size of a storage operation.
	RecordStorage(ctx context.Context, op string, sizeBytes int64)
}

type otelMetrics struct {
	nodeRuns         metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	compositeRuns    metric.Int64Counter
	compositeLatency metric.Float64Histogram
	storageSize      metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("wireflow")

	nodeRuns, err := meter.Int64Counter("wireflow.node.runs",
		metric.WithDescription("Number of node runs"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("wireflow.node.latency_ms",
		metric.WithDescription("Node run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("wireflow.node.errors",
		metric.WithDescription("Number of failed node runs"),
	)
	if err != nil {
		return nil, err
	}

	compositeRuns, err := meter.Int64Counter("wireflow.composite.runs",
		metric.WithDescription("Number of composite runs"),
	)
	if err != nil {
		return nil, err
	}

	compositeLatency, err := meter.Float64Histogram("wireflow.composite.latency_ms",
		metric.WithDescription("Composite run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	storageSize, err := meter.Int64Histogram("wireflow.storage.size_bytes",
		metric.WithDescription("Saved node state size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeRuns:         nodeRuns,
		nodeLatency:      nodeLatency,
		nodeErrors:       nodeErrors,
		compositeRuns:    compositeRuns,
		compositeLatency: compositeLatency,
		storageSize:      storageSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses the global OTel
// meter provider. If initialization fails, returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeRun records a node run.
func (m *otelMetrics) RecordNodeRun(ctx context.Context, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node", node))

	m.nodeRuns.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordCompositeRun records a composite run.
func (m *otelMetrics) RecordCompositeRun(ctx context.Context, node string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("node", node),
		attribute.Bool("success", success),
	)
	m.compositeRuns.Add(ctx, 1, attrs)
	m.compositeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordStorage records a storage operation.
func (m *otelMetrics) RecordStorage(ctx context.Context, op string, sizeBytes int64) {
	m.storageSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("operation", op)))
}
