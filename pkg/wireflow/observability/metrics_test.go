package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attributeKey(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordNodeRun(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordNodeRun(ctx, "wf/ok", 20*time.Millisecond, nil)
	m.RecordNodeRun(ctx, "wf/bad", 5*time.Millisecond, errors.New("x"))

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "wireflow.node.runs")
	require.NotNil(t, runs)
	assert.Equal(t, int64(1), sumFor(t, runs, "node", "wf/ok"))

	errs := findMetric(rm, "wireflow.node.errors")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumFor(t, errs, "node", "wf/bad"))
	assert.Equal(t, int64(0), sumFor(t, errs, "node", "wf/ok"))

	latency := findMetric(rm, "wireflow.node.latency_ms")
	require.NotNil(t, latency)
	_, ok := latency.Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestRecordCompositeRunAndStorage(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordCompositeRun(ctx, "wf", true, 100*time.Millisecond)
	m.RecordStorage(ctx, "save", 512)

	rm := collectMetrics(t, reader)
	runs := findMetric(rm, "wireflow.composite.runs")
	require.NotNil(t, runs)
	assert.Equal(t, int64(1), sumFor(t, runs, "node", "wf"))

	assert.NotNil(t, findMetric(rm, "wireflow.composite.latency_ms"))

	size := findMetric(rm, "wireflow.storage.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, int64(512), hist.DataPoints[0].Sum)
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)
	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		var m MetricsRecorder = NoopMetrics{}
		m.RecordNodeRun(ctx, "n", time.Second, errors.New("x"))
		m.RecordCompositeRun(ctx, "n", false, time.Second)
		m.RecordStorage(ctx, "save", 1)

		var s SpanManager = NoopSpanManager{}
		spanCtx, span := s.StartNodeSpan(ctx, "n")
		assert.Equal(t, ctx, spanCtx)
		s.AddSpanEvent(spanCtx, "event")
		s.EndSpanWithError(span, errors.New("x"))
	})
}
