package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics discards node, composite and storage measurements. Nodes
// without a recorder of their own, and no parent to inherit one from, use it.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordNodeRun(context.Context, string, time.Duration, error)      {}
func (NoopMetrics) RecordCompositeRun(context.Context, string, bool, time.Duration) {}
func (NoopMetrics) RecordStorage(context.Context, string, int64)                    {}

// NoopSpanManager leaves the context untouched and hands out spans that
// record nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

func (NoopSpanManager) StartCompositeSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) StartNodeSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) EndSpanWithError(trace.Span, error)                        {}
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
