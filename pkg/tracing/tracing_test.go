package tracing

import (
	"context"
	"testing"

	"github.com/nebulaglass/nebula-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingService(t *testing.T) (*TracingService, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ts := NewWithProvider(DefaultConfig(), tp)
	t.Cleanup(func() { _ = ts.Shutdown(context.Background()) })
	return ts, recorder
}

func TestNewTracingService_Disabled(t *testing.T) {
	ts, err := NewTracingService(&Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)

	ctx, span := ts.StartRequestSpan(context.Background(), "GET", "/documents", "req-1")
	span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, GetTraceID(ctx))
	assert.NoError(t, ts.Shutdown(context.Background()))
}

func TestRequestAndAttemptSpans(t *testing.T) {
	ts, recorder := newRecordingService(t)

	ctx, parent := ts.StartRequestSpan(context.Background(), "GET", "/documents", "req-1")
	_, first := ts.StartAttemptSpan(ctx, "GET", "http://a", 0)
	ts.RecordError(first, assert.AnError)
	first.End()
	_, second := ts.StartAttemptSpan(ctx, "GET", "http://b", 1)
	ts.RecordStatus(second, 200)
	second.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "attempt 0", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "attempt 1", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Equal(t, "GET /documents", spans[2].Name())

	// Both attempts belong to the logical request's trace
	assert.Equal(t, spans[2].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestTraceableFunction(t *testing.T) {
	ts, recorder := newRecordingService(t)

	err := ts.TraceableFunction(context.Background(), "analyze", func(ctx context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
}

func TestWithTraceContext(t *testing.T) {
	ts, _ := newRecordingService(t)

	ctx, span := ts.StartSpan(context.Background(), "op")
	defer span.End()

	ctx = WithTraceContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), ctx.Value(logging.TraceIDKey))
	assert.Equal(t, span.SpanContext().SpanID().String(), ctx.Value(logging.SpanIDKey))
}
