package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/tracing"
)

func TestTracing_AddsSpanEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := diagnostics.New(diagnostics.WithSinks(tracing.New(tracing.WithErrorStatus(true))))

	ctx, span := tp.Tracer("test").Start(context.Background(), "unit")
	f.Source(capability.Concurrency).Error(ctx, "unit failed", "err", errors.New("boom"), "attempt", 3)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "unit failed", events[0].Name)
	assert.Contains(t, events[0].Attributes, attribute.String("source", "concurrency"))
	assert.Contains(t, events[0].Attributes, attribute.String("err", "boom"))
	assert.Contains(t, events[0].Attributes, attribute.Int("attempt", 3))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_NoSpanIsNoop(t *testing.T) {
	s := tracing.New()
	assert.NoError(t, s.Write(context.Background(), diagnostics.Event{Message: "x"}))
}
