// Package tracing attaches diagnostic events to the active OpenTelemetry span.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Name is the sink name registered with the facade.
const Name = "tracing"

// Sink adds a span event per diagnostic event. Events emitted outside a
// recording span are ignored.
type Sink struct {
	errorStatus bool
}

var _ diagnostics.Sink = (*Sink)(nil)

// Option configures a tracing Sink.
type Option func(*Sink)

// WithErrorStatus marks the span as failed when an Error event is recorded.
func WithErrorStatus(enabled bool) Option {
	return func(s *Sink) { s.errorStatus = enabled }
}

// New creates a tracing sink.
func New(opts ...Option) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Write(ctx context.Context, ev diagnostics.Event) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, len(ev.Fields)+2)
	attrs = append(attrs,
		attribute.String("severity", ev.Severity.String()),
		attribute.String("source", string(ev.Source)),
	)
	for _, f := range ev.Fields {
		attrs = append(attrs, toAttribute(f))
	}

	span.AddEvent(ev.Message, trace.WithTimestamp(ev.Time), trace.WithAttributes(attrs...))
	if s.errorStatus && ev.Severity >= diagnostics.SeverityError {
		span.SetStatus(codes.Error, ev.Message)
	}
	return nil
}

func toAttribute(f diagnostics.Field) attribute.KeyValue {
	switch v := f.Value.(type) {
	case string:
		return attribute.String(f.Key, v)
	case bool:
		return attribute.Bool(f.Key, v)
	case int:
		return attribute.Int(f.Key, v)
	case int64:
		return attribute.Int64(f.Key, v)
	case uint64:
		return attribute.Int64(f.Key, int64(v)) //nolint:gosec // attribute API has no unsigned kind
	case float64:
		return attribute.Float64(f.Key, v)
	case time.Duration:
		return attribute.String(f.Key, v.String())
	case error:
		return attribute.String(f.Key, v.Error())
	case fmt.Stringer:
		return attribute.String(f.Key, v.String())
	default:
		return attribute.String(f.Key, fmt.Sprint(v))
	}
}
