// Package throttle limits the rate at which events reach a wrapped sink.
package throttle

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Sink forwards events to an inner sink while a token bucket allows it and
// drops the rest. Error events bypass the limiter.
type Sink struct {
	inner   diagnostics.Sink
	limiter *rate.Limiter
	dropped atomic.Uint64
}

var _ diagnostics.Sink = (*Sink)(nil)

// Wrap limits inner to perSecond events with the given burst. A non-positive
// rate returns inner unchanged.
func Wrap(inner diagnostics.Sink, perSecond float64, burst int) diagnostics.Sink {
	if perSecond <= 0 {
		return inner
	}
	return New(inner, perSecond, burst)
}

// New creates a throttled sink.
func New(inner diagnostics.Sink, perSecond float64, burst int) *Sink {
	if burst < 1 {
		burst = 1
	}
	return &Sink{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Name reports the inner sink name so the facade treats both as one sink.
func (s *Sink) Name() string { return s.inner.Name() }

func (s *Sink) Write(ctx context.Context, ev diagnostics.Event) error {
	if ev.Severity < diagnostics.SeverityError && !s.limiter.Allow() {
		s.dropped.Add(1)
		return nil
	}
	return s.inner.Write(ctx, ev)
}

// Dropped returns the number of events discarded by the limiter.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

func (s *Sink) Flush(ctx context.Context) error {
	if f, ok := s.inner.(diagnostics.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (s *Sink) Close(ctx context.Context) error {
	if c, ok := s.inner.(diagnostics.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
