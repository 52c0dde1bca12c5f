package concurrency_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

type memSink struct {
	mu     sync.Mutex
	events []diagnostics.Event
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Write(_ context.Context, ev diagnostics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Message)
	}
	return out
}

func TestChain_Order(t *testing.T) {
	var trace []string
	tag := func(name string) concurrency.Middleware {
		return func(next concurrency.Work) concurrency.Work {
			return func(ctx context.Context, y concurrency.Yielder) error {
				trace = append(trace, name+" in")
				err := next(ctx, y)
				trace = append(trace, name+" out")
				return err
			}
		}
	}
	w := concurrency.Chain(func(context.Context, concurrency.Yielder) error {
		trace = append(trace, "work")
		return nil
	}, tag("first"), tag("second"))

	require.NoError(t, w(context.Background(), concurrency.HandleYielder{H: concurrency.NewHandle()}))
	assert.Equal(t, []string{"first in", "second in", "work", "second out", "first out"}, trace)
}

func TestLogging(t *testing.T) {
	sink := &memSink{}
	f := diagnostics.New(diagnostics.WithSinks(sink), diagnostics.WithThreshold(diagnostics.SeverityDebug))
	e := f.Source(capability.Concurrency)
	y := concurrency.HandleYielder{H: concurrency.NewHandle()}

	ok := concurrency.Chain(func(context.Context, concurrency.Yielder) error { return nil }, concurrency.Logging(e, "sync"))
	require.NoError(t, ok(context.Background(), y))

	failing := concurrency.Chain(func(context.Context, concurrency.Yielder) error { return errors.New("late") }, concurrency.Logging(e, "sync"))
	require.Error(t, failing(context.Background(), y))

	panicking := concurrency.Chain(func(context.Context, concurrency.Yielder) error { panic("oops") }, concurrency.Logging(e, "sync"))
	err := concurrency.Invoke(context.Background(), panicking, y)
	var pe *concurrency.PanicError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, []string{
		"unit started", "unit completed",
		"unit started", "unit failed",
		"unit started", "unit panicked",
	}, sink.messages())
}

func TestTimeout(t *testing.T) {
	w := concurrency.Chain(func(ctx context.Context, _ concurrency.Yielder) error {
		<-ctx.Done()
		return ctx.Err()
	}, concurrency.Timeout(5*time.Millisecond))

	err := w(context.Background(), concurrency.HandleYielder{H: concurrency.NewHandle()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelAware(t *testing.T) {
	h := concurrency.NewHandle()
	require.True(t, h.Begin())
	h.Cancel()

	w := concurrency.Chain(func(context.Context, concurrency.Yielder) error { return nil }, concurrency.CancelAware())
	err := w(context.Background(), concurrency.HandleYielder{H: h})
	require.ErrorIs(t, err, concurrency.ErrCancelled)

	h.Finish(err)
	assert.Equal(t, concurrency.StateCancelled, h.State())
}
