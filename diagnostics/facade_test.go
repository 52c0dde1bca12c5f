package diagnostics_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

type recordingSink struct {
	name   string
	err    error
	mu     sync.Mutex
	events []diagnostics.Event
	closed atomic.Int32
	order  *[]string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, ev diagnostics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Close(context.Context) error {
	s.closed.Add(1)
	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestFacade_ThresholdFiltersBeforeSinks(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	f := diagnostics.New(diagnostics.WithThreshold(diagnostics.SeverityWarn), diagnostics.WithSinks(sink))
	ctx := context.Background()

	f.Log(ctx, diagnostics.SeverityDebug, capability.Memory, "debug")
	f.Log(ctx, diagnostics.SeverityInfo, capability.Memory, "info")
	f.Log(ctx, diagnostics.SeverityWarn, capability.Memory, "warn")
	f.Log(ctx, diagnostics.SeverityError, capability.Memory, "error")

	assert.Equal(t, 2, sink.count())

	f.SetThreshold(diagnostics.SeverityDebug)
	f.Log(ctx, diagnostics.SeverityDebug, capability.Memory, "debug again")
	assert.Equal(t, 3, sink.count())
}

func TestFacade_EventContents(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := &recordingSink{name: "rec"}
	f := diagnostics.New(diagnostics.WithClock(func() time.Time { return fixed }), diagnostics.WithSinks(sink))

	f.Source(capability.Concurrency).Info(context.Background(), "unit finished", "worker", 2, diagnostics.F("queue", "main"))

	require.Equal(t, 1, sink.count())
	ev := sink.events[0]
	assert.Equal(t, fixed, ev.Time)
	assert.Equal(t, capability.Concurrency, ev.Source)
	assert.Equal(t, diagnostics.SeverityInfo, ev.Severity)
	assert.Equal(t, "unit finished", ev.Message)

	v, ok := ev.Field("worker")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = ev.Field("queue")
	require.True(t, ok)
	assert.Equal(t, "main", v)
}

func TestFacade_OddArguments(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	f := diagnostics.New(diagnostics.WithSinks(sink))

	f.Log(context.Background(), diagnostics.SeverityInfo, "", "odd", "dangling")

	require.Equal(t, 1, sink.count())
	v, ok := sink.events[0].Field("!BADKEY")
	require.True(t, ok)
	assert.Equal(t, "dangling", v)
}

func TestFacade_SinkFailureIsNonFatal(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("disk full")}
	healthy := &recordingSink{name: "healthy"}

	var hooked []string
	f := diagnostics.New(
		diagnostics.WithSinks(failing, healthy),
		diagnostics.WithSinkErrorHandler(func(name string, _ error) { hooked = append(hooked, name) }),
	)

	f.Log(context.Background(), diagnostics.SeverityError, capability.SystemAPI, "boom")
	f.Log(context.Background(), diagnostics.SeverityError, capability.SystemAPI, "boom")

	assert.Equal(t, 2, healthy.count(), "a failing sink must not starve the others")
	assert.Equal(t, uint64(2), f.SinkErrors())
	assert.Equal(t, []string{"failing", "failing"}, hooked)
}

func TestFacade_RegisterAfterSeal(t *testing.T) {
	f := diagnostics.New()
	require.NoError(t, f.Register(&recordingSink{name: "a"}))
	assert.ErrorIs(t, f.Register(&recordingSink{name: "a"}), diagnostics.ErrDuplicateSink)
	assert.ErrorIs(t, f.Register(nil), diagnostics.ErrNilSink)

	assert.True(t, f.Seal())
	assert.False(t, f.Seal(), "second seal is a no-op")
	assert.ErrorIs(t, f.Register(&recordingSink{name: "b"}), diagnostics.ErrSealed)
	assert.Equal(t, []string{"a"}, f.Sinks())
}

func TestFacade_CloseReverseOrder(t *testing.T) {
	var order []string
	a := &recordingSink{name: "a", order: &order}
	b := &recordingSink{name: "b", order: &order}
	f := diagnostics.New(diagnostics.WithSinks(a, b))

	require.NoError(t, f.Close(context.Background()))
	require.NoError(t, f.Close(context.Background()))
	assert.Equal(t, []string{"b", "a"}, order)
	assert.Equal(t, int32(1), a.closed.Load())

	f.Log(context.Background(), diagnostics.SeverityError, "", "after close")
	assert.Zero(t, a.count())
}

func TestFacade_NilIsDisabled(t *testing.T) {
	var f *diagnostics.Facade
	assert.False(t, f.Enabled(diagnostics.SeverityError))

	// The zero emitter must be usable.
	var e diagnostics.Emitter
	e.Error(context.Background(), "dropped")
	assert.Nil(t, e.Facade())
}

func TestFacade_ConcurrentEmit(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	f := diagnostics.New(diagnostics.WithSinks(sink))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				f.Log(context.Background(), diagnostics.SeverityInfo, "", "tick")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, sink.count())
}

func TestHandler_BridgesSlog(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	f := diagnostics.New(diagnostics.WithSinks(sink), diagnostics.WithThreshold(diagnostics.SeverityInfo))
	logger := slog.New(f.Handler("crud")).With("tenant", "acme").WithGroup("req")

	logger.Debug("filtered")
	logger.Warn("slow query", "ms", 120, slog.Group("db", "table", "users"))

	require.Equal(t, 1, sink.count())
	ev := sink.events[0]
	assert.Equal(t, diagnostics.SeverityWarn, ev.Severity)
	assert.Equal(t, capability.ID("crud"), ev.Source)

	v, _ := ev.Field("tenant")
	assert.Equal(t, "acme", v)
	v, _ = ev.Field("req.ms")
	assert.Equal(t, int64(120), v)
	v, _ = ev.Field("req.db.table")
	assert.Equal(t, "users", v)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    diagnostics.Severity
		wantErr bool
	}{
		{"debug", diagnostics.SeverityDebug, false},
		{"INFO", diagnostics.SeverityInfo, false},
		{"warning", diagnostics.SeverityWarn, false},
		{" error ", diagnostics.SeverityError, false},
		{"", diagnostics.SeverityInfo, false},
		{"fatal", diagnostics.SeverityInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := diagnostics.ParseSeverity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeveritySlogRoundTrip(t *testing.T) {
	for _, s := range []diagnostics.Severity{
		diagnostics.SeverityDebug, diagnostics.SeverityInfo, diagnostics.SeverityWarn, diagnostics.SeverityError,
	} {
		assert.Equal(t, s, diagnostics.SeverityFromSlog(s.SlogLevel()), s.String())
	}
}
