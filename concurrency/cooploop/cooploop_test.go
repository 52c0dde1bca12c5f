package cooploop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/concurrency/cooploop"
)

func submit(t *testing.T, l *cooploop.Loop, w concurrency.Work) *concurrency.Handle {
	t.Helper()
	h, err := l.Submit(context.Background(), w)
	require.NoError(t, err)
	return h
}

func TestLoop_CallbacksInSubmissionOrder(t *testing.T) {
	l := cooploop.New()
	var order []string
	for _, name := range []string{"A", "B", "C"} {
		h := submit(t, l, func(context.Context, concurrency.Yielder) error { return nil })
		h.OnComplete(func(*concurrency.Handle) { order = append(order, name) })
	}

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.Equal(t, []string{"A", "B", "C"}, order)
	assert.Zero(t, l.Pending())
}

func TestLoop_NothingRunsUntilDriven(t *testing.T) {
	l := cooploop.New()
	ran := false
	h := submit(t, l, func(context.Context, concurrency.Yielder) error {
		ran = true
		return nil
	})

	assert.False(t, ran)
	assert.Equal(t, concurrency.StatePending, h.State())
	assert.Equal(t, 1, l.Pending())

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.True(t, ran)
	assert.Equal(t, concurrency.StateSucceeded, h.State())
}

func TestLoop_YieldInterleaves(t *testing.T) {
	l := cooploop.New()
	var trace []string
	step := func(name string) concurrency.Work {
		return func(_ context.Context, y concurrency.Yielder) error {
			trace = append(trace, name+"1")
			y.Yield()
			trace = append(trace, name+"2")
			return nil
		}
	}
	submit(t, l, step("a"))
	submit(t, l, step("b"))

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, trace)
}

func TestLoop_NestedSubmitRunsAfterCurrentUnit(t *testing.T) {
	l := cooploop.New()
	var trace []string
	submit(t, l, func(ctx context.Context, _ concurrency.Yielder) error {
		_, err := l.Submit(ctx, func(context.Context, concurrency.Yielder) error {
			trace = append(trace, "nested")
			return nil
		})
		trace = append(trace, "outer")
		return err
	})
	submit(t, l, func(context.Context, concurrency.Yielder) error {
		trace = append(trace, "second")
		return nil
	})

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.Equal(t, []string{"outer", "second", "nested"}, trace)
}

func TestLoop_CancelBeforeStart(t *testing.T) {
	l := cooploop.New()
	ran := false
	h := submit(t, l, func(context.Context, concurrency.Yielder) error {
		ran = true
		return nil
	})
	require.True(t, h.Cancel())

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.False(t, ran)
	assert.Equal(t, concurrency.StateCancelled, h.State())
}

func TestLoop_CancelledContextSkipsUnit(t *testing.T) {
	l := cooploop.New()
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	h, err := l.Submit(ctx, func(context.Context, concurrency.Yielder) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	cancel()

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.False(t, ran)
	assert.Equal(t, concurrency.StateCancelled, h.State())
}

func TestLoop_FailureStaysOnHandle(t *testing.T) {
	l := cooploop.New()
	failing := submit(t, l, func(context.Context, concurrency.Yielder) error { return errors.New("boom") })
	panicking := submit(t, l, func(context.Context, concurrency.Yielder) error { panic("loop unit") })
	after := submit(t, l, func(context.Context, concurrency.Yielder) error { return nil })

	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.Equal(t, concurrency.StateFailed, failing.State())
	assert.EqualError(t, failing.Err(), "boom")

	var pe *concurrency.PanicError
	require.ErrorAs(t, panicking.Err(), &pe)
	assert.Equal(t, "loop unit", pe.Value)
	assert.Equal(t, concurrency.StateSucceeded, after.State())
}

func TestLoop_Reentrant(t *testing.T) {
	l := cooploop.New()
	h := submit(t, l, func(ctx context.Context, _ concurrency.Yielder) error {
		return l.RunToCompletion(ctx)
	})
	require.NoError(t, l.RunToCompletion(context.Background()))
	assert.ErrorIs(t, h.Err(), cooploop.ErrReentrant)
}

func TestLoop_DeadlineAndClose(t *testing.T) {
	l := cooploop.New()
	spinner := submit(t, l, func(_ context.Context, y concurrency.Yielder) error {
		for !y.Cancelled() {
			y.Yield()
		}
		return concurrency.ErrCancelled
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.RunToCompletion(ctx), context.DeadlineExceeded)
	assert.Equal(t, concurrency.StateRunning, spinner.State())

	queued := submit(t, l, func(context.Context, concurrency.Yielder) error { return nil })

	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, concurrency.StateCancelled, spinner.State())
	assert.Equal(t, concurrency.StateCancelled, queued.State())

	_, err := l.Submit(context.Background(), func(context.Context, concurrency.Yielder) error { return nil })
	assert.ErrorIs(t, err, concurrency.ErrClosed)
}

func TestLoop_RejectsNilWork(t *testing.T) {
	_, err := cooploop.New().Submit(context.Background(), nil)
	assert.ErrorIs(t, err, concurrency.ErrNilWork)
}
