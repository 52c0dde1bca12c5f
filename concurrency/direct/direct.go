// Package direct is the single-threaded concurrency variant: Submit runs the
// unit inline on the caller's goroutine and returns once it has finished.
package direct

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Executor runs every unit to completion inside Submit.
type Executor struct {
	observer concurrency.Observer
	diag     diagnostics.Emitter
	closed   atomic.Bool
}

var _ concurrency.Executor = (*Executor)(nil)

// Option configures the Executor.
type Option func(*Executor)

// WithObserver reports unit lifecycle events to o.
func WithObserver(o concurrency.Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithDiagnostics routes executor events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(e *Executor) { e.diag = f.Source(capability.Concurrency) }
}

func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit runs w before returning. The returned handle is always terminal,
// and a failing unit's error (a *concurrency.PanicError for a panic) is also
// returned directly. Yield is a no-op since there is nothing else to run.
func (e *Executor) Submit(ctx context.Context, w concurrency.Work) (*concurrency.Handle, error) {
	if w == nil {
		return nil, concurrency.ErrNilWork
	}
	if e.closed.Load() {
		return nil, concurrency.ErrClosed
	}

	h := concurrency.NewHandle()
	if e.observer != nil {
		e.observer.Submitted(capability.SingleThread)
	}
	if ctx.Err() != nil {
		h.Cancel()
		e.finished(h, 0)
		return h, concurrency.ErrCancelled
	}

	h.Begin()
	if e.observer != nil {
		e.observer.Started(capability.SingleThread)
	}
	start := time.Now()
	err := concurrency.Invoke(ctx, w, concurrency.HandleYielder{H: h})
	h.Finish(err)

	var pe *concurrency.PanicError
	if errors.As(err, &pe) {
		e.diag.Error(ctx, "unit panicked", "panic", pe.Value)
	}
	e.finished(h, time.Since(start))
	return h, err
}

func (e *Executor) finished(h *concurrency.Handle, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.Finished(capability.SingleThread, h.State(), elapsed)
	}
}

// RunToCompletion returns immediately: no unit outlives its Submit call.
func (e *Executor) RunToCompletion(ctx context.Context) error { return ctx.Err() }

// Close rejects further submissions.
func (e *Executor) Close(context.Context) error {
	e.closed.Store(true)
	return nil
}
