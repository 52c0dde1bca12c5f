// Package concurrency defines the concurrency capability: submitting units of
// work and observing their completion through handles. Variants decide where
// and when a unit runs (a fixed worker pool, a cooperative loop on the
// caller's goroutine, or inline on Submit) but share the handle lifecycle and
// cancellation rules:
//
//   - a unit cancelled before it starts never runs;
//   - cancelling a running unit only raises a flag the unit may poll;
//   - a panic inside a unit is captured as a *PanicError.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("concurrency: executor closed")
	// ErrCancelled is the error of a unit cancelled before it started.
	ErrCancelled = errors.New("concurrency: unit cancelled")
	// ErrNilWork is returned when Submit is given a nil Work.
	ErrNilWork = errors.New("concurrency: nil work")
)

// Yielder is handed to every unit of work.
type Yielder interface {
	// Yield offers the executor a chance to run other units. Under the
	// cooperative loop this is the only point where a unit is suspended.
	Yield()
	// Cancelled reports whether cancellation was requested for this unit.
	Cancelled() bool
}

// Work is a unit of work.
type Work func(ctx context.Context, y Yielder) error

// Executor is the contract of every concurrency variant.
type Executor interface {
	// Submit schedules w and returns its handle.
	Submit(ctx context.Context, w Work) (*Handle, error)
	// RunToCompletion returns once every submitted unit has finished, or when
	// ctx is done.
	RunToCompletion(ctx context.Context) error
	// Close stops accepting work. Units that have not started are cancelled.
	Close(ctx context.Context) error
}

// Observer receives unit lifecycle events, typically for metrics.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	Submitted(variant capability.VariantID)
	Started(variant capability.VariantID)
	Finished(variant capability.VariantID, state State, elapsed time.Duration)
}

// PanicError wraps a value recovered from a panicking unit.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unit panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Invoke runs w, converting a panic into a *PanicError.
func Invoke(ctx context.Context, w Work, y Yielder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return w(ctx, y)
}

type workerKey struct{}

// WithWorkerID annotates ctx with the id of the worker running a unit.
func WithWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerID returns the id of the worker running the current unit, if the
// executor assigns one.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey{}).(int)
	return id, ok
}
