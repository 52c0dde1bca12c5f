package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a unit of work.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool { return s >= StateSucceeded }

// Handle tracks one submitted unit of work.
type Handle struct {
	err       error
	done      chan struct{}
	dispatch  func(func())
	callbacks []func(*Handle)
	state     atomic.Int32
	cancelReq atomic.Bool
	mu        sync.Mutex
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithDispatcher sets how completion callbacks are run. The default runs
// them on the goroutine that finishes the unit.
func WithDispatcher(fn func(func())) HandleOption {
	return func(h *Handle) { h.dispatch = fn }
}

// NewHandle returns a pending handle. It is used by executor implementations.
func NewHandle(opts ...HandleOption) *Handle {
	h := &Handle{done: make(chan struct{})}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Begin moves the handle from pending to running. It returns false when the
// unit was cancelled first, in which case the unit must not run.
func (h *Handle) Begin() bool {
	return h.state.CompareAndSwap(int32(StatePending), int32(StateRunning))
}

// Finish records the outcome of a running unit. A unit that observed a
// cancellation request and returned context.Canceled or ErrCancelled ends
// as cancelled.
func (h *Handle) Finish(err error) {
	final := StateSucceeded
	if err != nil {
		final = StateFailed
		if h.cancelReq.Load() && (errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)) {
			final = StateCancelled
		}
	}
	if !h.state.CompareAndSwap(int32(StateRunning), int32(final)) {
		return
	}
	h.complete(err)
}

// Cancel requests cancellation. It returns true when the unit had not started
// and is now guaranteed never to run; for a running unit it only raises the
// flag reported by Yielder.Cancelled.
func (h *Handle) Cancel() bool {
	h.cancelReq.Store(true)
	if h.state.CompareAndSwap(int32(StatePending), int32(StateCancelled)) {
		h.complete(ErrCancelled)
		return true
	}
	return false
}

// CancelRequested reports whether Cancel was called.
func (h *Handle) CancelRequested() bool { return h.cancelReq.Load() }

func (h *Handle) complete(err error) {
	h.mu.Lock()
	h.err = err
	cbs := h.callbacks
	h.callbacks = nil
	close(h.done)
	h.mu.Unlock()

	for _, cb := range cbs {
		h.run(cb)
	}
}

func (h *Handle) run(cb func(*Handle)) {
	if h.dispatch != nil {
		h.dispatch(func() { cb(h) })
		return
	}
	cb(h)
}

// OnComplete registers fn to run once the unit reaches a terminal state.
// If it already has, fn is dispatched immediately.
func (h *Handle) OnComplete(fn func(*Handle)) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		h.run(fn)
	default:
		h.callbacks = append(h.callbacks, fn)
		h.mu.Unlock()
	}
}

// Done is closed when the unit reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the unit finishes or ctx is done. It returns the unit's
// error, or ctx.Err().
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the unit's error once it is terminal, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// State returns the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

// HandleYielder is a Yielder bound to a handle whose Yield is supplied by the
// executor.
type HandleYielder struct {
	H       *Handle
	YieldFn func()
}

func (y HandleYielder) Yield() {
	if y.YieldFn != nil {
		y.YieldFn()
	}
}

func (y HandleYielder) Cancelled() bool { return y.H.CancelRequested() }
