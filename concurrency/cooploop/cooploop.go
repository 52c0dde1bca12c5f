// Package cooploop is the cooperative concurrency variant. Units run one at a
// time on a single logical thread driven by RunToCompletion; a unit gives up
// the thread only by returning or by calling Yield, after which it is queued
// behind every unit already waiting.
//
// Units must not block waiting for other units of the same loop: with a
// single logical thread that wait can never be satisfied.
package cooploop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// ErrReentrant is returned when RunToCompletion is called while the loop is
// already being driven, typically from inside a unit.
var ErrReentrant = errors.New("cooploop: loop is already running")

type unit struct {
	ctx     context.Context
	start   time.Time
	work    concurrency.Work
	h       *concurrency.Handle
	resume  chan struct{}
	started bool
}

// item is a queued unit or a completion callback.
type item struct {
	u  *unit
	fn func()
}

type signal struct {
	u    *unit
	err  error
	done bool
}

// Loop is a cooperative scheduler.
type Loop struct {
	observer concurrency.Observer
	diag     diagnostics.Emitter
	back     chan signal
	ready    []item
	head     int
	driving  atomic.Bool
	closed   bool
	mu       sync.Mutex
}

var _ concurrency.Executor = (*Loop)(nil)

// Option configures the Loop.
type Option func(*Loop)

// WithObserver reports unit lifecycle events to o.
func WithObserver(o concurrency.Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithDiagnostics routes loop events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(l *Loop) { l.diag = f.Source(capability.Concurrency) }
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{back: make(chan signal)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues w at the tail. It never blocks and may be called from inside
// a running unit; the new unit runs after the current one yields or returns.
func (l *Loop) Submit(ctx context.Context, w concurrency.Work) (*concurrency.Handle, error) {
	if w == nil {
		return nil, concurrency.ErrNilWork
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, concurrency.ErrClosed
	}
	h := concurrency.NewHandle(concurrency.WithDispatcher(l.post))
	l.pushLocked(item{u: &unit{ctx: ctx, work: w, h: h, resume: make(chan struct{})}})
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.Submitted(capability.CooperativeLoop)
	}
	return h, nil
}

// post queues a completion callback so it runs on the loop.
func (l *Loop) post(fn func()) {
	l.mu.Lock()
	l.pushLocked(item{fn: fn})
	l.mu.Unlock()
}

func (l *Loop) pushLocked(it item) {
	l.ready = append(l.ready, it)
}

func (l *Loop) pop() (item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.head == len(l.ready) {
		l.ready, l.head = l.ready[:0], 0
		return item{}, false
	}
	it := l.ready[l.head]
	l.ready[l.head] = item{}
	l.head++
	if l.head > 64 && l.head*2 > len(l.ready) {
		n := copy(l.ready, l.ready[l.head:])
		clear(l.ready[n:])
		l.ready, l.head = l.ready[:n], 0
	}
	return it, true
}

// Pending returns the number of queued units and callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready) - l.head
}

// RunToCompletion drives the loop on the calling goroutine until the queue is
// empty or ctx is done. ctx is checked between steps: a unit that never
// yields cannot be interrupted.
func (l *Loop) RunToCompletion(ctx context.Context) error {
	if !l.driving.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer l.driving.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		it, ok := l.pop()
		if !ok {
			return nil
		}
		if it.fn != nil {
			it.fn()
			continue
		}
		l.step(it.u)
	}
}

// step gives the thread to u until it yields or returns.
func (l *Loop) step(u *unit) {
	if !u.started {
		if u.ctx.Err() != nil {
			u.h.Cancel()
		}
		if !u.h.Begin() {
			l.finished(u.h, 0)
			return
		}
		u.started = true
		u.start = time.Now()
		if l.observer != nil {
			l.observer.Started(capability.CooperativeLoop)
		}
		go l.exec(u)
	} else {
		u.resume <- struct{}{}
	}

	sig := <-l.back
	if !sig.done {
		l.requeue(u)
		return
	}
	u.h.Finish(sig.err)
	var pe *concurrency.PanicError
	if errors.As(sig.err, &pe) {
		l.diag.Error(u.ctx, "unit panicked", "panic", pe.Value)
	}
	l.finished(u.h, time.Since(u.start))
}

// requeue puts a yielded unit at the tail.
func (l *Loop) requeue(u *unit) {
	l.mu.Lock()
	l.pushLocked(item{u: u})
	l.mu.Unlock()
}

func (l *Loop) exec(u *unit) {
	y := concurrency.HandleYielder{
		H: u.h,
		YieldFn: func() {
			l.back <- signal{u: u}
			<-u.resume
		},
	}
	err := concurrency.Invoke(u.ctx, u.work, y)
	l.back <- signal{u: u, done: true, err: err}
}

func (l *Loop) finished(h *concurrency.Handle, elapsed time.Duration) {
	if l.observer != nil {
		l.observer.Finished(capability.CooperativeLoop, h.State(), elapsed)
	}
}

// Close stops accepting work, cancels units that have not started and drives
// suspended units until they return. Suspended units see Cancelled() == true.
func (l *Loop) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	queued := make([]*concurrency.Handle, 0, len(l.ready)-l.head)
	for _, it := range l.ready[l.head:] {
		if it.u != nil {
			queued = append(queued, it.u.h)
		}
	}
	l.mu.Unlock()

	for _, h := range queued {
		h.Cancel()
	}
	if l.driving.Load() {
		// Called from inside a unit; the active driver finishes the rest.
		return nil
	}
	if err := l.RunToCompletion(ctx); err != nil && !errors.Is(err, ErrReentrant) {
		l.diag.Warn(ctx, "loop closed with suspended units", "pending", l.Pending())
		return err
	}
	return nil
}
