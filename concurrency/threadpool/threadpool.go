// Package threadpool is the parallel concurrency variant: a fixed set of
// workers consuming a bounded FIFO queue. Each worker runs one unit at a
// time; units on different workers run in parallel.
package threadpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/sysapi"
)

// DefaultQueueCapacity is the queue size when none is configured.
const DefaultQueueCapacity = 1024

type task struct {
	ctx  context.Context
	work concurrency.Work
	h    *concurrency.Handle
}

// Pool is a fixed-size worker pool.
type Pool struct {
	queue    chan task
	stopping chan struct{}
	idle     chan struct{}
	group    *errgroup.Group
	observer concurrency.Observer
	sys      sysapi.API
	diag     diagnostics.Emitter
	workers  int
	capacity int
	inflight int
	busy     atomic.Int32
	closing  atomic.Bool
	sendMu   sync.RWMutex
	mu       sync.Mutex
	stopOnce sync.Once
}

var _ concurrency.Executor = (*Pool)(nil)

// Option configures the Pool.
type Option func(*Pool)

// WithWorkers sets the worker count. Zero selects the processor count
// reported by the system API.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueCapacity bounds the number of queued units. Submit blocks while
// the queue is full.
func WithQueueCapacity(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// WithSystem supplies the system API used to size the pool.
func WithSystem(sys sysapi.API) Option {
	return func(p *Pool) { p.sys = sys }
}

// WithObserver reports unit lifecycle events to o.
func WithObserver(o concurrency.Observer) Option {
	return func(p *Pool) { p.observer = o }
}

// WithDiagnostics routes pool events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(p *Pool) { p.diag = f.Source(capability.Concurrency) }
}

// New starts the workers.
func New(opts ...Option) *Pool {
	p := &Pool{capacity: DefaultQueueCapacity}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers == 0 {
		p.workers = runtime.NumCPU()
		if p.sys != nil {
			p.workers = max(p.sys.NumCPU(), 1)
		}
	}

	p.queue = make(chan task, p.capacity)
	p.stopping = make(chan struct{})
	p.group = &errgroup.Group{}
	for id := range p.workers {
		p.group.Go(func() error {
			p.worker(id)
			return nil
		})
	}

	p.diag.Info(context.Background(), "thread pool started", "workers", p.workers, "queue_capacity", p.capacity)
	return p
}

// Workers returns the worker count.
func (p *Pool) Workers() int { return p.workers }

// Queued returns the number of units waiting for a worker.
func (p *Pool) Queued() int { return len(p.queue) }

// Busy returns the number of workers currently running a unit.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Submit enqueues w. It blocks while the queue is full, until ctx is done or
// the pool is closed.
func (p *Pool) Submit(ctx context.Context, w concurrency.Work) (*concurrency.Handle, error) {
	if w == nil {
		return nil, concurrency.ErrNilWork
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closing.Load() {
		return nil, concurrency.ErrClosed
	}

	h := concurrency.NewHandle()
	p.track(1)
	select {
	case p.queue <- task{ctx: ctx, work: w, h: h}:
	case <-ctx.Done():
		p.track(-1)
		return nil, ctx.Err()
	case <-p.stopping:
		p.track(-1)
		return nil, concurrency.ErrClosed
	}

	if p.observer != nil {
		p.observer.Submitted(capability.ThreadPool)
	}
	return h, nil
}

func (p *Pool) worker(id int) {
	for t := range p.queue {
		p.run(id, t)
		p.track(-1)
	}
}

func (p *Pool) run(id int, t task) {
	if p.closing.Load() || t.ctx.Err() != nil {
		t.h.Cancel()
		p.finished(t.h, 0)
		return
	}
	if !t.h.Begin() {
		p.finished(t.h, 0)
		return
	}

	p.busy.Add(1)
	defer p.busy.Add(-1)
	if p.observer != nil {
		p.observer.Started(capability.ThreadPool)
	}

	start := time.Now()
	ctx := concurrency.WithWorkerID(t.ctx, id)
	err := concurrency.Invoke(ctx, t.work, concurrency.HandleYielder{H: t.h, YieldFn: runtime.Gosched})
	t.h.Finish(err)

	var pe *concurrency.PanicError
	if errors.As(err, &pe) {
		p.diag.Error(ctx, "unit panicked", "worker", id, "panic", pe.Value)
	}
	p.finished(t.h, time.Since(start))
}

func (p *Pool) finished(h *concurrency.Handle, elapsed time.Duration) {
	if p.observer != nil {
		p.observer.Finished(capability.ThreadPool, h.State(), elapsed)
	}
}

// track adjusts the number of submitted units that have not finished.
func (p *Pool) track(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight == 0 && delta > 0 {
		p.idle = make(chan struct{})
	}
	p.inflight += delta
	if p.inflight == 0 && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

// RunToCompletion waits until every submitted unit has finished.
func (p *Pool) RunToCompletion(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	if idle == nil {
		return ctx.Err()
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, cancels queued units and waits for running
// units to return.
func (p *Pool) Close(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.closing.Store(true)
		close(p.stopping)
		p.sendMu.Lock()
		close(p.queue)
		p.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.diag.Debug(ctx, "thread pool stopped")
		return nil
	case <-ctx.Done():
		p.diag.Warn(ctx, "thread pool stop timed out", "busy", p.Busy())
		return ctx.Err()
	}
}
