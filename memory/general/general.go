// Package general is the general-purpose memory variant backed by the Go heap.
// It grows on demand and reclaims memory block by block.
package general

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/memory"
)

// Allocator hands out heap blocks with live-block accounting. It is safe for
// concurrent use.
type Allocator struct {
	observer memory.Observer
	diag     diagnostics.Emitter
	epoch    memory.Epoch
	limit    int64
	owner    uint64
	stats    memory.Stats
	mu       sync.Mutex
}

var _ memory.Allocator = (*Allocator)(nil)

// Option configures the Allocator.
type Option func(*Allocator)

// WithLimit caps the bytes in use. Zero means unbounded.
func WithLimit(bytes int64) Option {
	return func(a *Allocator) { a.limit = bytes }
}

// WithObserver reports allocation events to o.
func WithObserver(o memory.Observer) Option {
	return func(a *Allocator) { a.observer = o }
}

// WithDiagnostics routes allocator events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(a *Allocator) { a.diag = f.Source(capability.Memory) }
}

// New creates a general allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{owner: memory.NextOwnerID()}
	for _, opt := range opts {
		opt(a)
	}
	a.stats.Variant = capability.GeneralAllocator
	a.stats.Capacity = a.limit
	return a
}

// Allocate obtains a zeroed block from the Go heap. A runtime allocation
// failure is returned as the error rather than crashing the caller.
func (a *Allocator) Allocate(size, alignment int) (memory.Block, error) {
	align, err := memory.CheckRequest(size, alignment)
	if err != nil {
		return memory.Block{}, err
	}

	a.mu.Lock()
	if a.limit > 0 && a.stats.InUse+int64(size) > a.limit {
		a.stats.Failures++
		a.mu.Unlock()
		if a.observer != nil {
			a.observer.Exhausted(capability.GeneralAllocator, 0)
		}
		return memory.Block{}, &memory.ExhaustedError{
			Variant: capability.GeneralAllocator, Capacity: a.limit, Requested: size,
		}
	}
	// Account before allocating so concurrent callers cannot overshoot the limit.
	a.stats.InUse += int64(size)
	a.mu.Unlock()

	buf, err := heapAlloc(size + align - 1)
	if err != nil {
		a.mu.Lock()
		a.stats.InUse -= int64(size)
		a.stats.Failures++
		a.mu.Unlock()
		a.diag.Error(context.Background(), "heap allocation failed", "size", size, "err", err)
		return memory.Block{}, err
	}
	off := memory.AlignedOffset(buf, 0, align)
	data := buf[off : off+size : off+size]

	a.mu.Lock()
	a.stats.Live++
	a.stats.Allocs++
	b := memory.NewBlock(data, a.owner, uint64(size), new(memory.Cell), &a.epoch)
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Allocated(capability.GeneralAllocator, size)
	}
	return b, nil
}

// heapAlloc converts the runtime's makeslice panic into an error.
func heapAlloc(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return make([]byte, n), nil
}

// Release drops the block from accounting. The memory is reclaimed by the
// garbage collector once no references remain.
func (a *Allocator) Release(b memory.Block) error {
	a.mu.Lock()
	if err := memory.Retire(b, a.owner); err != nil {
		a.mu.Unlock()
		return err
	}
	a.stats.InUse -= int64(b.Tag())
	a.stats.Live--
	a.stats.Releases++
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Released(capability.GeneralAllocator, b.Len())
	}
	return nil
}

// Reset invalidates every outstanding block.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch.Advance()
	a.stats.InUse = 0
	a.stats.Live = 0
	a.stats.Resets++
	return nil
}

func (a *Allocator) Stats() memory.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Close reports blocks still live at shutdown.
func (a *Allocator) Close(ctx context.Context) error {
	if live := a.Stats().Live; live > 0 {
		a.diag.Warn(ctx, "blocks still live at close", "count", live)
	}
	return nil
}
