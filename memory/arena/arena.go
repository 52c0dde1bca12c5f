// Package arena is the bump-allocating memory variant. It reserves one region
// up front from the system API, hands out blocks by advancing an offset, and
// reclaims everything at once on Reset.
//
// An Allocator is not safe for concurrent use; wrap it with
// memory.Synchronize when it is shared between goroutines.
package arena

import (
	"context"
	"fmt"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/memory"
	"github.com/reglet-dev/reglet-appcore/sysapi"
)

const cellChunk = 256

// Allocator is a fixed-capacity bump allocator.
type Allocator struct {
	region   *sysapi.Region
	buf      []byte
	observer memory.Observer
	diag     diagnostics.Emitter
	cells    [][]memory.Cell
	epoch    memory.Epoch
	stats    memory.Stats
	owner    uint64
	brk      int
	next     int
}

var _ memory.Allocator = (*Allocator)(nil)

// Option configures the Allocator.
type Option func(*Allocator)

// WithObserver reports allocation events to o.
func WithObserver(o memory.Observer) Option {
	return func(a *Allocator) { a.observer = o }
}

// WithDiagnostics routes allocator events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(a *Allocator) { a.diag = f.Source(capability.Memory) }
}

// New reserves capacity bytes from sys.
func New(sys sysapi.API, capacity int, opts ...Option) (*Allocator, error) {
	region, err := sys.Reserve(capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve arena of %d bytes: %w", capacity, err)
	}

	a := &Allocator{
		region: region,
		buf:    region.Bytes(),
		owner:  memory.NextOwnerID(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stats.Variant = capability.ArenaAllocator
	a.stats.Capacity = int64(len(a.buf))

	a.diag.Debug(context.Background(), "arena reserved", "bytes", len(a.buf))
	return a, nil
}

// Allocate bumps the offset to the next aligned address and returns a zeroed
// block. When the arena cannot hold the request it returns *memory.ExhaustedError.
func (a *Allocator) Allocate(size, alignment int) (memory.Block, error) {
	align, err := memory.CheckRequest(size, alignment)
	if err != nil {
		return memory.Block{}, err
	}
	if a.buf == nil {
		return memory.Block{}, memory.ErrClosed
	}

	off := memory.AlignedOffset(a.buf, a.brk, align)
	if off > len(a.buf) || size > len(a.buf)-off {
		a.stats.Failures++
		if a.observer != nil {
			a.observer.Exhausted(capability.ArenaAllocator, 0)
		}
		return memory.Block{}, &memory.ExhaustedError{
			Variant:   capability.ArenaAllocator,
			Capacity:  int64(len(a.buf)),
			Requested: size,
		}
	}

	data := a.buf[off : off+size : off+size]
	clear(data)
	a.brk = off + size

	b := memory.NewBlock(data, a.owner, 0, a.cell(), &a.epoch)
	a.stats.InUse = int64(a.brk)
	a.stats.Live++
	a.stats.Allocs++
	if a.observer != nil {
		a.observer.Allocated(capability.ArenaAllocator, size)
	}
	return b, nil
}

// cell hands out liveness cells from chunks reused across resets.
func (a *Allocator) cell() *memory.Cell {
	chunk, idx := a.next/cellChunk, a.next%cellChunk
	if chunk == len(a.cells) {
		a.cells = append(a.cells, make([]memory.Cell, cellChunk))
	}
	a.next++
	return &a.cells[chunk][idx]
}

// Release validates ownership and marks the block released. The space is only
// reclaimed by Reset.
func (a *Allocator) Release(b memory.Block) error {
	if err := memory.Retire(b, a.owner); err != nil {
		return err
	}
	a.stats.Live--
	a.stats.Releases++
	if a.observer != nil {
		a.observer.Released(capability.ArenaAllocator, b.Len())
	}
	return nil
}

// Reset reclaims the whole arena. Every outstanding block becomes stale.
func (a *Allocator) Reset() error {
	a.epoch.Advance()
	a.brk = 0
	a.next = 0
	a.stats.InUse = 0
	a.stats.Live = 0
	a.stats.Resets++
	return nil
}

func (a *Allocator) Stats() memory.Stats { return a.stats }

// Available returns the bytes left before exhaustion, ignoring alignment.
func (a *Allocator) Available() int { return len(a.buf) - a.brk }

// Close invalidates outstanding blocks and returns the region to the system API.
func (a *Allocator) Close(ctx context.Context) error {
	if a.region == nil {
		return nil
	}
	if a.stats.Live > 0 {
		a.diag.Warn(ctx, "arena closed with live blocks", "count", a.stats.Live)
	}
	a.epoch.Advance()
	a.buf = nil
	r := a.region
	a.region = nil
	return r.Release()
}
