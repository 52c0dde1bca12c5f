// Package pool is the size-class memory variant. Each class owns a fixed
// number of equally sized slots and a free list, so allocation and release
// are constant time. A class that runs out fails on its own: requests are
// never served from a larger class and other classes are unaffected.
package pool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/memory"
	"github.com/reglet-dev/reglet-appcore/sysapi"
)

// Class configures one size class.
type Class struct {
	Size  int `json:"size" yaml:"size"`
	Slots int `json:"slots" yaml:"slots"`
}

// DefaultSizes are the slot sizes used by ClassesForBudget.
var DefaultSizes = []int{64, 256, 1024, 4096, 16384, 65536}

// ClassesForBudget splits budget bytes evenly across DefaultSizes.
// Every class gets at least one slot.
func ClassesForBudget(budget int64) []Class {
	share := budget / int64(len(DefaultSizes))
	classes := make([]Class, 0, len(DefaultSizes))
	for _, size := range DefaultSizes {
		classes = append(classes, Class{Size: size, Slots: int(max(share/int64(size), 1))})
	}
	return classes
}

type class struct {
	region    *sysapi.Region
	buf       []byte
	cells     []memory.Cell
	free      []int32
	exhausted uint64
	highWater int
	size      int
	mu        sync.Mutex
}

func (c *class) inUse() int { return len(c.cells) - len(c.free) }

func (c *class) resetFree() {
	c.free = c.free[:0]
	for i := len(c.cells) - 1; i >= 0; i-- {
		c.free = append(c.free, int32(i))
	}
}

// Allocator is a goroutine-safe pooled allocator.
type Allocator struct {
	observer memory.Observer
	diag     diagnostics.Emitter
	sys      sysapi.API
	classes  []*class
	epoch    memory.Epoch
	owner    uint64
	closed   atomic.Bool
	mu       sync.Mutex
	allocs   uint64
	releases uint64
	failures uint64
	resets   uint64
}

var _ memory.Allocator = (*Allocator)(nil)

// Option configures the Allocator.
type Option func(*Allocator)

// WithSystem backs the classes with regions reserved from sys instead of the
// Go heap.
func WithSystem(sys sysapi.API) Option {
	return func(a *Allocator) { a.sys = sys }
}

// WithObserver reports allocation events to o.
func WithObserver(o memory.Observer) Option {
	return func(a *Allocator) { a.observer = o }
}

// WithDiagnostics routes allocator events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(a *Allocator) { a.diag = f.Source(capability.Memory) }
}

// New builds the classes. Sizes must be distinct multiples of
// memory.DefaultAlignment.
func New(classes []Class, opts ...Option) (*Allocator, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("pool: at least one size class is required")
	}
	a := &Allocator{owner: memory.NextOwnerID()}
	for _, opt := range opts {
		opt(a)
	}

	sorted := slices.Clone(classes)
	slices.SortFunc(sorted, func(x, y Class) int { return x.Size - y.Size })
	for i, cfg := range sorted {
		if cfg.Size <= 0 || cfg.Size%memory.DefaultAlignment != 0 || cfg.Slots <= 0 {
			_ = a.Close(context.Background())
			return nil, fmt.Errorf("pool: invalid class %d bytes x %d slots", cfg.Size, cfg.Slots)
		}
		if i > 0 && sorted[i-1].Size == cfg.Size {
			_ = a.Close(context.Background())
			return nil, fmt.Errorf("pool: duplicate class size %d", cfg.Size)
		}
		c, err := a.newClass(cfg)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
		a.classes = append(a.classes, c)
	}

	a.diag.Debug(context.Background(), "pool ready", "classes", len(a.classes))
	return a, nil
}

func (a *Allocator) newClass(cfg Class) (*class, error) {
	c := &class{
		size:  cfg.Size,
		cells: make([]memory.Cell, cfg.Slots),
		free:  make([]int32, 0, cfg.Slots),
	}
	total := cfg.Size * cfg.Slots
	if a.sys != nil {
		r, err := a.sys.Reserve(total)
		if err != nil {
			return nil, fmt.Errorf("pool: failed to reserve class %d: %w", cfg.Size, err)
		}
		c.region = r
		c.buf = r.Bytes()
	} else {
		c.buf = make([]byte, total)
	}
	c.resetFree()
	return c, nil
}

// pick returns the smallest class whose slots fit size at alignment.
// Slot addresses are multiples of the class size from the class base.
func (a *Allocator) pick(size, align int) (int, *class) {
	for i, c := range a.classes {
		if c.size >= size && c.size%align == 0 && memory.AlignedOffset(c.buf, 0, align) == 0 {
			return i, c
		}
	}
	return -1, nil
}

func (a *Allocator) Allocate(size, alignment int) (memory.Block, error) {
	align, err := memory.CheckRequest(size, alignment)
	if err != nil {
		return memory.Block{}, err
	}
	if a.closed.Load() {
		return memory.Block{}, memory.ErrClosed
	}
	idx, c := a.pick(size, align)
	if c == nil {
		return memory.Block{}, fmt.Errorf("%w: %d bytes aligned to %d", memory.ErrTooLarge, size, align)
	}

	c.mu.Lock()
	if len(c.free) == 0 {
		c.exhausted++
		slots := len(c.cells)
		c.mu.Unlock()
		a.count(&a.failures)
		if a.observer != nil {
			a.observer.Exhausted(capability.PoolAllocator, c.size)
		}
		a.diag.Warn(context.Background(), "size class exhausted", "class", c.size, "slots", slots)
		return memory.Block{}, &memory.ExhaustedError{
			Variant:   capability.PoolAllocator,
			Class:     c.size,
			Capacity:  int64(slots),
			Requested: size,
		}
	}
	slot := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.highWater = max(c.highWater, c.inUse())

	start := int(slot) * c.size
	data := c.buf[start : start+size : start+size]
	clear(data)
	b := memory.NewBlock(data, a.owner, tag(idx, slot), &c.cells[slot], &a.epoch)
	c.mu.Unlock()

	a.count(&a.allocs)
	if a.observer != nil {
		a.observer.Allocated(capability.PoolAllocator, size)
	}
	return b, nil
}

func tag(class int, slot int32) uint64 { return uint64(class)<<32 | uint64(uint32(slot)) }

func untag(t uint64) (int, int32) { return int(t >> 32), int32(uint32(t)) }

// Release returns the slot to its class free list.
func (a *Allocator) Release(b memory.Block) error {
	if b.Owner() != a.owner {
		return memory.ErrForeignBlock
	}
	idx, slot := untag(b.Tag())
	if idx < 0 || idx >= len(a.classes) {
		return memory.ErrForeignBlock
	}
	c := a.classes[idx]

	c.mu.Lock()
	if slot < 0 || int(slot) >= len(c.cells) {
		c.mu.Unlock()
		return memory.ErrForeignBlock
	}
	if err := memory.Retire(b, a.owner); err != nil {
		c.mu.Unlock()
		return err
	}
	c.free = append(c.free, slot)
	c.mu.Unlock()

	a.count(&a.releases)
	if a.observer != nil {
		a.observer.Released(capability.PoolAllocator, b.Len())
	}
	return nil
}

// Reset returns every slot to its free list. Outstanding blocks become stale.
func (a *Allocator) Reset() error {
	for _, c := range a.classes {
		c.mu.Lock()
	}
	a.epoch.Advance()
	for _, c := range a.classes {
		c.resetFree()
	}
	for _, c := range a.classes {
		c.mu.Unlock()
	}
	a.count(&a.resets)
	return nil
}

func (a *Allocator) count(n *uint64) {
	a.mu.Lock()
	*n++
	a.mu.Unlock()
}

func (a *Allocator) Stats() memory.Stats {
	s := memory.Stats{Variant: capability.PoolAllocator}
	for _, c := range a.classes {
		c.mu.Lock()
		used := c.inUse()
		cs := memory.ClassStats{
			Size:      c.size,
			Slots:     len(c.cells),
			InUse:     used,
			Exhausted: c.exhausted,
			HighWater: c.highWater,
		}
		c.mu.Unlock()
		s.Classes = append(s.Classes, cs)
		s.Capacity += int64(cs.Size * cs.Slots)
		s.InUse += int64(cs.Size * used)
		s.Live += used
	}
	a.mu.Lock()
	s.Allocs, s.Releases, s.Failures, s.Resets = a.allocs, a.releases, a.failures, a.resets
	a.mu.Unlock()
	return s
}

// Close invalidates outstanding blocks and returns class regions to the
// system API.
func (a *Allocator) Close(context.Context) error {
	if a.closed.Swap(true) {
		return nil
	}
	a.epoch.Advance()

	var errs []error
	for _, c := range a.classes {
		c.mu.Lock()
		c.free = c.free[:0]
		c.buf = nil
		if c.region != nil {
			if err := c.region.Release(); err != nil {
				errs = append(errs, err)
			}
			c.region = nil
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}
