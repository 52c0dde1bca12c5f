package memory

import (
	"sync/atomic"
	"unsafe"
)

var (
	ownerSeq  atomic.Uint64
	ticketSeq atomic.Uint64
)

// NextOwnerID returns a process-unique allocator identity.
func NextOwnerID() uint64 { return ownerSeq.Add(1) }

// Cell tracks whether one allocation is still live. Allocators may reuse a
// cell for a later allocation; blocks of the earlier allocation then become
// stale.
type Cell struct {
	ticket atomic.Uint64
}

// Epoch is an allocator generation. Advancing it invalidates every block
// handed out before.
type Epoch struct {
	gen atomic.Uint64
}

// Current returns the current generation.
func (e *Epoch) Current() uint64 { return e.gen.Load() }

// Advance starts a new generation.
func (e *Epoch) Advance() { e.gen.Add(1) }

// Block is a handle to allocated memory. It is a small value and is copied
// freely; all copies share liveness.
type Block struct {
	data   []byte
	cell   *Cell
	epoch  *Epoch
	owner  uint64
	tag    uint64
	ticket uint64
	gen    uint64
}

// NewBlock issues a live block over data. It is used by allocator
// implementations; tag is opaque to everyone but the owner.
func NewBlock(data []byte, owner, tag uint64, cell *Cell, epoch *Epoch) Block {
	t := ticketSeq.Add(1)
	cell.ticket.Store(t)
	return Block{
		data:   data,
		cell:   cell,
		epoch:  epoch,
		owner:  owner,
		tag:    tag,
		ticket: t,
		gen:    epoch.Current(),
	}
}

// Live reports whether the block may still be used.
func (b Block) Live() bool {
	if b.cell == nil {
		return false
	}
	return b.cell.ticket.Load() == b.ticket && b.epoch.Current() == b.gen
}

// Bytes returns the block memory, or ErrStaleBlock once the block was
// released or its allocator reset.
func (b Block) Bytes() ([]byte, error) {
	if !b.Live() {
		return nil, ErrStaleBlock
	}
	return b.data, nil
}

// Len returns the requested size of the block.
func (b Block) Len() int { return len(b.data) }

// Owner returns the identity of the allocator that produced the block.
func (b Block) Owner() uint64 { return b.owner }

// Tag returns the owner-defined tag.
func (b Block) Tag() uint64 { return b.tag }

// IsZero reports whether b is the zero Block.
func (b Block) IsZero() bool { return b.cell == nil }

// Addr returns the address of the first byte, for alignment checks.
func (b Block) Addr() uintptr {
	if len(b.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
}

// Retire validates that owner may release b and marks it released.
func Retire(b Block, owner uint64) error {
	if b.cell == nil || b.owner != owner {
		return ErrForeignBlock
	}
	if b.epoch.Current() != b.gen {
		return ErrStaleBlock
	}
	if !b.cell.ticket.CompareAndSwap(b.ticket, 0) {
		return ErrDoubleRelease
	}
	return nil
}
