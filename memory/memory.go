// Package memory defines the memory capability: allocators handing out
// ownership-tracked blocks. Variants differ in their growth and reclamation
// policy (general heap, arena, pooled size classes) but share the block
// lifecycle rules: a block can only be released by the allocator that
// produced it, exactly once, and is unusable afterwards.
package memory

import (
	"sync"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Allocator is the contract of every memory variant.
type Allocator interface {
	// Allocate returns a zeroed block of size bytes whose first byte is
	// aligned to alignment. An alignment of 0 selects DefaultAlignment.
	Allocate(size, alignment int) (Block, error)
	// Release returns a block to the allocator.
	Release(b Block) error
	// Reset reclaims every block at once. Outstanding blocks become stale.
	Reset() error
	Stats() Stats
}

// Stats is a point-in-time view of allocator usage.
type Stats struct {
	Variant capability.VariantID
	// Capacity in bytes; 0 for allocators without a fixed bound.
	Capacity int64
	InUse    int64
	Live     int
	Allocs   uint64
	Releases uint64
	Failures uint64
	Resets   uint64
	Classes  []ClassStats
}

// ClassStats describes one size class of a pooled allocator.
type ClassStats struct {
	Size      int
	Slots     int
	InUse     int
	Exhausted uint64
	HighWater int
}

// Observer receives allocation events, typically for metrics.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	Allocated(variant capability.VariantID, size int)
	Released(variant capability.VariantID, size int)
	Exhausted(variant capability.VariantID, class int)
}

// Synchronized serializes access to an allocator that is not goroutine-safe.
type Synchronized struct {
	a  Allocator
	mu sync.Mutex
}

var _ Allocator = (*Synchronized)(nil)

// Synchronize wraps a.
func Synchronize(a Allocator) *Synchronized {
	return &Synchronized{a: a}
}

// Unwrap returns the wrapped allocator.
func (s *Synchronized) Unwrap() Allocator { return s.a }

func (s *Synchronized) Allocate(size, alignment int) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocate(size, alignment)
}

func (s *Synchronized) Release(b Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Release(b)
}

func (s *Synchronized) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Reset()
}

func (s *Synchronized) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Stats()
}
