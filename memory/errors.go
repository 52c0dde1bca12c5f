package memory

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/reglet-appcore/capability"
)

var (
	// ErrStaleBlock is returned when a block is used after release or after its
	// allocator was reset.
	ErrStaleBlock = errors.New("memory: stale block")
	// ErrForeignBlock is returned when a block is released through an allocator
	// that did not produce it.
	ErrForeignBlock = errors.New("memory: block owned by another allocator")
	// ErrDoubleRelease is returned when a block is released twice.
	ErrDoubleRelease = errors.New("memory: block already released")
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("memory: alignment must be a power of two")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("memory: size must be positive")
	// ErrTooLarge is returned when no size class can hold the request.
	ErrTooLarge = errors.New("memory: request exceeds largest size class")
	// ErrClosed is returned by allocators whose backing memory was released.
	ErrClosed = errors.New("memory: allocator closed")
	// ErrExhausted matches every *ExhaustedError.
	ErrExhausted = errors.New("memory: exhausted")
)

// ExhaustedError reports that an allocator, or one of its size classes, has
// no room left for a request.
type ExhaustedError struct {
	Variant capability.VariantID
	// Class is the size class that ran out, or 0 for unclassed allocators.
	Class     int
	Capacity  int64
	Requested int
}

func (e *ExhaustedError) Error() string {
	if e.Class > 0 {
		return fmt.Sprintf("memory: %s class %d exhausted: %d slots in use, requested %d bytes",
			e.Variant, e.Class, e.Capacity, e.Requested)
	}
	return fmt.Sprintf("memory: %s exhausted: capacity %d bytes, requested %d bytes",
		e.Variant, e.Capacity, e.Requested)
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, memory.ErrExhausted)
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
