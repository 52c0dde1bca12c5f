package memory

import (
	"math/bits"
	"unsafe"
)

// DefaultAlignment is used when a caller passes an alignment of zero.
const DefaultAlignment = 8

// MaxAlignment is the largest alignment any allocator accepts.
const MaxAlignment = 4096

// CheckRequest validates a size and alignment and returns the effective
// alignment.
func CheckRequest(size, alignment int) (int, error) {
	if size <= 0 {
		return 0, ErrInvalidSize
	}
	if alignment == 0 {
		return DefaultAlignment, nil
	}
	if alignment < 0 || alignment > MaxAlignment || bits.OnesCount(uint(alignment)) != 1 {
		return 0, ErrInvalidAlignment
	}
	return alignment, nil
}

// AlignUp rounds n up to a multiple of alignment, which must be a power of two.
func AlignUp(n, alignment uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}

// AlignedOffset returns the offset into buf of the first address at or after
// from that is a multiple of alignment.
func AlignedOffset(buf []byte, from, alignment int) int {
	if len(buf) == 0 {
		return from
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	return int(AlignUp(base+uintptr(from), uintptr(alignment)) - base)
}
