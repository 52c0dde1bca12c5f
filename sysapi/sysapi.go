// Package sysapi defines the system API capability: timing, process identity,
// raw memory regions and host facts. Variants add facets on top: osapi adds
// filesystem and network access, bare adds memory-mapped device windows.
package sysapi

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
)

var (
	// ErrInvalidSize is returned by Reserve for non-positive sizes.
	ErrInvalidSize = errors.New("sysapi: invalid region size")
	// ErrNoSpace is returned when a region cannot be reserved.
	ErrNoSpace = errors.New("sysapi: no space for region")
	// ErrRegionReleased is returned when a region is released twice.
	ErrRegionReleased = errors.New("sysapi: region already released")
)

// API is the contract every system API variant implements.
type API interface {
	// Now returns the wall clock time, or a tick-derived time when the
	// platform has no real-time clock.
	Now() time.Time
	// Monotonic returns the time elapsed since the API was created.
	Monotonic() time.Duration
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	ProcessID() int
	ThreadID() int
	NumCPU() int
	// Reserve returns a zeroed region of exactly size bytes.
	Reserve(size int) (*Region, error)
	Environment() Environment
}

// Environment describes the host the process runs on.
type Environment struct {
	Variant     capability.VariantID
	InstanceID  string
	Hostname    string
	OS          string
	Platform    string
	Arch        string
	NumCPU      int
	TotalMemory uint64
}

// Region is a contiguous block of memory obtained from Reserve.
type Region struct {
	data     []byte
	release  func([]byte) error
	released atomic.Bool
}

// NewRegion wraps data. release is called once by Release and may be nil.
func NewRegion(data []byte, release func([]byte) error) *Region {
	return &Region{data: data, release: release}
}

// Bytes returns the region memory. It must not be used after Release.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the region size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Released reports whether Release was called.
func (r *Region) Released() bool { return r.released.Load() }

// Release returns the region to its origin.
func (r *Region) Release() error {
	if r.released.Swap(true) {
		return ErrRegionReleased
	}
	data := r.data
	r.data = nil
	if r.release == nil {
		return nil
	}
	if err := r.release(data); err != nil {
		return fmt.Errorf("failed to release region: %w", err)
	}
	return nil
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
