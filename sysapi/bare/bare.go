// Package bare is the constrained system API variant for targets without an
// operating system. It offers a tick-derived clock, a fixed identity, a static
// heap for region reservations and memory-mapped device windows. It has no
// filesystem or network facet.
package bare

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/sysapi"
)

// DefaultHeapBytes is the static heap size when none is configured.
const DefaultHeapBytes = 5 << 20

// DefaultTick is the clock resolution when none is configured.
const DefaultTick = time.Millisecond

// ErrUnknownDevice is returned by MMIO for names not declared with WithDevice.
var ErrUnknownDevice = errors.New("bare: unknown device")

// API is the constrained system API.
type API struct {
	boot     time.Time
	epoch    time.Time
	diag     diagnostics.Emitter
	heap     []byte
	devices  map[string]*Device
	specs    []deviceSpec
	tick     time.Duration
	heapSize int
	brk      int
	live     int
	cpus     int
	mu       sync.Mutex
}

var _ sysapi.API = (*API)(nil)

type deviceSpec struct {
	name string
	size int
}

// Option configures the API.
type Option func(*API)

// WithHeapBytes sets the static heap size backing Reserve.
func WithHeapBytes(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.heapSize = n
		}
	}
}

// WithTick sets the clock resolution. Monotonic and Now are truncated to it.
func WithTick(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.tick = d
		}
	}
}

// WithEpoch sets the wall time corresponding to boot. Without a real-time
// clock the default is the Unix epoch.
func WithEpoch(t time.Time) Option {
	return func(a *API) { a.epoch = t }
}

// WithCPUs sets the reported processor count. Defaults to 1.
func WithCPUs(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.cpus = n
		}
	}
}

// WithDevice declares a device register window of size bytes.
func WithDevice(name string, size int) Option {
	return func(a *API) { a.specs = append(a.specs, deviceSpec{name: name, size: size}) }
}

// WithDiagnostics routes API events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(a *API) { a.diag = f.Source(capability.SystemAPI) }
}

// New allocates the static heap and device windows.
func New(opts ...Option) (*API, error) {
	a := &API{
		boot:     time.Now(),
		epoch:    time.Unix(0, 0).UTC(),
		tick:     DefaultTick,
		heapSize: DefaultHeapBytes,
		cpus:     1,
		devices:  make(map[string]*Device),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, s := range a.specs {
		if s.name == "" || s.size <= 0 {
			return nil, fmt.Errorf("invalid device window %q of %d bytes", s.name, s.size)
		}
		if _, dup := a.devices[s.name]; dup {
			return nil, fmt.Errorf("device %q declared twice", s.name)
		}
		a.devices[s.name] = newDevice(s.name, s.size)
	}
	a.heap = make([]byte, a.heapSize)

	a.diag.Info(context.Background(), "system api ready",
		"variant", capability.Constrained,
		"heap_bytes", a.heapSize,
		"devices", len(a.devices),
	)
	return a, nil
}

// Monotonic returns the elapsed time since boot in whole ticks.
func (a *API) Monotonic() time.Duration {
	return time.Since(a.boot).Truncate(a.tick)
}

// Ticks returns the number of ticks since boot.
func (a *API) Ticks() uint64 {
	return uint64(time.Since(a.boot) / a.tick)
}

// Now returns epoch plus the monotonic time.
func (a *API) Now() time.Time { return a.epoch.Add(a.Monotonic()) }

func (a *API) Sleep(ctx context.Context, d time.Duration) error { return sysapi.Sleep(ctx, d) }

// ProcessID is always 1: there is a single program image.
func (a *API) ProcessID() int { return 1 }

func (a *API) ThreadID() int { return 0 }

func (a *API) NumCPU() int { return a.cpus }

func (a *API) Environment() sysapi.Environment {
	return sysapi.Environment{
		Variant:     capability.Constrained,
		InstanceID:  "bare-0",
		OS:          "none",
		Arch:        runtime.GOARCH,
		NumCPU:      a.cpus,
		TotalMemory: uint64(a.heapSize),
	}
}

// Reserve carves size bytes from the static heap. Space is reclaimed once all
// outstanding regions are released.
func (a *API) Reserve(size int) (*sysapi.Region, error) {
	if size <= 0 {
		return nil, sysapi.ErrInvalidSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if size > len(a.heap)-a.brk {
		return nil, fmt.Errorf("%w: requested %d bytes, %d free", sysapi.ErrNoSpace, size, len(a.heap)-a.brk)
	}
	data := a.heap[a.brk : a.brk+size : a.brk+size]
	clear(data)
	a.brk += size
	a.live++

	return sysapi.NewRegion(data, func([]byte) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.live--
		if a.live == 0 {
			a.brk = 0
		}
		return nil
	}), nil
}

// HeapFree returns the bytes still available to Reserve.
func (a *API) HeapFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.heap) - a.brk
}

// MMIO returns the register window of a declared device.
func (a *API) MMIO(name string) (*Device, error) {
	d, ok := a.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return d, nil
}

// Close reports regions still reserved. The static heap itself lives for the
// whole program.
func (a *API) Close(ctx context.Context) error {
	a.mu.Lock()
	live := a.live
	a.mu.Unlock()
	if live > 0 {
		a.diag.Warn(ctx, "regions still reserved at close", "count", live)
	}
	return nil
}
