//go:build !appcore_embedded

// Package osapi is the full-OS system API variant. On top of timing, identity
// and memory regions it exposes rooted filesystem access and an outbound
// network stack with address validation.
//
// The package is excluded from embedded builds, so code that reaches for the
// filesystem or network facets does not compile under that profile.
package osapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/sysapi"
)

// API is the full-OS system API.
type API struct {
	start   time.Time
	diag    diagnostics.Emitter
	fs      *FS
	net     *Net
	env     sysapi.Environment
	regions map[*sysapi.Region]struct{}
	rootDir string
	netOpts []NetOption
	maxRead int64
	mu      sync.Mutex
	closed  bool
}

var _ sysapi.API = (*API)(nil)

// Option configures the API.
type Option func(*API)

// WithRoot sets the directory the filesystem facet is confined to.
// Defaults to the working directory.
func WithRoot(dir string) Option {
	return func(a *API) { a.rootDir = dir }
}

// WithMaxReadBytes caps the size of files read through the filesystem facet.
func WithMaxReadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxRead = n
		}
	}
}

// WithNetOptions configures the network facet.
func WithNetOptions(opts ...NetOption) Option {
	return func(a *API) { a.netOpts = append(a.netOpts, opts...) }
}

// WithDiagnostics routes API events to f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(a *API) { a.diag = f.Source(capability.SystemAPI) }
}

// New probes the host and opens the filesystem root.
func New(opts ...Option) (*API, error) {
	a := &API{
		start:   time.Now(),
		rootDir: ".",
		maxRead: DefaultMaxReadBytes,
		regions: make(map[*sysapi.Region]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	fsys, err := openFS(a.rootDir, a.maxRead)
	if err != nil {
		return nil, err
	}
	a.fs = fsys
	a.net = newNet(a.diag, a.netOpts...)
	a.env = a.probe()

	a.diag.Info(context.Background(), "system api ready",
		"variant", capability.FullOS,
		"root", a.fs.Dir(),
		"cpus", a.env.NumCPU,
		"instance", a.env.InstanceID,
	)
	return a, nil
}

// probe collects host facts. Failing probes fall back to runtime values.
func (a *API) probe() sysapi.Environment {
	env := sysapi.Environment{
		Variant:    capability.FullOS,
		InstanceID: uuid.NewString(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		env.NumCPU = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		env.TotalMemory = vm.Total
	}
	if info, err := host.Info(); err == nil {
		env.Hostname = info.Hostname
		env.Platform = info.Platform
		if info.KernelArch != "" {
			env.Arch = info.KernelArch
		}
	} else if name, herr := os.Hostname(); herr == nil {
		env.Hostname = name
	}
	return env
}

func (a *API) Now() time.Time { return time.Now() }

func (a *API) Monotonic() time.Duration { return time.Since(a.start) }

func (a *API) Sleep(ctx context.Context, d time.Duration) error { return sysapi.Sleep(ctx, d) }

func (a *API) ProcessID() int { return processID() }

func (a *API) ThreadID() int { return threadID() }

func (a *API) NumCPU() int { return a.env.NumCPU }

func (a *API) Environment() sysapi.Environment { return a.env }

// FS returns the filesystem facet.
func (a *API) FS() *FS { return a.fs }

// Net returns the network facet.
func (a *API) Net() *Net { return a.net }

// Reserve maps an anonymous region of size bytes.
func (a *API) Reserve(size int) (*sysapi.Region, error) {
	if size <= 0 {
		return nil, sysapi.ErrInvalidSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, os.ErrClosed
	}

	data, err := mapRegion(size)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve %d bytes: %w: %w", size, sysapi.ErrNoSpace, err)
	}

	var r *sysapi.Region
	r = sysapi.NewRegion(data, func(b []byte) error {
		a.mu.Lock()
		delete(a.regions, r)
		a.mu.Unlock()
		return unmapRegion(b)
	})
	a.regions[r] = struct{}{}
	return r, nil
}

// Close releases outstanding regions and the filesystem root.
func (a *API) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	pending := make([]*sysapi.Region, 0, len(a.regions))
	for r := range a.regions {
		pending = append(pending, r)
	}
	a.mu.Unlock()

	var errs []error
	if len(pending) > 0 {
		a.diag.Warn(ctx, "releasing regions still reserved at close", "count", len(pending))
	}
	for _, r := range pending {
		if err := r.Release(); err != nil && !errors.Is(err, sysapi.ErrRegionReleased) {
			errs = append(errs, err)
		}
	}
	a.net.close()
	if err := a.fs.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
