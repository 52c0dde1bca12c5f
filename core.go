package appcore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/ring"
	"github.com/reglet-dev/reglet-appcore/memory"
	"github.com/reglet-dev/reglet-appcore/registry"
)

// Core owns the capabilities bound for the active profile.
type Core struct {
	cfg        Config
	reg        *registry.Registry
	diag       *diagnostics.Facade
	ring       *ring.Sink
	metrics    any
	sys        System
	mem        Memory
	conc       Concurrency
	middleware []concurrency.Middleware
	closeOnce  sync.Once
	closeErr   error
}

// builder carries state between the generated build functions.
type builder struct {
	cfg     Config
	sinks   []diagnostics.Sink
	console io.Writer

	diag         *diagnostics.Facade
	ring         *ring.Sink
	metrics      any
	sys          System
	memObserver  memory.Observer
	concObserver concurrency.Observer
}

// New builds every capability of the active profile in initialization order:
// diagnostics, system API, memory, concurrency. A failing step tears down
// the ones already built.
func New(ctx context.Context, opts ...Option) (*Core, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := DefaultConfig()
	if o.cfg != nil {
		cfg = *o.cfg
	} else if err := loadEnv(&cfg, o.environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &builder{cfg: cfg, sinks: o.sinks, console: o.console}
	c := &Core{cfg: cfg, middleware: o.middleware}
	c.reg = registry.New(ActiveProfile)

	steps := []registry.Step{
		{
			Capability: capability.Diagnostics,
			Variant:    boundVariant(capability.Diagnostics),
			Build: func(_ context.Context, r *registry.Registry) (any, registry.Teardown, error) {
				f, err := buildDiagnostics(b)
				if err != nil {
					return nil, nil, err
				}
				f.Seal()
				b.diag = f
				r.UseDiagnostics(f)
				return f, f.Close, nil
			},
		},
		{
			Capability: capability.SystemAPI,
			Variant:    boundVariant(capability.SystemAPI),
			Build: func(context.Context, *registry.Registry) (any, registry.Teardown, error) {
				sys, err := buildSystem(b)
				if err != nil {
					return nil, nil, err
				}
				b.sys = sys
				return sys, sys.Close, nil
			},
		},
		{
			Capability: capability.Memory,
			Variant:    boundVariant(capability.Memory),
			Build: func(context.Context, *registry.Registry) (any, registry.Teardown, error) {
				mem, err := buildMemory(b)
				if err != nil {
					return nil, nil, err
				}
				return mem, mem.Close, nil
			},
		},
		{
			Capability: capability.Concurrency,
			Variant:    boundVariant(capability.Concurrency),
			Build: func(context.Context, *registry.Registry) (any, registry.Teardown, error) {
				conc, err := buildConcurrency(b)
				if err != nil {
					return nil, nil, err
				}
				return conc, conc.Close, nil
			},
		},
	}
	if err := c.reg.Init(ctx, steps...); err != nil {
		return nil, err
	}

	var err error
	if c.diag, err = registry.As[*diagnostics.Facade](c.reg, capability.Diagnostics); err != nil {
		return nil, err
	}
	if c.sys, err = registry.As[System](c.reg, capability.SystemAPI); err != nil {
		return nil, err
	}
	if c.mem, err = registry.As[Memory](c.reg, capability.Memory); err != nil {
		return nil, err
	}
	if c.conc, err = registry.As[Concurrency](c.reg, capability.Concurrency); err != nil {
		return nil, err
	}
	c.ring = b.ring
	c.metrics = b.metrics
	if rec, ok := c.metrics.(interface{ RecordStats(memory.Stats) }); ok {
		rec.RecordStats(c.mem.Stats())
	}

	c.diag.Source("core").Info(ctx, "core started",
		"profile", ActiveProfile,
		"concurrency", boundVariant(capability.Concurrency),
		"memory", boundVariant(capability.Memory),
		"system_api", boundVariant(capability.SystemAPI),
		"diagnostics", boundVariant(capability.Diagnostics),
	)
	return c, nil
}

func boundVariant(id capability.ID) capability.VariantID {
	for _, b := range bindings {
		if b.Capability == id {
			return b.Variant
		}
	}
	return ""
}

// Profile returns the profile compiled into this build.
func (c *Core) Profile() string { return ActiveProfile }

// Config returns the configuration the capabilities were built with.
func (c *Core) Config() Config { return c.cfg }

func (c *Core) Diagnostics() *diagnostics.Facade { return c.diag }

func (c *Core) System() System { return c.sys }

func (c *Core) Memory() Memory { return c.mem }

func (c *Core) Concurrency() Concurrency { return c.conc }

func (c *Core) Registry() *registry.Registry { return c.reg }

// Snapshot describes the bindings and the registry state.
func (c *Core) Snapshot() registry.Snapshot { return c.reg.Snapshot() }

// Ring returns the in-memory ring of recent events, or nil when the ring is
// disabled.
func (c *Core) Ring() *ring.Sink { return c.ring }

// Logger returns a slog.Logger that emits through the diagnostics facade
// with source as the event source.
func (c *Core) Logger(source string) *slog.Logger {
	return c.diag.Logger(capability.ID(source))
}

// Submit runs w, wrapped by the configured middleware, on the bound executor.
func (c *Core) Submit(ctx context.Context, w concurrency.Work) (*concurrency.Handle, error) {
	if w == nil {
		return nil, concurrency.ErrNilWork
	}
	return c.conc.Submit(ctx, concurrency.Chain(w, c.middleware...))
}

// Run drives submitted units until none remain or ctx is done.
func (c *Core) Run(ctx context.Context) error {
	return c.conc.RunToCompletion(ctx)
}

// Close tears the capabilities down in reverse initialization order. Only the
// first call has an effect.
func (c *Core) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.diag.Source("core").Info(ctx, "core stopping", "profile", ActiveProfile)
		if err := c.reg.Close(ctx); err != nil {
			c.closeErr = fmt.Errorf("failed to close core: %w", err)
		}
	})
	return c.closeErr
}

// newRingDiagnostics keeps events in memory only.
func newRingDiagnostics(b *builder) (*diagnostics.Facade, error) {
	threshold, err := diagnostics.ParseSeverity(b.cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	b.ring = ring.New(b.cfg.RingSize)
	f := diagnostics.New(diagnostics.WithThreshold(threshold))
	if err := registerSinks(f, append([]diagnostics.Sink{b.ring}, b.sinks...)); err != nil {
		return nil, err
	}
	return f, nil
}

func registerSinks(f *diagnostics.Facade, sinks []diagnostics.Sink) error {
	for _, s := range sinks {
		if err := f.Register(s); err != nil {
			return fmt.Errorf("failed to register sink: %w", err)
		}
	}
	return nil
}
