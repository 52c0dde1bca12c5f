// Package registry holds the capability instances bound for the active
// profile. Capabilities are built once, in the fixed initialization order,
// and are read-only afterwards.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

var (
	// ErrDuplicate indicates two bindings for the same capability.
	ErrDuplicate = errors.New("registry: duplicate binding")
	// ErrSealed indicates a binding attempt after initialization.
	ErrSealed = errors.New("registry: sealed registry")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("registry: already initialized")
	// ErrNotBound indicates a lookup for a capability the profile does not bind.
	ErrNotBound = errors.New("registry: capability not bound")
	// ErrUnknownCapability indicates an identifier outside the catalog.
	ErrUnknownCapability = errors.New("registry: unknown capability")
	// ErrClosed is returned by Resolve after Close.
	ErrClosed = errors.New("registry: closed")
)

// Teardown releases a built capability.
type Teardown func(ctx context.Context) error

// Builder constructs a capability instance. It may resolve capabilities that
// precede it in the initialization order.
type Builder func(ctx context.Context, r *Registry) (value any, teardown Teardown, err error)

// Step binds a variant to a capability.
type Step struct {
	Capability capability.ID
	Variant    capability.VariantID
	Build      Builder
}

// Entry is a built capability.
type Entry struct {
	Value      any
	teardown   Teardown
	Capability capability.ID
	Variant    capability.VariantID
}

const (
	stateNew int32 = iota
	stateInitializing
	stateReady
	stateClosed
)

// Registry is safe for concurrent use.
type Registry struct {
	entries map[capability.ID]*Entry
	steps   map[capability.ID]Step
	diag    diagnostics.Emitter
	profile string
	order   []capability.ID
	mu      sync.RWMutex
	state   atomic.Int32
	closeMu sync.Mutex
}

// Option configures the Registry.
type Option func(*Registry)

// WithDiagnostics reports initialization and teardown through f.
func WithDiagnostics(f *diagnostics.Facade) Option {
	return func(r *Registry) { r.diag = f.Source("registry") }
}

// New creates an empty registry for profile.
func New(profile string, opts ...Option) *Registry {
	r := &Registry{
		profile: profile,
		entries: make(map[capability.ID]*Entry),
		steps:   make(map[capability.ID]Step),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UseDiagnostics routes the registry's own events through f. It is meant for
// the diagnostics builder, which runs before any other step.
func (r *Registry) UseDiagnostics(f *diagnostics.Facade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diag = f.Source("registry")
}

// Profile returns the profile name the registry was created for.
func (r *Registry) Profile() string { return r.profile }

// Bind records steps to run at Init.
func (r *Registry) Bind(steps ...Step) error {
	if r.state.Load() != stateNew {
		return ErrSealed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range steps {
		if !s.Capability.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCapability, s.Capability)
		}
		if s.Build == nil {
			return fmt.Errorf("registry: nil builder for %s", s.Capability)
		}
		if _, exists := r.steps[s.Capability]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, s.Capability)
		}
		r.steps[s.Capability] = s
	}
	return nil
}

// Init binds steps and builds every bound capability in initialization
// order, whatever order the steps were given in. If a builder fails, the
// capabilities already built are torn down in reverse order and the registry
// returns to its unbound state.
func (r *Registry) Init(ctx context.Context, steps ...Step) error {
	switch r.state.Load() {
	case stateReady, stateInitializing:
		return ErrAlreadyInitialized
	case stateClosed:
		return ErrClosed
	}
	if err := r.Bind(steps...); err != nil {
		r.reset()
		return err
	}
	if !r.state.CompareAndSwap(stateNew, stateInitializing) {
		return ErrAlreadyInitialized
	}

	r.mu.RLock()
	plan := make([]Step, 0, len(r.steps))
	for _, s := range r.steps {
		plan = append(plan, s)
	}
	r.mu.RUnlock()
	slices.SortFunc(plan, func(a, b Step) int {
		return capability.Rank(a.Capability) - capability.Rank(b.Capability)
	})

	for _, s := range plan {
		value, teardown, err := s.Build(ctx, r)
		if err != nil {
			err = fmt.Errorf("failed to initialize %s (%s): %w", s.Capability, s.Variant, err)
			if terr := r.teardown(ctx); terr != nil {
				err = errors.Join(err, terr)
			}
			r.reset()
			r.state.Store(stateNew)
			r.diag.Error(ctx, "capability initialization failed", "capability", s.Capability, "variant", s.Variant, "error", err)
			return err
		}

		r.mu.Lock()
		r.entries[s.Capability] = &Entry{
			Capability: s.Capability,
			Variant:    s.Variant,
			Value:      value,
			teardown:   teardown,
		}
		r.order = append(r.order, s.Capability)
		r.mu.Unlock()
		r.diag.Debug(ctx, "capability initialized", "capability", s.Capability, "variant", s.Variant)
	}

	r.state.Store(stateReady)
	r.diag.Info(ctx, "registry ready", "profile", r.profile, "capabilities", len(plan))
	return nil
}

func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.steps)
	clear(r.entries)
	r.order = nil
}

// Resolve returns the entry bound to id. During Init, builders may resolve
// capabilities that were built before them.
func (r *Registry) Resolve(id capability.ID) (Entry, error) {
	if !id.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownCapability, id)
	}
	if r.state.Load() == stateClosed {
		return Entry{}, ErrClosed
	}

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotBound, id)
	}
	return *e, nil
}

// As resolves id and asserts its value to T.
func As[T any](r *Registry, id capability.ID) (T, error) {
	var zero T
	e, err := r.Resolve(id)
	if err != nil {
		return zero, err
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, fmt.Errorf("registry: %s is bound to %T (%s), not %T", id, e.Value, e.Variant, zero)
	}
	return v, nil
}

// Close tears every capability down in reverse initialization order. Only
// the first call has an effect.
func (r *Registry) Close(ctx context.Context) error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.state.Swap(stateClosed) == stateClosed {
		return nil
	}
	err := r.teardown(ctx)
	if err != nil {
		r.diag.Warn(ctx, "registry closed with errors", "error", err)
	}
	return err
}

func (r *Registry) teardown(ctx context.Context) error {
	r.mu.RLock()
	order := slices.Clone(r.order)
	r.mu.RUnlock()

	var errs []error
	for _, id := range slices.Backward(order) {
		r.mu.RLock()
		e := r.entries[id]
		r.mu.RUnlock()
		if e == nil || e.teardown == nil {
			continue
		}
		if err := e.teardown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s (%s): %w", id, e.Variant, err))
		}
	}
	return errors.Join(errs...)
}
