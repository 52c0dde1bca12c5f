// Package diagnostics is the logging and tracing facade shared by the core and
// by domain modules. Events flow through a single Facade which filters by
// severity and fans out to the sinks registered during initialization.
//
// Severity filtering happens before an event is built or dispatched, so a
// disabled severity costs one atomic load and a comparison. Sink failures are
// never propagated to the emitter: they are counted and optionally reported
// through an error hook.
package diagnostics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Sink receives events that passed the facade threshold.
// Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Write(ctx context.Context, ev Event) error
}

// Closer is implemented by sinks holding resources.
type Closer interface {
	Close(ctx context.Context) error
}

// Flusher is implemented by sinks that buffer events.
type Flusher interface {
	Flush(ctx context.Context) error
}

var (
	// ErrSealed is returned when registering a sink after initialization.
	ErrSealed = errors.New("diagnostics: facade sealed")
	// ErrDuplicateSink is returned when a sink with the same name is already registered.
	ErrDuplicateSink = errors.New("diagnostics: duplicate sink name")
	// ErrNilSink is returned for a nil or anonymous sink.
	ErrNilSink = errors.New("diagnostics: nil sink")
)

// Facade filters and dispatches diagnostic events.
type Facade struct {
	sinks       atomic.Pointer[[]Sink]
	now         func() time.Time
	onSinkError func(sink string, err error)
	mu          sync.Mutex
	sinkErrors  atomic.Uint64
	threshold   atomic.Int32
	sealed      atomic.Bool
	closed      atomic.Bool
}

// Option configures a Facade.
type Option func(*Facade)

// WithThreshold sets the minimum severity that reaches sinks.
func WithThreshold(s Severity) Option {
	return func(f *Facade) { f.threshold.Store(int32(s)) }
}

// WithClock overrides the timestamp source. Used by tests and by the
// constrained system API, which has no wall clock.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

// WithSinkErrorHandler installs a hook called when a sink write fails.
// The hook runs on the emitting goroutine and must not emit events itself.
func WithSinkErrorHandler(fn func(sink string, err error)) Option {
	return func(f *Facade) { f.onSinkError = fn }
}

// WithSinks registers sinks at construction time.
func WithSinks(sinks ...Sink) Option {
	return func(f *Facade) {
		for _, s := range sinks {
			_ = f.Register(s)
		}
	}
}

// New creates a facade with an Info threshold and no sinks.
func New(opts ...Option) *Facade {
	f := &Facade{now: time.Now}
	f.threshold.Store(int32(SeverityInfo))
	empty := []Sink{}
	f.sinks.Store(&empty)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a sink. Registration is only allowed before Seal.
func (f *Facade) Register(s Sink) error {
	if s == nil || s.Name() == "" {
		return ErrNilSink
	}
	if f.sealed.Load() {
		return ErrSealed
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cur := *f.sinks.Load()
	for _, existing := range cur {
		if existing.Name() == s.Name() {
			return ErrDuplicateSink
		}
	}
	next := make([]Sink, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	f.sinks.Store(&next)
	return nil
}

// Seal prevents further sink registration. It reports whether this call sealed
// the facade.
func (f *Facade) Seal() bool { return !f.sealed.Swap(true) }

// Sealed reports whether the facade is sealed.
func (f *Facade) Sealed() bool { return f.sealed.Load() }

// Sinks returns the names of registered sinks in registration order.
func (f *Facade) Sinks() []string {
	cur := *f.sinks.Load()
	names := make([]string, len(cur))
	for i, s := range cur {
		names[i] = s.Name()
	}
	return names
}

// SetThreshold changes the minimum severity. It is safe to call concurrently
// with Emit.
func (f *Facade) SetThreshold(s Severity) { f.threshold.Store(int32(s)) }

// Threshold returns the minimum severity that reaches sinks.
func (f *Facade) Threshold() Severity { return Severity(f.threshold.Load()) }

// Enabled reports whether events of severity s reach sinks.
// A nil facade is disabled for every severity.
func (f *Facade) Enabled(s Severity) bool {
	return f != nil && int32(s) >= f.threshold.Load() && !f.closed.Load()
}

// Emit dispatches ev to every sink. Events below the threshold are dropped
// before any sink is touched.
func (f *Facade) Emit(ctx context.Context, ev Event) {
	if !f.Enabled(ev.Severity) {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = f.now()
	}
	f.dispatch(ctx, ev)
}

// Log builds an event from alternating key/value arguments and emits it.
// Hot paths should guard calls with Enabled to avoid building arguments for
// disabled severities.
func (f *Facade) Log(ctx context.Context, sev Severity, source capability.ID, msg string, args ...any) {
	if !f.Enabled(sev) {
		return
	}
	f.dispatch(ctx, Event{
		Severity: sev,
		Time:     f.now(),
		Source:   source,
		Message:  msg,
		Fields:   fieldsFromArgs(args),
	})
}

func (f *Facade) dispatch(ctx context.Context, ev Event) {
	for _, s := range *f.sinks.Load() {
		if err := s.Write(ctx, ev); err != nil {
			f.sinkErrors.Add(1)
			if f.onSinkError != nil {
				f.onSinkError(s.Name(), err)
			}
		}
	}
}

// SinkErrors returns the number of failed sink writes since construction.
func (f *Facade) SinkErrors() uint64 { return f.sinkErrors.Load() }

// Flush flushes every sink that buffers events.
func (f *Facade) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range *f.sinks.Load() {
		if fl, ok := s.(Flusher); ok {
			if err := fl.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes sinks in reverse registration order. Events emitted
// after Close are dropped. Close is idempotent.
func (f *Facade) Close(ctx context.Context) error {
	if f.closed.Swap(true) {
		return nil
	}
	f.sealed.Store(true)

	cur := *f.sinks.Load()
	var errs []error
	for i := len(cur) - 1; i >= 0; i-- {
		if fl, ok := cur[i].(Flusher); ok {
			if err := fl.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if c, ok := cur[i].(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
