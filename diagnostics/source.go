package diagnostics

import (
	"context"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Emitter is a facade view bound to one source. The zero Emitter discards
// everything, so strategies can hold one unconditionally.
type Emitter struct {
	f      *Facade
	source capability.ID
}

// Source returns an emitter tagging events with id.
func (f *Facade) Source(id capability.ID) Emitter {
	return Emitter{f: f, source: id}
}

// Facade returns the underlying facade, or nil for the zero Emitter.
func (e Emitter) Facade() *Facade { return e.f }

// Enabled reports whether events of severity s would reach a sink.
func (e Emitter) Enabled(s Severity) bool { return e.f.Enabled(s) }

func (e Emitter) Debug(ctx context.Context, msg string, args ...any) {
	e.f.Log(ctx, SeverityDebug, e.source, msg, args...)
}

func (e Emitter) Info(ctx context.Context, msg string, args ...any) {
	e.f.Log(ctx, SeverityInfo, e.source, msg, args...)
}

func (e Emitter) Warn(ctx context.Context, msg string, args ...any) {
	e.f.Log(ctx, SeverityWarn, e.source, msg, args...)
}

func (e Emitter) Error(ctx context.Context, msg string, args ...any) {
	e.f.Log(ctx, SeverityError, e.source, msg, args...)
}
