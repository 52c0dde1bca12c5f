package concurrency

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// Middleware wraps a Work to add cross-cutting behaviour. Middleware runs in
// FIFO order: the first one given is the outermost.
type Middleware func(next Work) Work

// Chain applies mws to w.
func Chain(w Work, mws ...Middleware) Work {
	for i := len(mws) - 1; i >= 0; i-- {
		w = mws[i](w)
	}
	return w
}

// Logging reports the start and outcome of every unit through e. Panics are
// logged and re-raised so the executor still records them on the handle.
func Logging(e diagnostics.Emitter, name string) Middleware {
	return func(next Work) Work {
		return func(ctx context.Context, y Yielder) (err error) {
			start := time.Now()
			e.Debug(ctx, "unit started", "unit", name)
			defer func() {
				if r := recover(); r != nil {
					e.Error(ctx, "unit panicked", "unit", name, "panic", fmt.Sprint(r))
					panic(r)
				}
				if err != nil {
					e.Warn(ctx, "unit failed", "unit", name, "error", err, "elapsed", time.Since(start))
					return
				}
				e.Debug(ctx, "unit completed", "unit", name, "elapsed", time.Since(start))
			}()
			return next(ctx, y)
		}
	}
}

// Timeout bounds the context a unit sees. The unit must watch ctx for the
// bound to have any effect.
func Timeout(d time.Duration) Middleware {
	return func(next Work) Work {
		return func(ctx context.Context, y Yielder) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, y)
		}
	}
}

// CancelAware makes a unit end as cancelled when cancellation was requested
// before it returned successfully.
func CancelAware() Middleware {
	return func(next Work) Work {
		return func(ctx context.Context, y Yielder) error {
			err := next(ctx, y)
			if err == nil && y.Cancelled() {
				return ErrCancelled
			}
			return err
		}
	}
}
