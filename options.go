package appcore

import (
	"io"

	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

type options struct {
	cfg        *Config
	environ    map[string]string
	sinks      []diagnostics.Sink
	middleware []concurrency.Middleware
	console    io.Writer
}

// Option configures New.
type Option func(*options)

// WithConfig uses cfg as is instead of reading the environment.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithEnvironment reads APPCORE_* overrides from environ instead of the
// process environment.
func WithEnvironment(environ map[string]string) Option {
	return func(o *options) { o.environ = environ }
}

// WithSinks registers extra diagnostics sinks next to the profile's own.
func WithSinks(sinks ...diagnostics.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithMiddleware wraps every unit passed to Core.Submit, first outermost.
func WithMiddleware(mws ...concurrency.Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mws...) }
}

// WithConsoleWriter redirects the console sink. Ignored by profiles without
// a console.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.console = w }
}
