//go:build !appcore_embedded

package appcore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/console"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/ring"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/rotfile"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/throttle"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/tracing"
	"github.com/reglet-dev/reglet-appcore/metrics"
	"github.com/reglet-dev/reglet-appcore/sysapi/osapi"
)

// Metrics returns the Prometheus collector observing the capabilities, or
// nil when metrics are disabled.
func (c *Core) Metrics() *metrics.Collector {
	m, _ := c.metrics.(*metrics.Collector)
	return m
}

// newStructuredDiagnostics wires the console, file, tracing and metrics sinks
// enabled by the config. The metrics collector also observes the executor and
// the allocator built after it.
func newStructuredDiagnostics(b *builder) (_ *diagnostics.Facade, err error) {
	threshold, err := diagnostics.ParseSeverity(b.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var sinks []diagnostics.Sink
	defer func() {
		if err == nil {
			return
		}
		for _, s := range sinks {
			if c, ok := s.(diagnostics.Closer); ok {
				_ = c.Close(context.Background())
			}
		}
	}()

	if b.cfg.Console {
		w := b.console
		if w == nil {
			w = os.Stderr
		}
		out := console.New(console.WithWriter(w), console.WithService(b.cfg.Service))
		sinks = append(sinks, throttle.Wrap(out, b.cfg.ConsoleRate, max(int(b.cfg.ConsoleRate), 1)))
	}
	if b.cfg.File {
		dir := b.cfg.LogDir
		if dir == "" {
			dir = filepath.Join(b.cfg.Root, "logs")
		}
		file, err := rotfile.New(dir,
			rotfile.WithService(b.cfg.Service),
			rotfile.WithMaxBytes(b.cfg.MaxFileBytes),
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}
	if b.cfg.Tracing {
		sinks = append(sinks, tracing.New(tracing.WithErrorStatus(true)))
	}
	if b.cfg.Metrics {
		col := metrics.NewCollector("")
		b.metrics = col
		b.memObserver = col
		b.concObserver = col
		sinks = append(sinks, col)
	}
	if b.cfg.RingSize > 0 {
		b.ring = ring.New(b.cfg.RingSize)
		sinks = append(sinks, b.ring)
	}
	sinks = append(sinks, b.sinks...)

	f := diagnostics.New(diagnostics.WithThreshold(threshold))
	if err := registerSinks(f, sinks); err != nil {
		return nil, err
	}
	return f, nil
}

func newOSSystem(b *builder) (*osapi.API, error) {
	return osapi.New(osapi.WithRoot(b.cfg.Root), osapi.WithDiagnostics(b.diag))
}
