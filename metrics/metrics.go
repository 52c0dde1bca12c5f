// Package metrics exports capability activity as Prometheus metrics. A
// Collector observes executors and allocators and doubles as a diagnostics
// sink counting events by severity.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/memory"
)

// SinkName is the name the Collector registers under as a diagnostics sink.
const SinkName = "metrics"

// Collector provides capability metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Concurrency metrics
	unitsSubmitted *prometheus.CounterVec
	unitsFinished  *prometheus.CounterVec
	unitsRunning   *prometheus.GaugeVec
	unitDuration   *prometheus.HistogramVec

	// Memory metrics
	allocations   *prometheus.CounterVec
	releases      *prometheus.CounterVec
	bytesInUse    *prometheus.GaugeVec
	exhaustions   *prometheus.CounterVec
	capacityBytes *prometheus.GaugeVec

	// Diagnostics metrics
	events *prometheus.CounterVec

	startTime time.Time
	uptime    prometheus.GaugeFunc
}

var (
	_ concurrency.Observer = (*Collector)(nil)
	_ memory.Observer      = (*Collector)(nil)
	_ diagnostics.Sink     = (*Collector)(nil)
)

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "appcore"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.unitsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "concurrency",
			Name:      "units_submitted_total",
			Help:      "Total number of submitted units of work",
		},
		[]string{"variant"},
	)

	c.unitsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "concurrency",
			Name:      "units_finished_total",
			Help:      "Total number of units that reached a terminal state",
		},
		[]string{"variant", "state"},
	)

	c.unitsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "concurrency",
			Name:      "units_running",
			Help:      "Units currently executing",
		},
		[]string{"variant"},
	)

	c.unitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "concurrency",
			Name:      "unit_duration_seconds",
			Help:      "Time spent running a unit of work",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"variant"},
	)

	c.allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "allocations_total",
			Help:      "Total number of successful allocations",
		},
		[]string{"variant"},
	)

	c.releases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "releases_total",
			Help:      "Total number of released blocks",
		},
		[]string{"variant"},
	)

	c.bytesInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "bytes_in_use",
			Help:      "Bytes held by live blocks",
		},
		[]string{"variant"},
	)

	c.exhaustions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "exhaustions_total",
			Help:      "Allocations refused for lack of space (class none for allocators without size classes)",
		},
		[]string{"variant", "class"},
	)

	c.capacityBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "capacity_bytes",
			Help:      "Fixed capacity of bounded allocators",
		},
		[]string{"variant"},
	)

	c.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "events_total",
			Help:      "Diagnostic events that passed the severity threshold",
		},
		[]string{"severity", "source"},
	)

	c.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the collector was created",
		},
		func() float64 { return time.Since(c.startTime).Seconds() },
	)

	c.registry.MustRegister(
		c.unitsSubmitted,
		c.unitsFinished,
		c.unitsRunning,
		c.unitDuration,
		c.allocations,
		c.releases,
		c.bytesInUse,
		c.exhaustions,
		c.capacityBytes,
		c.events,
		c.uptime,
	)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Submitted(variant capability.VariantID) {
	c.unitsSubmitted.WithLabelValues(string(variant)).Inc()
}

func (c *Collector) Started(variant capability.VariantID) {
	c.unitsRunning.WithLabelValues(string(variant)).Inc()
}

// Finished records a terminal unit. Units cancelled before they started
// report a zero duration and never incremented the running gauge.
func (c *Collector) Finished(variant capability.VariantID, state concurrency.State, elapsed time.Duration) {
	v := string(variant)
	c.unitsFinished.WithLabelValues(v, state.String()).Inc()
	if elapsed == 0 && state == concurrency.StateCancelled {
		return
	}
	c.unitsRunning.WithLabelValues(v).Dec()
	c.unitDuration.WithLabelValues(v).Observe(elapsed.Seconds())
}

func (c *Collector) Allocated(variant capability.VariantID, size int) {
	c.allocations.WithLabelValues(string(variant)).Inc()
	c.bytesInUse.WithLabelValues(string(variant)).Add(float64(size))
}

func (c *Collector) Released(variant capability.VariantID, size int) {
	c.releases.WithLabelValues(string(variant)).Inc()
	c.bytesInUse.WithLabelValues(string(variant)).Sub(float64(size))
}

func (c *Collector) Exhausted(variant capability.VariantID, class int) {
	c.exhaustions.WithLabelValues(string(variant), classLabel(class)).Inc()
}

// RecordStats publishes gauges that only a Stats snapshot can provide. It
// also resynchronises bytes_in_use after a Reset.
func (c *Collector) RecordStats(s memory.Stats) {
	v := string(s.Variant)
	c.bytesInUse.WithLabelValues(v).Set(float64(s.InUse))
	if s.Capacity > 0 {
		c.capacityBytes.WithLabelValues(v).Set(float64(s.Capacity))
	}
}

func (c *Collector) Name() string { return SinkName }

// Write counts ev. It never fails.
func (c *Collector) Write(_ context.Context, ev diagnostics.Event) error {
	source := string(ev.Source)
	if source == "" {
		source = "none"
	}
	c.events.WithLabelValues(strings.ToLower(ev.Severity.String()), source).Inc()
	return nil
}

func classLabel(class int) string {
	if class <= 0 {
		return "none"
	}
	return strconv.Itoa(class)
}
