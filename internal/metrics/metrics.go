// Package metrics exports engine loop telemetry as Prometheus metrics.
//
// A Collector is an ordinary module: it subscribes to the lifecycle events
// and records what it observes into its own registry. Nothing is global, so
// several engines (or tests) never share counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tickcore/internal/engine"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "tickcore"

// Collector records tick loop metrics.
type Collector struct {
	registry *prometheus.Registry

	starts  prometheus.Counter
	frames  prometheus.Counter
	running prometheus.Gauge
	delta   prometheus.Histogram
	last    prometheus.Gauge
}

// NewCollector creates a collector with a private registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.starts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "starts_total",
		Help:      "Number of engine starts that reached initialize",
	})
	c.frames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "frames_total",
		Help:      "Number of process broadcasts",
	})
	c.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "running",
		Help:      "1 between initialize and deinitialize, else 0",
	})
	c.delta = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "frame_delta_seconds",
		Help:      "Delta time carried by each process broadcast",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
	})
	c.last = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "last_frame_delta_seconds",
		Help:      "Delta time of the most recent frame",
	})

	c.registry.MustRegister(c.starts, c.frames, c.running, c.delta, c.last)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Initialize() {
	c.starts.Inc()
	c.running.Set(1)
}

func (c *Collector) Process(arg engine.TickArg) {
	c.frames.Inc()
	c.delta.Observe(arg.DeltaTime)
	c.last.Set(arg.DeltaTime)
}

func (c *Collector) Deinitialize() {
	c.running.Set(0)
}
