package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus collectors on a private registry.
type Collector struct {
	registry *prometheus.Registry

	sizingRequests  *prometheus.CounterVec
	irradianceFetch *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// New creates a Collector and registers its collectors plus the Go runtime collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sizingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solar",
				Subsystem: "sizing",
				Name:      "requests_total",
				Help:      "Sizing calculations by outcome.",
			},
			[]string{"outcome"},
		),
		irradianceFetch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "solar",
				Subsystem: "irradiance",
				Name:      "fetch_seconds",
				Help:      "Duration of irradiance provider calls.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"provider", "outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solar",
				Subsystem: "irradiance",
				Name:      "cache_total",
				Help:      "Irradiance cache lookups by result.",
			},
			[]string{"result"},
		),
	}

	c.registry.MustRegister(
		c.sizingRequests,
		c.irradianceFetch,
		c.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// SizingOutcome counts one sizing calculation.
func (c *Collector) SizingOutcome(outcome string) {
	c.sizingRequests.WithLabelValues(outcome).Inc()
}

// IrradianceFetch observes one provider call.
func (c *Collector) IrradianceFetch(provider, outcome string, d time.Duration) {
	c.irradianceFetch.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// CacheLookup counts a cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
