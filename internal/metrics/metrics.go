// Package metrics exposes Prometheus instrumentation for the API.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plotfit"

// Fit outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the service collectors and the registry they live in
type Metrics struct {
	registry     *prometheus.Registry
	fits         *prometheus.CounterVec
	fitDuration  *prometheus.HistogramVec
	cache        *prometheus.CounterVec
	events       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_total",
			Help:      "Regression fits by model and outcome.",
		}, []string{"model", "outcome"}),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Time spent in the regression engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"model"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fit_cache_total",
			Help:      "Regression result cache lookups by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Dataset change events published by type and outcome.",
		}, []string{"type", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fits,
		m.fitDuration,
		m.cache,
		m.events,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFit records one engine call
func (m *Metrics) ObserveFit(model string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.fits.WithLabelValues(model, outcome).Inc()
	m.fitDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObserveCache records a cache lookup
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// ObserveEvent records an event publication
func (m *Metrics) ObserveEvent(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FiberMiddleware counts requests by matched route, so path parameters do
// not explode label cardinality
func (m *Metrics) FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else if status < 400 {
				status = fiber.StatusInternalServerError
			}
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}

		method := c.Method()
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
