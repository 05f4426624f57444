// Package metrics exposes Prometheus metrics for forms, domain events and
// HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrodata/agroadmin/internal/event"
)

// Collector owns a private registry so tests and multiple servers never
// collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	formLoads      *prometheus.CounterVec
	formBlocked    *prometheus.CounterVec
	formSubmits    *prometheus.CounterVec
	events         *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers every metric under namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		formLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_loads_total",
			Help:      "Entity loads into edit forms by outcome.",
		}, []string{"form", "result"}),
		formBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_submits_blocked_total",
			Help:      "Submissions stopped by validation before reaching the store.",
		}, []string{"form"}),
		formSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_submits_total",
			Help:      "Update calls made by edit forms by status and outcome.",
		}, []string{"form", "status", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events dispatched on the event bus.",
		}, []string{"type", "category"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	c.registry.MustRegister(
		c.formLoads, c.formBlocked, c.formSubmits, c.events,
		c.requests, c.requestLatency,
		prometheus.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Loaded(form string, err error) {
	c.formLoads.WithLabelValues(form, result(err == nil)).Inc()
}

func (c *Collector) Blocked(form string) {
	c.formBlocked.WithLabelValues(form).Inc()
}

func (c *Collector) Submitted(form string, status int, ok bool) {
	c.formSubmits.WithLabelValues(form, strconv.Itoa(status), result(ok)).Inc()
}

// HandleEvent counts bus traffic; subscribe it on the event bus.
func (c *Collector) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	c.events.WithLabelValues(evt.EventType, evt.Category).Inc()
	return nil
}

// Middleware records request counts and latency. Routes are labelled by
// their chi pattern to keep label cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.requestLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
