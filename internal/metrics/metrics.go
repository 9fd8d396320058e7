// Package metrics exposes Prometheus collectors for the HTTP API, the query
// cache and receipt writes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resit"

// Metrics groups the collectors registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	CacheOutcomes   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	ReceiptWrites   *prometheus.CounterVec
	ReceiptChanges  *prometheus.CounterVec
	RateLimitedHits prometheus.Counter
}

// New creates the collectors on a dedicated registry. Go runtime and
// process collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CacheOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Query cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ReceiptWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receipts",
			Name:      "writes_total",
			Help:      "Receipt writes by operation and result.",
		}, []string{"operation", "result"}),
		ReceiptChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "receipt_changes_total",
			Help:      "Receipt change messages handled by the worker.",
		}, []string{"operation", "result"}),
		RateLimitedHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheOutcomes,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ReceiptWrites,
		m.ReceiptChanges,
		m.RateLimitedHits,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCache records a query cache outcome. Its signature matches
// services.AnalysisOptions.Observe.
func (m *Metrics) ObserveCache(cacheName, outcome string) {
	m.CacheOutcomes.WithLabelValues(cacheName, outcome).Inc()
}

// ObserveWrite records the result of a receipt write.
func (m *Metrics) ObserveWrite(op string, err error) {
	m.ReceiptWrites.WithLabelValues(op, result(err)).Inc()
}

// ObserveChange records a receipt change message handled by the worker.
func (m *Metrics) ObserveChange(op string, err error) {
	m.ReceiptChanges.WithLabelValues(op, result(err)).Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern so that ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
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
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
