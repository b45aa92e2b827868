package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalog collects the prometheus metrics of the catalog service.
// All methods are safe to call on a nil *Catalog.
type Catalog struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	productsCreated prometheus.Counter
	productsUpdated prometheus.Counter
	productsDeleted prometheus.Counter
	imagesAttached  prometheus.Counter
	imagesDetached  prometheus.Counter
	cleanupFailures prometheus.Counter
}

// New initialises a registry with the catalog and runtime collectors.
func New() *Catalog {
	registry := prometheus.NewRegistry()

	c := &Catalog{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "The total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		productsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "products_created_total",
			Help: "The total number of products created",
		}),
		productsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "products_updated_total",
			Help: "The total number of products updated",
		}),
		productsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "products_deleted_total",
			Help: "The total number of products deleted",
		}),
		imagesAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "product_images_attached_total",
			Help: "The total number of product images stored",
		}),
		imagesDetached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "product_images_detached_total",
			Help: "The total number of product images removed",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "product_image_cleanup_failures_total",
			Help: "The total number of stored images that could not be deleted",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestsTotal,
		c.requestDuration,
		c.productsCreated,
		c.productsUpdated,
		c.productsDeleted,
		c.imagesAttached,
		c.imagesDetached,
		c.cleanupFailures,
	)
	c.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return c
}

// Handler returns the /metrics endpoint.
func (c *Catalog) Handler() http.Handler {
	if c == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return c.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Catalog) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Catalog) ProductCreated() {
	if c != nil {
		c.productsCreated.Inc()
	}
}

func (c *Catalog) ProductUpdated() {
	if c != nil {
		c.productsUpdated.Inc()
	}
}

func (c *Catalog) ProductDeleted() {
	if c != nil {
		c.productsDeleted.Inc()
	}
}

func (c *Catalog) ImageAttached() {
	if c != nil {
		c.imagesAttached.Inc()
	}
}

func (c *Catalog) ImageDetached() {
	if c != nil {
		c.imagesDetached.Inc()
	}
}

func (c *Catalog) CleanupFailed() {
	if c != nil {
		c.cleanupFailures.Inc()
	}
}

// Middleware records request counts and latencies per chi route pattern.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routePattern(r)
		c.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
