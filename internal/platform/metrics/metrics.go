// Package metrics exposes Prometheus metrics for HTTP traffic, chart events
// and live resource gauges.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chart"

// ChartPublisher matches the event publisher of the medication and notes
// packages.
type ChartPublisher interface {
	PublishChartEvent(ctx context.Context, patientID, eventType, resourceID string, payload interface{})
}

type Collector struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	chartEvents  *prometheus.CounterVec
}

// New builds a collector on its own registry, including the Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
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
		chartEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Chart events published, by event type.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.chartEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gauge registers a gauge whose value is read from fn at scrape time.
func (c *Collector) Gauge(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Middleware records request counts and latency keyed by the matched route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Observe counts every event and forwards it to next, which may be nil.
func (c *Collector) Observe(next ChartPublisher) ChartPublisher {
	return &observer{c: c, next: next}
}

type observer struct {
	c    *Collector
	next ChartPublisher
}

func (o *observer) PublishChartEvent(ctx context.Context, patientID, eventType, resourceID string, payload interface{}) {
	o.c.chartEvents.WithLabelValues(eventType).Inc()
	if o.next != nil {
		o.next.PublishChartEvent(ctx, patientID, eventType, resourceID, payload)
	}
}
