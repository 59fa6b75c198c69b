// Package metrics exposes Prometheus counters for numbering, transitions
// and the HTTP API.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
)

const namespace = "docflow"

// Collector owns a registry and every docflow metric
type Collector struct {
	registry *prometheus.Registry

	allocationsTotal   *prometheus.CounterVec
	allocationAttempts *prometheus.HistogramVec
	transitionsTotal   *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with Go runtime and process metrics registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		allocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sequence_allocations_total",
				Help:      "Document number allocations by outcome",
			},
			[]string{"document_type", "outcome"},
		),
		allocationAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sequence_allocation_attempts",
				Help:      "Attempts needed per document number allocation",
				Buckets:   []float64{1, 2, 3, 5, 8},
			},
			[]string{"document_type"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Workflow transition requests by action and outcome",
			},
			[]string{"document_type", "action", "outcome"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed events by type",
			},
			[]string{"type"},
		),
		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	c.registry.MustRegister(
		c.allocationsTotal,
		c.allocationAttempts,
		c.transitionsTotal,
		c.eventsTotal,
		c.apiRequestsTotal,
		c.apiRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveAllocation records one allocation outcome
func (c *Collector) ObserveAllocation(documentType entity.DocumentType, attempts int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.allocationsTotal.WithLabelValues(string(documentType), outcome).Inc()
	if attempts > 0 {
		c.allocationAttempts.WithLabelValues(string(documentType)).Observe(float64(attempts))
	}
}

// ObserveTransition records one transition request
func (c *Collector) ObserveTransition(documentType entity.DocumentType, action entity.Action, outcome string) {
	c.transitionsTotal.WithLabelValues(string(documentType), string(action), outcome).Inc()
}

// HandleEvent counts committed events; it is subscribed on the dispatcher
func (c *Collector) HandleEvent(ctx context.Context, evt *event.Event) error {
	c.eventsTotal.WithLabelValues(evt.Type.String()).Inc()
	return nil
}

// GinMiddleware records request count and latency per route template
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := ctx.Request.Method
		c.apiRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.apiRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RegisterDBStats exports database/sql pool statistics
func (c *Collector) RegisterDBStats(db *sql.DB, name string) error {
	return c.registry.Register(collectors.NewDBStatsCollector(db, name))
}

var (
	_ sequence.Observer = (*Collector)(nil)
	_ workflow.Observer = (*Collector)(nil)
)
