// Package metrics exposes Prometheus collectors for the tasklist service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	tasksCreatedTotal          prometheus.Counter
	tasksDeletedTotal          prometheus.Counter
	taskStoreErrorsTotal       *prometheus.CounterVec
	taskEventsTotal            *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		tasksCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_created_total",
				Help: "Total number of tasks created.",
			},
		)

		tasksDeletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_deleted_total",
				Help: "Total number of task deletions (including ids that did not exist).",
			},
		)

		taskStoreErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_store_errors_total",
				Help: "Total number of failed task store calls, labeled by operation.",
			},
			[]string{"op"},
		)

		taskEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_events_published_total",
				Help: "Total number of task event publish attempts, labeled by type and status.",
			},
			[]string{"type", "status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTaskCreated counts a successful create.
func ObserveTaskCreated() {
	Init()
	tasksCreatedTotal.Inc()
}

// ObserveTaskDeleted counts a successful delete.
func ObserveTaskDeleted() {
	Init()
	tasksDeletedTotal.Inc()
}

// ObserveStoreError counts a failed store call for op ("list", "create", "delete").
func ObserveStoreError(op string) {
	Init()
	taskStoreErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveEventPublish counts a publish attempt for a task event type.
func ObserveEventPublish(eventType string, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	taskEventsTotal.WithLabelValues(eventType, status).Inc()
}
