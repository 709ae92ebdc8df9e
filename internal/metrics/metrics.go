// Package metrics holds the Prometheus instrumentation for the web surface
// and the recognition pipeline.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestCounter counts HTTP requests by method, path and status.
	RequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vlmocr_http_requests_total",
		Help: "Total HTTP requests served.",
	}, []string{"method", "path", "status"})

	// ResponseTime observes HTTP response latency.
	ResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vlmocr_http_response_time_seconds",
		Help:    "HTTP response time in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// InferenceCalls counts calls to the inference endpoint by model and outcome.
	InferenceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vlmocr_inference_calls_total",
		Help: "Calls to the vision-language inference endpoint.",
	}, []string{"model", "outcome"})

	// InferenceDuration observes per-unit inference latency.
	InferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vlmocr_inference_duration_seconds",
		Help:    "Inference call duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"model"})

	// UnitsProcessed counts recognized units (pages or single images).
	UnitsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vlmocr_units_processed_total",
		Help: "Image units processed by the pipeline.",
	}, []string{"outcome"})
)

var registerOnce sync.Once

// Register installs all collectors in the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			ResponseTime,
			InferenceCalls,
			InferenceDuration,
			UnitsProcessed,
		)
	})
}

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RecordRequest records one served HTTP request.
func RecordRequest(method, path string, status int, seconds float64) {
	RequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	ResponseTime.WithLabelValues(method, path).Observe(seconds)
}

// RecordInference records one inference call.
func RecordInference(model, outcome string, seconds float64) {
	InferenceCalls.WithLabelValues(model, outcome).Inc()
	InferenceDuration.WithLabelValues(model).Observe(seconds)
}

// RecordUnit records one processed unit.
func RecordUnit(outcome string) {
	UnitsProcessed.WithLabelValues(outcome).Inc()
}
