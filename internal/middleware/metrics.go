package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_optimizer_ai_request_duration_seconds",
		Help:    "Duration of chat-completion requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_optimizer_ai_requests_total",
		Help: "Total number of chat-completion requests",
	}, []string{"model", "status"})

	aiRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_optimizer_ai_retries_total",
		Help: "Total number of retries after a rate-limited transport error",
	})

	suggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_optimizer_suggestions_total",
		Help: "Total number of suggestions produced, by outcome kind",
	}, []string{"kind"})

	throttleWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "content_optimizer_throttle_wait_seconds",
		Help:    "Time spent waiting for the request throttle",
		Buckets: prometheus.DefBuckets,
	})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_optimizer_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_optimizer_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_optimizer_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_optimizer_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_optimizer_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"route", "code"})

	usedRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "content_optimizer_used_requests",
		Help: "Requests counted against the daily limit",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordAIRequest records an AI request
func (m *Metrics) RecordAIRequest(model, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordRetry records a retry after a rate-limited transport error
func (m *Metrics) RecordRetry() {
	aiRetries.Inc()
}

// RecordSuggestion records the outcome kind of a request cycle
func (m *Metrics) RecordSuggestion(kind string) {
	suggestionsTotal.WithLabelValues(kind).Inc()
}

// RecordThrottleWait records time spent blocked by the throttle
func (m *Metrics) RecordThrottleWait(d time.Duration) {
	throttleWait.Observe(d.Seconds())
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served API request
func (m *Metrics) RecordHTTPRequest(route string, code int) {
	httpRequests.WithLabelValues(route, fmt.Sprintf("%d", code)).Inc()
}

// SetUsedRequests sets the usage gauge
func (m *Metrics) SetUsedRequests(count int) {
	usedRequests.Set(float64(count))
}

// NewMetricsServer builds the metrics HTTP server
func NewMetricsServer(port int, path string) *http.Server {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
