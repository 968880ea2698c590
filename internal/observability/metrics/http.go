package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	searchCandidates    *prometheus.HistogramVec
	searchDuplicates    *prometheus.HistogramVec
	searchResults       *prometheus.HistogramVec
	embeddingCacheTotal *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foia",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foia",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "foia",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foia",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by outcome.",
		},
		[]string{"service", "endpoint", "status"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foia",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint", "mode"},
	)
	searchCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foia",
			Subsystem: "search",
			Name:      "fused_candidates",
			Help:      "Fused candidates per search before de-duplication.",
			Buckets:   []float64{0, 5, 10, 25, 50, 75, 100},
		},
		[]string{"service", "endpoint"},
	)
	searchDuplicates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foia",
			Subsystem: "search",
			Name:      "duplicates_removed",
			Help:      "Near-duplicate candidates removed per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		},
		[]string{"service", "endpoint"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foia",
			Subsystem: "search",
			Name:      "returned_results",
			Help:      "Results returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"service", "endpoint"},
	)
	embeddingCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foia",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Query embedding cache lookups by layer and result.",
		},
		[]string{"layer", "result"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foia",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchDuration,
		searchCandidates,
		searchDuplicates,
		searchResults,
		embeddingCacheTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchRequestsTotal: searchRequestsTotal,
		searchDuration:      searchDuration,
		searchCandidates:    searchCandidates,
		searchDuplicates:    searchDuplicates,
		searchResults:       searchResults,
		embeddingCacheTotal: embeddingCacheTotal,
		breakerState:        breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordSearch observes one completed search. resp is nil when the search failed.
func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, resp *domain.SearchResponse, duration time.Duration, err error) {
	if err != nil {
		m.searchRequestsTotal.WithLabelValues(service, endpoint, "error").Inc()
		return
	}
	if resp == nil || resp.Mode == "" {
		m.searchRequestsTotal.WithLabelValues(service, endpoint, "empty_query").Inc()
		return
	}
	m.searchRequestsTotal.WithLabelValues(service, endpoint, "success").Inc()
	m.searchDuration.WithLabelValues(service, endpoint, string(resp.Mode)).Observe(duration.Seconds())
	m.searchCandidates.WithLabelValues(service, endpoint).Observe(float64(resp.Candidates))
	m.searchDuplicates.WithLabelValues(service, endpoint).Observe(float64(resp.Duplicates))
	m.searchResults.WithLabelValues(service, endpoint).Observe(float64(len(resp.Results)))
}

// EmbeddingCacheCounter is handed to the embedding cache decorators.
func (m *HTTPServerMetrics) EmbeddingCacheCounter() *prometheus.CounterVec {
	return m.embeddingCacheTotal
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *HTTPServerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(to))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
