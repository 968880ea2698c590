package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

func TestMiddlewareNormalizesDocumentPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/documents/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/documents/{document_id}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests on normalized path, got %v", got)
	}
}

func TestRecordSearchByOutcome(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordSearch("api", "http", &domain.SearchResponse{
		Mode:       domain.IndexModeHybridFused,
		Candidates: 12,
		Duplicates: 6,
		Results:    make([]domain.Result, 6),
	}, 20*time.Millisecond, nil)
	m.RecordSearch("api", "http", &domain.SearchResponse{Results: []domain.Result{}}, time.Millisecond, nil)
	m.RecordSearch("api", "http", nil, time.Millisecond, errors.New("boom"))

	for status, want := range map[string]float64{"success": 1, "empty_query": 1, "error": 1} {
		if got := testutil.ToFloat64(m.searchRequestsTotal.WithLabelValues("api", "http", status)); got != want {
			t.Fatalf("status %s: expected %v, got %v", status, want, got)
		}
	}
	if count := testutil.CollectAndCount(m.searchDuplicates); count != 1 {
		t.Fatalf("expected one duplicates series, got %d", count)
	}
}

func TestObserveBreakerState(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveBreakerState("postgres.vector_search", gobreaker.StateClosed, gobreaker.StateOpen)

	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("postgres.vector_search")); got != float64(gobreaker.StateOpen) {
		t.Fatalf("expected open state gauge, got %v", got)
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "foia_resilience_circuit_breaker_state") {
		t.Fatalf("expected breaker gauge in exposition, got %q", rr.Body.String())
	}
}

func TestWorkerMetricsFinishEvent(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartEvent()
	m.FinishEvent("worker", 5*time.Millisecond, nil)
	m.StartEvent()
	m.FinishEvent("worker", 5*time.Millisecond, errors.New("insert failed"))
	m.ObserveEventLag("worker", -time.Second)

	if got := testutil.ToFloat64(m.eventInFlight); got != 0 {
		t.Fatalf("expected no in-flight events, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one failed event, got %v", got)
	}
	if count := testutil.CollectAndCount(m.eventLag); count != 0 {
		t.Fatalf("negative lag must not be observed, got %d series", count)
	}
}
