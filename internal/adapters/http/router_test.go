package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/observability/metrics"
)

type searchFake struct {
	err       error
	lastQuery string
	lastLimit int
	calls     int
}

func (f *searchFake) Search(_ context.Context, query string, limit int) (*domain.SearchResponse, error) {
	f.calls++
	f.lastQuery = query
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	resp := &domain.SearchResponse{Query: query, Results: []domain.Result{}, RequestedTop: limit}
	if strings.TrimSpace(query) == "" {
		return resp, nil
	}
	resp.Mode = domain.IndexModeHybridFused
	resp.Candidates = 2
	resp.Results = append(resp.Results, domain.Result{ID: "email-1", Rank: 1, Score: 0.03})
	return resp, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Result{ID: id, Content: "body"}, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &searchFake{}, docsFake{}, nil).Handler()
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSearchPostPassesQueryAndLimit(t *testing.T) {
	search := &searchFake{}
	handler := NewRouter(config.Config{}, search, docsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"water lead levels","limit":5}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if search.lastQuery != "water lead levels" || search.lastLimit != 5 {
		t.Fatalf("unexpected search call: %q %d", search.lastQuery, search.lastLimit)
	}
	var resp domain.SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "email-1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestSearchGetBlankQueryReturnsEmptyResults(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=%20%20", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	results, ok := body["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results array, got %#v", body["results"])
	}
	if _, hasError := body["error"]; hasError {
		t.Fatalf("blank query must not produce an error: %#v", body)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	search := &searchFake{}
	handler := NewRouter(config.Config{}, search, docsFake{}, nil).Handler()

	cases := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":`)),
		httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"x","limit":-1}`)),
		httptest.NewRequest(http.MethodGet, "/v1/search?q=x&limit=ten", nil),
	}
	for _, req := range cases {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", req.Method, req.URL, res.Code)
		}
	}
	if search.calls != 0 {
		t.Fatalf("expected no search calls for bad input, got %d", search.calls)
	}
}

func TestSearchUnavailableMapsTo503WithGenericMessage(t *testing.T) {
	cause := domain.WrapError(domain.ErrRetrievalUnavailable, "fetch documents", errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	handler := NewRouter(config.Config{}, &searchFake{err: cause}, docsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=budget", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["error"] != "search temporarily unavailable" {
		t.Fatalf("expected generic message, got %#v", body["error"])
	}
}

func TestSearchUnexpectedErrorMapsTo500(t *testing.T) {
	handler := NewRouter(config.Config{}, &searchFake{err: errors.New("boom")}, docsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=budget", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if body := decodeBody(t, res); body["error"] != "internal error" {
		t.Fatalf("expected internal error message, got %#v", body["error"])
	}
}

func TestGetDocumentByID(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/email-7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body := decodeBody(t, res); body["id"] != "email-7" {
		t.Fatalf("expected document email-7, got %#v", body)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&searchFake{},
		docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id=missing"))},
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestMetricsEndpointRecordsSearches(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{}, &searchFake{}, docsFake{}, m).Handler()

	search := httptest.NewRequest(http.MethodGet, "/v1/search?q=flint", nil)
	handler.ServeHTTP(httptest.NewRecorder(), search)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `foia_search_requests_total{endpoint="http",service="api",status="success"} 1`) {
		t.Fatalf("expected search counter in exposition:\n%s", res.Body.String())
	}
}
