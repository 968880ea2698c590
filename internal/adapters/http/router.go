package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/core/ports"
	"github.com/kirillkom/foia-search/internal/observability/metrics"
)

const (
	metricsService       = "api"
	backpressureWaitTime = 50 * time.Millisecond
	maxSearchBodyBytes   = 64 << 10
)

type Router struct {
	cfg      config.Config
	searchUC ports.DocumentSearchService
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter builds the HTTP surface. m may be nil to disable /metrics.
func NewRouter(
	cfg config.Config,
	searchUC ports.DocumentSearchService,
	docs ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		searchUC: searchUC,
		docs:     docs,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(metricsService, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, backpressureWaitTime)
		})

		r.Post("/v1/search", rt.searchPost)
		r.Get("/v1/search", rt.searchGet)
		r.Get("/v1/documents/{id}", rt.getDocumentByID)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (rt *Router) searchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must not be negative"})
		return
	}
	rt.search(w, r, req)
}

func (rt *Router) searchGet(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Query: r.URL.Query().Get("q")}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		req.Limit = limit
	}
	rt.search(w, r, req)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	started := time.Now()
	resp, err := rt.searchUC.Search(r.Context(), req.Query, req.Limit)
	if rt.metrics != nil {
		rt.metrics.RecordSearch(metricsService, "http", resp, time.Since(started), err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	result, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
