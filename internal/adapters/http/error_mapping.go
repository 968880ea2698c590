package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

const unavailableMessage = "search temporarily unavailable"

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError keeps backend detail out of 503 and 500 bodies; it only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	switch status {
	case http.StatusNotFound:
		message = "document not found"
	case http.StatusServiceUnavailable:
		message = unavailableMessage
		w.Header().Set("Retry-After", "1")
	case http.StatusInternalServerError:
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
