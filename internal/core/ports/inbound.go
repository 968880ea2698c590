package ports

import (
	"context"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

// DocumentSearchService is the inbound contract for ranked, de-duplicated retrieval.
type DocumentSearchService interface {
	Search(ctx context.Context, query string, limit int) (*domain.SearchResponse, error)
}

// DocumentReader is the inbound read model for a single assembled document.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Result, error)
}

// SearchEventRecorder persists search audit events consumed by the worker.
type SearchEventRecorder interface {
	Record(ctx context.Context, event domain.SearchEvent) error
}
