package ports

import (
	"context"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

// Embedder maps query text to a fixed-dimension vector. Implementations must
// be safe for concurrent use.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DocumentIndex is the read-only store holding documents, their embeddings
// and a full-text index. Pure-vector backends return no lexical hits.
type DocumentIndex interface {
	Mode() domain.IndexMode
	Dimension(ctx context.Context) (int, error)
	VectorSearch(ctx context.Context, vector []float32, limit int) ([]domain.VectorHit, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	// GetDocuments returns the stored documents among ids, in no particular order.
	GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error)
}

// SearchEventPublisher emits audit events for executed searches.
type SearchEventPublisher interface {
	PublishSearchExecuted(ctx context.Context, event domain.SearchEvent) error
}

// SearchEventSubscriber delivers audit events to a handler until ctx is done.
type SearchEventSubscriber interface {
	SubscribeSearchExecuted(ctx context.Context, handler func(context.Context, domain.SearchEvent) error) error
}

// SearchLogStore appends audit events.
type SearchLogStore interface {
	AppendSearchEvent(ctx context.Context, event domain.SearchEvent) error
}

// DocumentWriter loads documents into a writable index. Used by the import command.
type DocumentWriter interface {
	UpsertDocuments(ctx context.Context, docs []domain.Document) error
}

// SearchLogReader lists recorded audit events, newest first.
type SearchLogReader interface {
	RecentSearches(ctx context.Context, limit int) ([]domain.SearchEvent, error)
}
