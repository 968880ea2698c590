package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

type lexicalDocument struct {
	Content string `json:"content"`
}

// lexicalIndex is an in-memory bleve index over document bodies using the
// English analyzer (stemming and stop words).
type lexicalIndex struct {
	index bleve.Index
}

func newLexicalIndex(docs []domain.Document) (*lexicalIndex, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, lexicalDocument{Content: doc.Content}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("execute lexical batch: %w", err)
	}
	return &lexicalIndex{index: idx}, nil
}

// search only returns documents sharing at least one analyzed term with query.
func (l *lexicalIndex) search(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]domain.LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if hit.Score <= 0 {
			continue
		}
		hits = append(hits, domain.LexicalHit{DocumentID: hit.ID, Relevance: hit.Score})
	}
	return hits, nil
}

func (l *lexicalIndex) close() error {
	return l.index.Close()
}
