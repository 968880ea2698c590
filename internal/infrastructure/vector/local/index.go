package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

type Options struct {
	// Lexical adds a bleve full-text leg, which makes the index hybrid.
	Lexical  bool
	M        int
	EfSearch int
}

func (o Options) normalize() Options {
	out := o
	if out.M <= 0 {
		out.M = 16
	}
	if out.EfSearch <= 0 {
		out.EfSearch = 200
	}
	return out
}

// Index holds a whole corpus in memory: an HNSW graph over normalized
// embeddings and, optionally, a lexical index. It is read-only once built.
type Index struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[uint64]
	keys      []string
	docs      map[string]domain.Document
	dimension int
	lexical   *lexicalIndex
}

// New builds the index. All embeddings must share one non-zero dimension.
func New(docs []domain.Document, opts Options) (*Index, error) {
	opts = opts.normalize()
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "build local index", errors.New("corpus is empty"))
	}

	dimension := len(docs[0].Embedding)
	if dimension == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "build local index", fmt.Errorf("document %s has no embedding", docs[0].ID))
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = opts.M
	graph.EfSearch = opts.EfSearch
	graph.Ml = 0.25

	idx := &Index{
		graph:     graph,
		keys:      make([]string, 0, len(docs)),
		docs:      make(map[string]domain.Document, len(docs)),
		dimension: dimension,
	}
	for _, doc := range docs {
		if len(doc.Embedding) != dimension {
			return nil, domain.WrapError(domain.ErrConfiguration, "build local index",
				fmt.Errorf("document %s: embedding size %d, want %d", doc.ID, len(doc.Embedding), dimension))
		}
		if _, dup := idx.docs[doc.ID]; dup {
			return nil, domain.WrapError(domain.ErrConfiguration, "build local index", fmt.Errorf("duplicate document id %s", doc.ID))
		}

		vec := make([]float32, dimension)
		copy(vec, doc.Embedding)
		normalizeInPlace(vec)

		key := uint64(len(idx.keys))
		idx.keys = append(idx.keys, doc.ID)
		graph.Add(hnsw.MakeNode(key, vec))

		stored := doc
		stored.Embedding = nil
		idx.docs[doc.ID] = stored
	}

	if opts.Lexical {
		lexical, err := newLexicalIndex(docs)
		if err != nil {
			return nil, err
		}
		idx.lexical = lexical
	}
	return idx, nil
}

func (i *Index) Mode() domain.IndexMode {
	if i.lexical != nil {
		return domain.IndexModeHybridFused
	}
	return domain.IndexModePureVector
}

func (i *Index) Dimension(context.Context) (int, error) {
	return i.dimension, nil
}

func (i *Index) Len() int {
	return len(i.keys)
}

// VectorSearch returns the approximate nearest neighbours by cosine
// distance, ties broken by document id.
func (i *Index) VectorSearch(_ context.Context, vector []float32, limit int) ([]domain.VectorHit, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, nil
	}
	if len(vector) != i.dimension {
		return nil, domain.WrapError(domain.ErrConfiguration, "local vector search",
			fmt.Errorf("query dimension %d, index dimension %d", len(vector), i.dimension))
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	i.mu.RLock()
	nodes := i.graph.Search(query, limit)
	i.mu.RUnlock()

	hits := make([]domain.VectorHit, 0, len(nodes))
	for _, node := range nodes {
		if node.Key >= uint64(len(i.keys)) {
			continue
		}
		hits = append(hits, domain.VectorHit{
			DocumentID: i.keys[node.Key],
			Distance:   float64(hnsw.CosineDistance(query, node.Value)),
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].DocumentID < hits[b].DocumentID
	})
	return hits, nil
}

func (i *Index) LexicalSearch(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	if i.lexical == nil {
		return nil, nil
	}
	hits, err := i.lexical.search(ctx, query, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "local lexical search", err)
	}
	return hits, nil
}

func (i *Index) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := i.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (i *Index) GetDocuments(_ context.Context, ids []string) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := i.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (i *Index) Close() error {
	if i.lexical != nil {
		return i.lexical.close()
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
