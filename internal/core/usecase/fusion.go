package usecase

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
)

type FusionOptions struct {
	VectorDepth  int
	LexicalDepth int
	KVector      int
	KLexical     int
	OutputCap    int
}

func DefaultFusionOptions() FusionOptions {
	return FusionOptions{
		VectorDepth:  200,
		LexicalDepth: 150,
		KVector:      70,
		KLexical:     30,
		OutputCap:    100,
	}
}

func (o FusionOptions) normalize() FusionOptions {
	out := o
	def := DefaultFusionOptions()
	if out.VectorDepth <= 0 {
		out.VectorDepth = def.VectorDepth
	}
	if out.LexicalDepth <= 0 {
		out.LexicalDepth = def.LexicalDepth
	}
	if out.KVector <= 0 {
		out.KVector = def.KVector
	}
	if out.KLexical <= 0 {
		out.KLexical = def.KLexical
	}
	if out.OutputCap <= 0 {
		out.OutputCap = def.OutputCap
	}
	return out
}

// FusionRanker runs the vector and lexical legs against the index and merges
// them with reciprocal rank fusion.
type FusionRanker struct {
	index ports.DocumentIndex
	opts  FusionOptions
}

func NewFusionRanker(index ports.DocumentIndex, opts FusionOptions) *FusionRanker {
	return &FusionRanker{
		index: index,
		opts:  opts.normalize(),
	}
}

func (r *FusionRanker) Options() FusionOptions {
	return r.opts
}

// Rank returns at most OutputCap fused results, highest score first. Either
// leg failing fails the whole call; no partial fusion is returned.
func (r *FusionRanker) Rank(ctx context.Context, query string, vector []float32) ([]domain.FusedResult, error) {
	var (
		vectorHits  []domain.VectorHit
		lexicalHits []domain.LexicalHit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.index.VectorSearch(gctx, vector, r.opts.VectorDepth)
		if err != nil {
			return retrievalError("vector search", err)
		}
		vectorHits = hits
		return nil
	})
	if r.index.Mode() == domain.IndexModeHybridFused {
		g.Go(func() error {
			hits, err := r.index.LexicalSearch(gctx, query, r.opts.LexicalDepth)
			if err != nil {
				return retrievalError("lexical search", err)
			}
			lexicalHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuseRRF(vectorHits, lexicalHits, r.opts), nil
}

// fuseRRF scores every document as 1/(kVector+rank) + 1/(kLexical+rank) over
// the lists it appears in. Ranks are 1-based; repeated ids keep their best rank.
func fuseRRF(vector []domain.VectorHit, lexical []domain.LexicalHit, opts FusionOptions) []domain.FusedResult {
	opts = opts.normalize()
	if len(vector) > opts.VectorDepth {
		vector = vector[:opts.VectorDepth]
	}
	if len(lexical) > opts.LexicalDepth {
		lexical = lexical[:opts.LexicalDepth]
	}

	acc := make(map[string]*domain.FusedResult, len(vector)+len(lexical))
	candidate := func(id string) *domain.FusedResult {
		c, ok := acc[id]
		if !ok {
			c = &domain.FusedResult{DocumentID: id}
			acc[id] = c
		}
		return c
	}

	for i, hit := range vector {
		c := candidate(hit.DocumentID)
		if c.VectorRank != 0 {
			continue
		}
		c.VectorRank = i + 1
		c.Score += 1.0 / float64(opts.KVector+c.VectorRank)
	}

	rank := 0
	for _, hit := range lexical {
		// Zero relevance means no term overlap; such rows are not ranked at all.
		if hit.Relevance <= 0 {
			continue
		}
		rank++
		c := candidate(hit.DocumentID)
		if c.LexicalRank != 0 {
			continue
		}
		c.LexicalRank = rank
		c.Score += 1.0 / float64(opts.KLexical+c.LexicalRank)
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, c := range acc {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	if len(out) > opts.OutputCap {
		out = out[:opts.OutputCap]
	}
	return out
}

func retrievalError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrRetrievalUnavailable, operation, err)
}
