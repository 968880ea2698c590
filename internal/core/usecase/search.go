package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
)

// DefaultQueryPrompt is prepended to the query before embedding only.
const DefaultQueryPrompt = "Represent this sentence for searching relevant passages: "

type SearchOptions struct {
	QueryPrompt    string
	DefaultResults int
	MaxResults     int
	// DedupThreshold of 0 selects the default for the index mode.
	DedupThreshold int
}

func (o SearchOptions) normalize(mode domain.IndexMode) SearchOptions {
	out := o
	if out.DefaultResults <= 0 {
		out.DefaultResults = 10
	}
	if out.MaxResults <= 0 {
		out.MaxResults = 100
	}
	if out.DefaultResults > out.MaxResults {
		out.DefaultResults = out.MaxResults
	}
	if out.DedupThreshold <= 0 {
		out.DedupThreshold = DefaultDedupThreshold
		if mode == domain.IndexModeHybridFused {
			out.DedupThreshold = HybridDedupThreshold
		}
	}
	return out
}

type SearchUseCase struct {
	embedder  ports.Embedder
	index     ports.DocumentIndex
	ranker    *FusionRanker
	assembler *Assembler
	publisher ports.SearchEventPublisher
	opts      SearchOptions
}

// NewSearchUseCase wires the search pipeline. publisher may be nil.
func NewSearchUseCase(
	embedder ports.Embedder,
	index ports.DocumentIndex,
	ranker *FusionRanker,
	assembler *Assembler,
	publisher ports.SearchEventPublisher,
	opts SearchOptions,
) *SearchUseCase {
	return &SearchUseCase{
		embedder:  embedder,
		index:     index,
		ranker:    ranker,
		assembler: assembler,
		publisher: publisher,
		opts:      opts.normalize(index.Mode()),
	}
}

func (uc *SearchUseCase) Options() SearchOptions {
	return uc.opts
}

// Search embeds the query, fuses vector and lexical hits, drops near-duplicate
// bodies and returns at most limit results. A blank query returns an empty
// response without touching the embedder or the index.
func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int) (*domain.SearchResponse, error) {
	started := time.Now()
	limit = uc.clampLimit(limit)
	resp := &domain.SearchResponse{
		Query:        query,
		Results:      []domain.Result{},
		RequestedTop: limit,
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return resp, nil
	}
	resp.Mode = uc.index.Mode()

	vector, err := uc.embedder.EmbedQuery(ctx, uc.opts.QueryPrompt+query)
	if err != nil {
		return nil, retrievalError("embed query", err)
	}

	fused, err := uc.ranker.Rank(ctx, query, vector)
	if err != nil {
		return nil, err
	}
	resp.Candidates = len(fused)

	if len(fused) > 0 {
		if err := uc.fill(ctx, resp, fused, limit); err != nil {
			return nil, err
		}
	}

	duration := time.Since(started)
	slog.Info("search_completed",
		"mode", string(resp.Mode),
		"limit", limit,
		"candidates", resp.Candidates,
		"duplicates", resp.Duplicates,
		"unresolved", resp.Unresolved,
		"results", len(resp.Results),
		"duration_ms", duration.Milliseconds(),
	)
	uc.publish(ctx, query, limit, resp, duration)
	return resp, nil
}

func (uc *SearchUseCase) fill(ctx context.Context, resp *domain.SearchResponse, fused []domain.FusedResult, limit int) error {
	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.DocumentID)
	}
	docs, err := uc.index.GetDocuments(ctx, ids)
	if err != nil {
		return retrievalError("fetch documents", err)
	}
	byID := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	type candidate struct {
		doc   domain.Document
		score float64
	}
	ordered := make([]candidate, 0, len(fused))
	texts := make([]string, 0, len(fused))
	for _, f := range fused {
		doc, ok := byID[f.DocumentID]
		if !ok {
			resp.Unresolved++
			continue
		}
		ordered = append(ordered, candidate{doc: doc, score: f.Score})
		texts = append(texts, doc.Content)
	}

	kept := Deduplicate(texts, uc.opts.DedupThreshold)
	resp.Duplicates = len(ordered) - len(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}
	for _, idx := range kept {
		c := ordered[idx]
		resp.Results = append(resp.Results, uc.assembler.Assemble(c.doc, len(resp.Results)+1, c.score))
	}
	return nil
}

func (uc *SearchUseCase) clampLimit(limit int) int {
	if limit <= 0 {
		return uc.opts.DefaultResults
	}
	if limit > uc.opts.MaxResults {
		return uc.opts.MaxResults
	}
	return limit
}

func (uc *SearchUseCase) publish(ctx context.Context, query string, limit int, resp *domain.SearchResponse, duration time.Duration) {
	if uc.publisher == nil {
		return
	}
	event := domain.SearchEvent{
		ID:         uuid.NewString(),
		Query:      query,
		Limit:      limit,
		ResultIDs:  make([]string, 0, len(resp.Results)),
		Candidates: resp.Candidates,
		Duplicates: resp.Duplicates,
		DurationMS: float64(duration.Microseconds()) / 1000,
		OccurredAt: time.Now().UTC(),
	}
	for _, r := range resp.Results {
		event.ResultIDs = append(event.ResultIDs, r.ID)
	}
	if err := uc.publisher.PublishSearchExecuted(ctx, event); err != nil {
		slog.Warn("search_event_publish_failed", "event_id", event.ID, "error", err.Error())
	}
}
