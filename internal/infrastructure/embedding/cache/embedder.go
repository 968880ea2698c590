package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/foia-search/internal/core/ports"
)

// Store is a query-embedding cache layer.
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEmbedder serves repeated queries from store. Store failures degrade to
// a miss; they never fail the embedding call.
type CachedEmbedder struct {
	inner      ports.Embedder
	store      Store
	layer      string
	model      string
	cacheTotal *prometheus.CounterVec
}

// New wraps inner. cacheTotal takes labels "layer" and "result" and may be nil.
func New(inner ports.Embedder, store Store, layer, model string, cacheTotal *prometheus.CounterVec) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      store,
		layer:      layer,
		model:      model,
		cacheTotal: cacheTotal,
	}
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.model, text)

	vec, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("embedding_cache_get_failed", "layer", c.layer, "error", err.Error())
	}
	if ok && len(vec) > 0 {
		c.inc("hit")
		return vec, nil
	}
	c.inc("miss")

	vec, err = c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := c.store.Set(ctx, key, vec); err != nil {
		slog.Warn("embedding_cache_set_failed", "layer", c.layer, "error", err.Error())
	}
	return vec, nil
}

func (c *CachedEmbedder) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(c.layer, result).Inc()
	}
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(text + "\x00" + model))
	return hex.EncodeToString(h[:])
}
