package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type embedderFake struct {
	calls int
	err   error
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("redis down")
}
func (brokenStore) Set(context.Context, string, []float32) error { return errors.New("redis down") }

func TestCachedEmbedderServesRepeatedQueries(t *testing.T) {
	inner := &embedderFake{}
	store, err := NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore() error = %v", err)
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cache_total"}, []string{"layer", "result"})
	emb := New(inner, store, "memory", "bge", counter)

	for i := 0; i < 3; i++ {
		vec, err := emb.EmbedQuery(context.Background(), "lead")
		if err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
		if vec[0] != 4 {
			t.Fatalf("unexpected vector: %v", vec)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one inner call, got %d", inner.calls)
	}
	if hits := testutil.ToFloat64(counter.WithLabelValues("memory", "hit")); hits != 2 {
		t.Fatalf("expected 2 hits, got %v", hits)
	}
	if misses := testutil.ToFloat64(counter.WithLabelValues("memory", "miss")); misses != 1 {
		t.Fatalf("expected 1 miss, got %v", misses)
	}
}

func TestCachedEmbedderKeysByModel(t *testing.T) {
	inner := &embedderFake{}
	store, _ := NewLRUStore(4)
	_, _ = New(inner, store, "memory", "model-a", nil).EmbedQuery(context.Background(), "q")
	_, _ = New(inner, store, "memory", "model-b", nil).EmbedQuery(context.Background(), "q")
	if inner.calls != 2 || store.Len() != 2 {
		t.Fatalf("expected separate entries per model, calls=%d len=%d", inner.calls, store.Len())
	}
}

func TestCachedEmbedderDegradesOnStoreFailure(t *testing.T) {
	inner := &embedderFake{}
	vec, err := New(inner, brokenStore{}, "redis", "m", nil).EmbedQuery(context.Background(), "abc")
	if err != nil {
		t.Fatalf("store failure must not fail embedding: %v", err)
	}
	if len(vec) != 2 || inner.calls != 1 {
		t.Fatalf("unexpected result: %v calls=%d", vec, inner.calls)
	}
}

func TestCachedEmbedderPropagatesInnerError(t *testing.T) {
	innerErr := errors.New("ollama down")
	store, _ := NewLRUStore(1)
	_, err := New(&embedderFake{err: innerErr}, store, "memory", "m", nil).EmbedQuery(context.Background(), "q")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected inner error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed embeddings must not be cached")
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector() error = %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("mismatch at %d: %v vs %v", i, in, out)
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated data")
	}
}
