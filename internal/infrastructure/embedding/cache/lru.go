package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultLRUSize = 1000

// LRUStore keeps query embeddings in process memory.
type LRUStore struct {
	cache *lru.Cache[string, []float32]
}

func NewLRUStore(size int) (*LRUStore, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Get(_ context.Context, key string) ([]float32, bool, error) {
	vec, ok := s.cache.Get(key)
	return vec, ok, nil
}

func (s *LRUStore) Set(_ context.Context, key string, vec []float32) error {
	s.cache.Add(key, vec)
	return nil
}

func (s *LRUStore) Len() int {
	return s.cache.Len()
}
