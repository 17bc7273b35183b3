package service

import (
	"context"
	"strings"
	"time"

	"github.com/edulane/coursegen/internal/embeddings"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/pkg/cache"
)

const queryEmbeddingCacheName = "query_embedding"

// QueryEmbedder embeds short query strings through an LRU so repeated retrieval queries
// (and semantic cache probes) cost one provider call.
type QueryEmbedder struct {
	embedder embeddings.Embedder
	cache    *cache.Loader[[]float32]
	metrics  observability.CacheMetrics
}

// NewQueryEmbedder wraps embedder with a cache of maxEntries vectors kept for ttl.
// maxEntries <= 0 disables caching. metrics may be nil.
func NewQueryEmbedder(
	embedder embeddings.Embedder, maxEntries int, ttl time.Duration, metrics observability.CacheMetrics,
) (*QueryEmbedder, error) {
	q := &QueryEmbedder{embedder: embedder, metrics: metrics}

	if maxEntries > 0 {
		c, err := cache.NewLoader[[]float32](maxEntries, ttl, embedder.Embed)
		if err != nil {
			return nil, err
		}

		c.Normalize = normalizeQuery
		q.cache = c
	}

	return q, nil
}

// Embed returns the vector for text, from cache when possible.
func (q *QueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if q.cache == nil {
		return q.embedder.Embed(ctx, normalizeQuery(text))
	}

	vec, hit, err := q.cache.Get(ctx, text)
	if err != nil {
		return nil, err
	}

	if q.metrics != nil {
		if hit {
			q.metrics.RecordHit(ctx, queryEmbeddingCacheName)
		} else {
			q.metrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}
	}

	return vec, nil
}

func normalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
