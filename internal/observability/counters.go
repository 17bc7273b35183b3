package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIMetrics records HTTP-level counters that otelhttp does not cover.
type APIMetrics interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// CacheMetrics records lookups against the query embedding LRU and the semantic cache.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

func newCounter(meter metric.Meter, name, desc string) (metric.Int64Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	return c, nil
}

type apiMetrics struct {
	bodyTooLarge metric.Int64Counter
}

// NewAPIMetrics returns (nil, nil) for a nil meter.
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	c, err := newCounter(meter, MetricNameRequestBodyTooLarge,
		"Requests rejected with 413 because the body exceeded MAX_REQUEST_BODY_BYTES.")
	if err != nil {
		return nil, err
	}

	return &apiMetrics{bodyTooLarge: c}, nil
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.bodyTooLarge.Add(ctx, 1)
}

type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewCacheMetrics returns (nil, nil) for a nil meter. The cache label is query_embedding or semantic.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	hits, err := newCounter(meter, MetricNameCacheHits, "Cache lookups answered from the cache, by cache.")
	if err != nil {
		return nil, err
	}

	misses, err := newCounter(meter, MetricNameCacheMisses, "Cache lookups that fell through to the provider or generator, by cache.")
	if err != nil {
		return nil, err
	}

	return &cacheMetrics{hits: hits, misses: misses}, nil
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCache, NormalizeCacheName(cacheName))))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCache, NormalizeCacheName(cacheName))))
}
