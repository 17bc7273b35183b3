package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding and indexing metrics (client, indexing service).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
	RecordEmbeddingError(ctx context.Context, reason string)
	RecordChunks(ctx context.Context, status string, count int)
}

// embeddingMetrics implements EmbeddingMetrics.
type embeddingMetrics struct {
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
	indexChunks metric.Int64Counter
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding request duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	errs, err := meter.Int64Counter(
		MetricNameEmbeddingErrors,
		metric.WithDescription("Total embedding requests that failed, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding errors counter: %w", err)
	}

	indexChunks, err := meter.Int64Counter(
		MetricNameIndexChunks,
		metric.WithDescription("Total chunks processed by indexing, by status (success, failed)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create index chunks counter: %w", err)
	}

	return &embeddingMetrics{
		duration:    duration,
		errors:      errs,
		indexChunks: indexChunks,
	}, nil
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeStatus(status)
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) RecordEmbeddingError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedEmbeddingErrorReasons)
	e.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) RecordChunks(ctx context.Context, status string, count int) {
	if count <= 0 {
		return
	}

	status = NormalizeStatus(status)
	e.indexChunks.Add(ctx, int64(count), metric.WithAttributes(attribute.String(AttrStatus, status)))
}
