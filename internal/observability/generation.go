package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GenerationMetrics records per-stage latency, tokens and cost, batch node outcomes and queue depth.
type GenerationMetrics interface {
	RecordStage(ctx context.Context, stage, status string, duration time.Duration, tokens int, costUSD float64)
	RecordBatchNode(ctx context.Context, status string)
	SetRiverQueueDepth(depth int)
}

// generationMetrics implements GenerationMetrics.
type generationMetrics struct {
	stageDuration   metric.Float64Histogram
	tokens          metric.Int64Counter
	cost            metric.Float64Counter
	batchNodes      metric.Int64Counter
	riverQueueDepth atomic.Int64
	riverQueueGauge metric.Float64ObservableGauge
}

// NewGenerationMetrics creates GenerationMetrics and registers the queue gauge.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewGenerationMetrics(meter metric.Meter) (GenerationMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	stageDuration, err := meter.Float64Histogram(
		MetricNameStageDuration,
		metric.WithDescription("Pipeline stage duration including the LLM call (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	tokens, err := meter.Int64Counter(
		MetricNameLLMTokens,
		metric.WithDescription("Total LLM tokens (prompt + completion) per stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm tokens counter: %w", err)
	}

	cost, err := meter.Float64Counter(
		MetricNameGenerationCost,
		metric.WithDescription("Total estimated generation cost in USD per stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation cost counter: %w", err)
	}

	batchNodes, err := meter.Int64Counter(
		MetricNameBatchNodes,
		metric.WithDescription("Total lesson nodes processed by the batch runner, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batch nodes counter: %w", err)
	}

	gm := &generationMetrics{
		stageDuration: stageDuration,
		tokens:        tokens,
		cost:          cost,
		batchNodes:    batchNodes,
	}

	riverQueueGauge, err := meter.Float64ObservableGauge(
		MetricNameRiverQueueDepth,
		metric.WithDescription("Current River job queue depth (available/retryable/scheduled)"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(float64(gm.riverQueueDepth.Load()))

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create river queue depth gauge: %w", err)
	}

	gm.riverQueueGauge = riverQueueGauge

	return gm, nil
}

func (g *generationMetrics) RecordStage(ctx context.Context, stage, status string, duration time.Duration, tokens int, costUSD float64) {
	stageAttr := attribute.String(AttrStage, NormalizeStage(stage))

	g.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		stageAttr,
		attribute.String(AttrStatus, NormalizeStatus(status)),
	))

	if tokens > 0 {
		g.tokens.Add(ctx, int64(tokens), metric.WithAttributes(stageAttr))
	}

	if costUSD > 0 {
		g.cost.Add(ctx, costUSD, metric.WithAttributes(stageAttr))
	}
}

func (g *generationMetrics) RecordBatchNode(ctx context.Context, status string) {
	g.batchNodes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, NormalizeStatus(status))))
}

func (g *generationMetrics) SetRiverQueueDepth(depth int) {
	g.riverQueueDepth.Store(int64(depth))
}
