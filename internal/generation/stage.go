// Package generation turns an indexed source into a course: analysis, outline, lesson content
// and quizzes, each produced by one LLM stage and persisted as an artifact by the orchestrator.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/service"
)

// Stage names used in metrics, spans and errors.
const (
	StageAnalysis   = "analysis"
	StageStructure  = "structure"
	StageContent    = "content"
	StageAssessment = "assessment"
)

// DefaultMaxTokens caps the completion length of every stage call.
const DefaultMaxTokens = 4000

// StageOutput is the value produced by one stage together with its cost accounting.
type StageOutput[T any] struct {
	Value      T
	Model      string
	Usage      llm.Usage
	CostUSD    float64
	Duration   time.Duration
	Confidence int
	Metadata   map[string]any
}

// Retriever fetches grounding chunks for a prompt. *service.SearchService satisfies it.
type Retriever interface {
	Ground(ctx context.Context, ref models.SourceRef, query string, count, fallbackN int) (service.Grounding, error)
}

// caller is the LLM plumbing shared by the stages.
type caller struct {
	llm       llm.Completer
	pricing   Pricing
	maxTokens int
	metrics   observability.GenerationMetrics
	logger    *slog.Logger
}

// StageParams are the dependencies shared by every stage constructor.
type StageParams struct {
	LLM       llm.Completer
	Pricing   Pricing
	MaxTokens int
	Weights   *ScoreWeights
	Metrics   observability.GenerationMetrics
	Logger    *slog.Logger
}

func newCaller(p StageParams) caller {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return caller{
		llm:       p.LLM,
		pricing:   p.Pricing,
		maxTokens: maxTokens,
		metrics:   p.Metrics,
		logger:    logger,
	}
}

func (p StageParams) weights() ScoreWeights {
	if p.Weights == nil {
		return DefaultScoreWeights()
	}

	return *p.Weights
}

// completion is one finished LLM call.
type completion struct {
	text     string
	model    string
	usage    llm.Usage
	cost     float64
	duration time.Duration
}

func (c caller) complete(ctx context.Context, stage string, p prompt, temperature float64) (*completion, error) {
	start := time.Now()

	resp, err := c.llm.Complete(ctx, llm.Request{
		SystemPrompt: p.system,
		UserPrompt:   p.user,
		Temperature:  temperature,
		MaxTokens:    c.maxTokens,
		JSON:         true,
	})
	if err != nil {
		c.record(ctx, stage, "failed", time.Since(start), llm.Usage{}, 0)

		return nil, fmt.Errorf("%s completion: %w", stage, err)
	}

	out := &completion{
		text:     resp.Text,
		model:    resp.Model,
		usage:    resp.Usage,
		cost:     c.pricing.Cost(resp.Model, resp.Usage),
		duration: time.Since(start),
	}

	c.logger.DebugContext(ctx, "stage completion",
		"stage", stage,
		"model", out.model,
		"prompt_tokens", out.usage.PromptTokens,
		"completion_tokens", out.usage.CompletionTokens,
		"duration_ms", out.duration.Milliseconds(),
	)

	return out, nil
}

func (c caller) record(ctx context.Context, stage, status string, d time.Duration, usage llm.Usage, cost float64) {
	if c.metrics != nil {
		c.metrics.RecordStage(ctx, stage, status, d, usage.Total(), cost)
	}
}

// malformed records a failed stage and wraps the parse outcome.
func (c caller) malformed(ctx context.Context, stage string, comp *completion, missing []string, err error) error {
	c.record(ctx, stage, "failed", comp.duration, comp.usage, comp.cost)

	c.logger.WarnContext(ctx, "malformed llm response",
		"stage", stage, "missing_fields", missing, "error", err)

	return huberrors.NewMalformedLLMResponseError(stage, missing, err)
}

func output[T any](comp *completion, value T) *StageOutput[T] {
	return &StageOutput[T]{
		Value:    value,
		Model:    comp.model,
		Usage:    comp.usage,
		CostUSD:  comp.cost,
		Duration: comp.duration,
		Metadata: map[string]any{},
	}
}

// isCancelled reports whether err came from ctx being done.
func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// ground fetches grounding chunks and reports where they came from. A failing retriever
// leaves the prompt ungrounded rather than failing the stage.
func ground(
	ctx context.Context, logger *slog.Logger, r Retriever, ref models.SourceRef, query string, count, fallbackN int,
) (service.Grounding, string) {
	if r == nil {
		return service.Grounding{}, GroundingNone
	}

	g, err := r.Ground(ctx, ref, query, count, fallbackN)
	if err != nil {
		logger.WarnContext(ctx, "grounding unavailable",
			"source_type", ref.Type, "source_id", ref.ID, "error", err)

		return service.Grounding{}, GroundingNone
	}

	if g.Fallback {
		return g, GroundingFallback
	}

	return g, GroundingRetrieval
}
