package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/ratelimit"
	"github.com/edulane/coursegen/internal/repository"
)

// Batch node outcomes, also used as metric status labels.
const (
	NodeSuccess = "success"
	NodeFailed  = "failed"
	NodeReused  = "reused"
)

// LessonWriter generates the content of one outline node. *ContentStage satisfies it.
type LessonWriter interface {
	GenerateContent(
		ctx context.Context, ref models.SourceRef, node models.OutlineNode, cfg ContentConfig,
	) (*StageOutput[models.LessonContent], error)
}

// SemanticCache finds lessons generated earlier for an equivalent request.
// *service.SemanticCacheService satisfies it.
type SemanticCache interface {
	Lookup(ctx context.Context, text string, category models.CacheCategory) (*models.CacheMatch, error)
	Store(
		ctx context.Context, text string, category models.CacheCategory, artifactRef uuid.UUID,
	) (*models.SemanticCacheEntry, error)
}

// BatchConfig is what every node of one batch shares.
type BatchConfig struct {
	RunID    uuid.UUID
	Source   models.SourceRef
	ParentID *uuid.UUID
	Content  ContentConfig
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	Index      int       `json:"index"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	ArtifactID uuid.UUID `json:"artifact_id"`
	TokensUsed int       `json:"tokens_used"`
	CostUSD    float64   `json:"cost_usd"`
	Error      string    `json:"error,omitempty"`
}

// NodeFailure records why a node produced no artifact.
type NodeFailure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// BatchSummary aggregates a batch. Reused nodes count as successes and are also counted in ReusedCount.
type BatchSummary struct {
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	ReusedCount  int           `json:"reused_count"`
	TotalCost    float64       `json:"total_cost_usd"`
	TotalTokens  int           `json:"total_tokens"`
	TotalTimeMs  int64         `json:"total_time_ms"`
	Failures     []NodeFailure `json:"failures"`
	Nodes        []NodeResult  `json:"nodes"`
}

// ArtifactIDs returns the artifacts produced by the batch in node order.
func (s *BatchSummary) ArtifactIDs() []uuid.UUID {
	ids := []uuid.UUID{}

	for _, n := range s.Nodes {
		if n.ArtifactID != uuid.Nil {
			ids = append(ids, n.ArtifactID)
		}
	}

	return ids
}

// BatchProgress is reported after every node.
type BatchProgress struct {
	Completed int
	Total     int
	Node      NodeResult
}

// ProgressFunc receives batch progress. It runs on the batch goroutine.
type ProgressFunc func(BatchProgress)

// BatchRunner generates lessons one node at a time, spacing LLM calls with a limiter.
// A failing node is recorded and the batch moves on.
type BatchRunner struct {
	writer    LessonWriter
	artifacts repository.ArtifactStore
	cache     SemanticCache
	limiter   ratelimit.Waiter
	metrics   observability.GenerationMetrics
	logger    *slog.Logger
}

// BatchRunnerParams configures BatchRunner. Cache and Metrics are optional.
type BatchRunnerParams struct {
	Writer    LessonWriter
	Artifacts repository.ArtifactStore
	Cache     SemanticCache
	Limiter   ratelimit.Waiter
	Metrics   observability.GenerationMetrics
	Logger    *slog.Logger
}

// NewBatchRunner creates a BatchRunner.
func NewBatchRunner(p BatchRunnerParams) *BatchRunner {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := p.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited
	}

	return &BatchRunner{
		writer:    p.Writer,
		artifacts: p.Artifacts,
		cache:     p.Cache,
		limiter:   limiter,
		metrics:   p.Metrics,
		logger:    logger,
	}
}

// Run generates a lesson for every node in order. When ctx is done the loop stops and the
// remaining nodes are marked failed with the context error.
func (b *BatchRunner) Run(
	ctx context.Context, nodes []models.OutlineNode, cfg BatchConfig, onProgress ProgressFunc,
) BatchSummary {
	start := time.Now()
	cfg.Content = cfg.Content.WithDefaults()

	summary := BatchSummary{Failures: []NodeFailure{}, Nodes: []NodeResult{}}

	for i, node := range nodes {
		var result NodeResult

		if err := ctx.Err(); err != nil {
			result = NodeResult{Index: i, Title: node.Title, Status: NodeFailed, Error: err.Error()}
		} else {
			result = b.runNode(ctx, i, node, cfg)
		}

		summary.add(result)

		if b.metrics != nil {
			b.metrics.RecordBatchNode(ctx, result.Status)
		}

		if onProgress != nil {
			onProgress(BatchProgress{Completed: i + 1, Total: len(nodes), Node: result})
		}
	}

	summary.TotalTimeMs = time.Since(start).Milliseconds()

	b.logger.InfoContext(ctx, "batch finished",
		"source_id", cfg.Source.ID,
		"success", summary.SuccessCount,
		"failed", summary.FailureCount,
		"reused", summary.ReusedCount,
		"total_tokens", summary.TotalTokens,
		"total_cost_usd", summary.TotalCost,
	)

	return summary
}

func (s *BatchSummary) add(r NodeResult) {
	s.Nodes = append(s.Nodes, r)
	s.TotalTokens += r.TokensUsed
	s.TotalCost += r.CostUSD

	switch r.Status {
	case NodeReused:
		s.ReusedCount++
		s.SuccessCount++
	case NodeSuccess:
		s.SuccessCount++
	default:
		s.FailureCount++
		s.Failures = append(s.Failures, NodeFailure{Index: r.Index, Title: r.Title, Error: r.Error})
	}
}

func (b *BatchRunner) runNode(ctx context.Context, i int, node models.OutlineNode, cfg BatchConfig) NodeResult {
	result := NodeResult{Index: i, Title: node.Title}
	key, category := lessonCacheKey(node, cfg.Source, cfg.Content)

	if id, ok := b.reuse(ctx, i, node, cfg, key, category); ok {
		result.Status = NodeReused
		result.ArtifactID = id

		return result
	}

	fail := func(err error) NodeResult {
		b.logger.WarnContext(ctx, "lesson generation failed",
			"source_id", cfg.Source.ID, "node_index", i, "title", node.Title, "error", err)

		result.Status = NodeFailed
		result.Error = err.Error()

		return result
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("batch pacing: %w", err))
	}

	out, err := b.writer.GenerateContent(ctx, cfg.Source, node, cfg.Content)
	if err != nil {
		return fail(err)
	}

	result.TokensUsed = out.Usage.Total()
	result.CostUSD = out.CostUSD

	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}

	out.Metadata["outline_index"] = i
	out.Metadata["learning_objectives"] = node.LearningObjectives

	artifact, err := newArtifact(cfg.RunID, lessonPart(i), cfg.ParentID, models.ContentTypeLesson, cfg.Source, out)
	if err != nil {
		return fail(err)
	}

	if err := b.artifacts.Save(ctx, artifact); err != nil {
		return fail(fmt.Errorf("save lesson: %w", err))
	}

	if b.cache != nil {
		if _, err := b.cache.Store(ctx, key, category, artifact.ID); err != nil {
			b.logger.WarnContext(ctx, "semantic cache store failed", "artifact_id", artifact.ID, "error", err)
		}
	}

	result.Status = NodeSuccess
	result.ArtifactID = artifact.ID

	return result
}

// reuse copies a cached equivalent lesson into this run. Any cache problem is a miss.
func (b *BatchRunner) reuse(
	ctx context.Context, i int, node models.OutlineNode, cfg BatchConfig, key string, category models.CacheCategory,
) (uuid.UUID, bool) {
	if b.cache == nil {
		return uuid.Nil, false
	}

	match, err := b.cache.Lookup(ctx, key, category)
	if err != nil {
		b.logger.WarnContext(ctx, "semantic cache lookup failed", "title", node.Title, "error", err)

		return uuid.Nil, false
	}

	if match == nil {
		return uuid.Nil, false
	}

	prev, err := b.artifacts.GetByID(ctx, match.Entry.ArtifactRef)
	if err != nil {
		if !errors.Is(err, huberrors.ErrNotFound) {
			b.logger.WarnContext(ctx, "cached artifact unavailable", "artifact_id", match.Entry.ArtifactRef, "error", err)
		}

		return uuid.Nil, false
	}

	id := artifactID(cfg.RunID, lessonPart(i))
	if id != uuid.Nil && id == prev.ID {
		// Saved by an earlier attempt of this run.
		return prev.ID, true
	}

	artifact := &models.Artifact{
		ID:              id,
		RunID:           cfg.RunID,
		ParentID:        cfg.ParentID,
		ContentType:     models.ContentTypeLesson,
		SourceType:      cfg.Source.Type,
		SourceID:        cfg.Source.ID,
		SourceTitle:     cfg.Source.Title,
		GeneratedData:   prev.GeneratedData,
		ModelUsed:       prev.ModelUsed,
		ConfidenceScore: prev.ConfidenceScore,
		Metadata: map[string]any{
			"reused_from":         prev.ID.String(),
			"cache_score":         match.Score,
			"cache_exact":         match.Exact,
			"outline_index":       i,
			"learning_objectives": node.LearningObjectives,
		},
	}

	if err := b.artifacts.Save(ctx, artifact); err != nil {
		b.logger.WarnContext(ctx, "save reused lesson failed", "reused_from", prev.ID, "error", err)

		return uuid.Nil, false
	}

	b.logger.InfoContext(ctx, "lesson reused from semantic cache",
		"title", node.Title, "reused_from", prev.ID, "score", match.Score)

	return artifact.ID, true
}

// lessonCacheKey is the semantic cache input and category of a lesson request. Lessons are only
// shared between requests on the same source with the same shape, so the category carries the
// source and every content option.
func lessonCacheKey(node models.OutlineNode, ref models.SourceRef, cfg ContentConfig) (string, models.CacheCategory) {
	text := node.Title + "\n" + strings.Join(node.LearningObjectives, "\n")

	return text, models.CacheCategory{
		ContentType: string(models.ContentTypeLesson),
		Audience:    cfg.TargetAudience,
		Variant: strings.Join([]string{
			ref.Type + "/" + ref.ID,
			cfg.Tone,
			strconv.Itoa(cfg.TargetWords),
			"examples=" + strconv.FormatBool(cfg.IncludeExamples),
			"exercises=" + strconv.FormatBool(cfg.IncludeExercises),
		}, ":"),
	}
}

func lessonPart(index int) string {
	return "lesson:" + strconv.Itoa(index)
}

// artifactID is the stable ID of one part of a run, so a retried run overwrites what an
// earlier attempt saved. Without a run ID the store assigns a fresh ID.
func artifactID(runID uuid.UUID, part string) uuid.UUID {
	if runID == uuid.Nil {
		return uuid.Nil
	}

	return uuid.NewSHA1(runID, []byte(part))
}

// newArtifact builds the artifact for part of a run from a stage output.
func newArtifact[T any](
	runID uuid.UUID, part string, parentID *uuid.UUID, kind models.ContentType, ref models.SourceRef, out *StageOutput[T],
) (*models.Artifact, error) {
	data, err := json.Marshal(out.Value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	return &models.Artifact{
		ID:               artifactID(runID, part),
		RunID:            runID,
		ParentID:         parentID,
		ContentType:      kind,
		SourceType:       ref.Type,
		SourceID:         ref.ID,
		SourceTitle:      ref.Title,
		GeneratedData:    data,
		ModelUsed:        out.Model,
		TokensUsed:       out.Usage.Total(),
		CostUSD:          out.CostUSD,
		GenerationTimeMs: out.Duration.Milliseconds(),
		ConfidenceScore:  out.Confidence,
		Metadata:         out.Metadata,
	}, nil
}
