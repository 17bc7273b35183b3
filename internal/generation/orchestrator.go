package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/ratelimit"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/source"
)

// RunState is the lifecycle state of a generation run.
type RunState string

// Run states. Failed can be entered from any other state.
const (
	RunPending           RunState = "pending"
	RunAnalyzing         RunState = "analyzing"
	RunStructuring       RunState = "structuring"
	RunGeneratingContent RunState = "generating_content"
	RunSaved             RunState = "saved"
	RunFailed            RunState = "failed"
)

// RunRequest asks for one course to be generated from a source.
type RunRequest struct {
	RunID           uuid.UUID       `json:"run_id"`
	SourceType      string          `json:"source_type"`
	SourceID        string          `json:"source_id"`
	Structure       StructureConfig `json:"structure"`
	Content         ContentConfig   `json:"content"`
	GenerateQuizzes bool            `json:"generate_quizzes"`
	Quiz            QuizConfig      `json:"quiz"`

	OnStateChange func(RunState) `json:"-"`
	OnProgress    ProgressFunc   `json:"-"`
}

// Totals is the running cost of a run.
type Totals struct {
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
	TimeMs  int64   `json:"time_ms"`
}

func (t *Totals) add(tokens int, cost float64) {
	t.Tokens += tokens
	t.CostUSD += cost
}

// RunResult reports what a run produced. Artifacts listed here stay persisted even when State is failed.
type RunResult struct {
	RunID        uuid.UUID     `json:"run_id"`
	State        RunState      `json:"state"`
	AnalysisID   *uuid.UUID    `json:"analysis_id,omitempty"`
	CourseID     *uuid.UUID    `json:"course_id,omitempty"`
	LessonIDs    []uuid.UUID   `json:"lesson_ids"`
	QuizIDs      []uuid.UUID   `json:"quiz_ids"`
	Batch        *BatchSummary `json:"batch,omitempty"`
	QuizFailures []NodeFailure `json:"quiz_failures,omitempty"`
	Totals       Totals        `json:"totals"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
}

// Orchestrator runs the stages of one course in order and persists each output before moving on.
type Orchestrator struct {
	sources    source.Loader
	artifacts  repository.ArtifactStore
	analysis   *AnalysisStage
	structure  *StructureStage
	batch      *BatchRunner
	assessment *AssessmentStage
	quizPacer  ratelimit.Waiter
	logger     *slog.Logger
}

// OrchestratorParams configures Orchestrator. Assessment is only needed for runs that request quizzes.
type OrchestratorParams struct {
	Sources    source.Loader
	Artifacts  repository.ArtifactStore
	Analysis   *AnalysisStage
	Structure  *StructureStage
	Batch      *BatchRunner
	Assessment *AssessmentStage
	QuizPacer  ratelimit.Waiter
	Logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pacer := p.QuizPacer
	if pacer == nil {
		pacer = ratelimit.Unlimited
	}

	return &Orchestrator{
		sources:    p.Sources,
		artifacts:  p.Artifacts,
		analysis:   p.Analysis,
		structure:  p.Structure,
		batch:      p.Batch,
		assessment: p.Assessment,
		quizPacer:  pacer,
		logger:     logger,
	}
}

type run struct {
	req    RunRequest
	res    *RunResult
	start  time.Time
	logger *slog.Logger
}

func (r *run) transition(ctx context.Context, state RunState) {
	r.res.State = state
	r.logger.InfoContext(ctx, "run state changed", "state", string(state))

	if r.req.OnStateChange != nil {
		r.req.OnStateChange(state)
	}
}

func (r *run) fail(ctx context.Context, err error) (*RunResult, error) {
	r.res.Err = err
	r.res.Error = err.Error()
	r.res.Totals.TimeMs = time.Since(r.start).Milliseconds()
	r.transition(ctx, RunFailed)

	return r.res, err
}

// Run generates a course. On failure it returns the partial result together with the error;
// artifacts saved before the failure are not removed. Artifact IDs derive from the run ID, so
// running the same RunID again overwrites the earlier artifacts instead of adding new ones.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (result *RunResult, err error) {
	if req.RunID == uuid.Nil {
		req.RunID = uuid.Must(uuid.NewV7())
	}

	ctx = observability.WithRunID(ctx, req.RunID.String())

	ctx, span := observability.StartSpan(ctx, "generation.run",
		attribute.String("run_id", req.RunID.String()),
		attribute.String("source_type", req.SourceType),
		attribute.String("source_id", req.SourceID),
	)
	defer func() { observability.EndSpan(span, err) }()

	r := &run{
		req:   req,
		start: time.Now(),
		res: &RunResult{
			RunID:     req.RunID,
			LessonIDs: []uuid.UUID{},
			QuizIDs:   []uuid.UUID{},
		},
		logger: o.logger.With("source_id", req.SourceID),
	}

	r.transition(ctx, RunPending)
	r.transition(ctx, RunAnalyzing)

	src, err := o.sources.Load(ctx, req.SourceType, req.SourceID)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("load source: %w", err))
	}

	ref := src.Ref()

	analysis, err := o.analysis.AnalyzeSource(ctx, src)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("analysis: %w", err))
	}

	analysisID, err := save(ctx, o.artifacts, req.RunID, "analysis", nil, models.ContentTypeAnalysis, ref, analysis)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.res.AnalysisID = &analysisID
	r.res.Totals.add(analysis.Usage.Total(), analysis.CostUSD)

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}

	r.transition(ctx, RunStructuring)

	outline, err := o.structure.GenerateStructure(ctx, src, analysis.Value, req.Structure)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("structure: %w", err))
	}

	outline.Metadata["analysis_id"] = analysisID.String()

	courseID, err := save(ctx, o.artifacts, req.RunID, "course", &analysisID, models.ContentTypeCourse, ref, outline)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.res.CourseID = &courseID
	r.res.Totals.add(outline.Usage.Total(), outline.CostUSD)

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}

	r.transition(ctx, RunGeneratingContent)

	content := req.Content
	if content.TargetAudience == "" {
		content.TargetAudience = analysis.Value.Audience
	}

	summary := o.batch.Run(ctx, outline.Value.Nodes(), BatchConfig{
		RunID:    req.RunID,
		Source:   ref,
		ParentID: &courseID,
		Content:  content,
	}, req.OnProgress)

	r.res.Batch = &summary
	r.res.LessonIDs = summary.ArtifactIDs()
	r.res.Totals.add(summary.TotalTokens, summary.TotalCost)

	if req.GenerateQuizzes && o.assessment != nil && ctx.Err() == nil {
		o.generateQuizzes(ctx, r, ref, courseID, outline.Value, summary)
	}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}

	r.res.Totals.TimeMs = time.Since(r.start).Milliseconds()
	r.transition(ctx, RunSaved)

	r.logger.InfoContext(ctx, "run saved",
		"lessons", len(r.res.LessonIDs),
		"quizzes", len(r.res.QuizIDs),
		"lesson_failures", summary.FailureCount,
		"total_tokens", r.res.Totals.Tokens,
		"total_cost_usd", r.res.Totals.CostUSD,
	)

	return r.res, nil
}

func save[T any](
	ctx context.Context, store repository.ArtifactStore, runID uuid.UUID, part string, parentID *uuid.UUID,
	kind models.ContentType, ref models.SourceRef, out *StageOutput[T],
) (uuid.UUID, error) {
	artifact, err := newArtifact(runID, part, parentID, kind, ref, out)
	if err != nil {
		return uuid.Nil, err
	}

	if err := store.Save(ctx, artifact); err != nil {
		return uuid.Nil, fmt.Errorf("save %s: %w", kind, err)
	}

	return artifact.ID, nil
}

// generateQuizzes writes one quiz per module from the lessons generated for it.
// A failing module is recorded and does not fail the run.
func (o *Orchestrator) generateQuizzes(
	ctx context.Context, r *run, ref models.SourceRef, courseID uuid.UUID, outline models.Outline, summary BatchSummary,
) {
	lessonsByIndex := make(map[int]uuid.UUID, len(summary.Nodes))
	for _, n := range summary.Nodes {
		if n.ArtifactID != uuid.Nil {
			lessonsByIndex[n.Index] = n.ArtifactID
		}
	}

	nodeIndex := 0

	for mi, module := range outline.Modules {
		first := nodeIndex
		nodeIndex += len(module.Lessons)

		if ctx.Err() != nil {
			return
		}

		fail := func(err error) {
			r.logger.WarnContext(ctx, "quiz generation failed", "module_index", mi, "error", err)
			r.res.QuizFailures = append(r.res.QuizFailures, NodeFailure{Index: mi, Title: module.Title, Error: err.Error()})
		}

		cfg := r.req.Quiz
		cfg.ContextText = o.moduleMaterial(ctx, module, first, lessonsByIndex)
		cfg.Query = moduleQuery(module)

		if err := o.quizPacer.Wait(ctx); err != nil {
			fail(err)

			return
		}

		quiz, err := o.assessment.GenerateQuiz(ctx, models.SourceRef{Type: ref.Type, ID: ref.ID, Title: module.Title}, cfg)
		if err != nil {
			fail(err)

			continue
		}

		quiz.Metadata["module_index"] = mi
		quiz.Metadata["module_title"] = module.Title

		id, err := save(ctx, o.artifacts, r.req.RunID, "quiz:"+strconv.Itoa(mi), &courseID, models.ContentTypeQuiz, ref, quiz)
		if err != nil {
			fail(err)

			continue
		}

		r.res.QuizIDs = append(r.res.QuizIDs, id)
		r.res.Totals.add(quiz.Usage.Total(), quiz.CostUSD)
	}
}

// moduleQuery is the retrieval query for a module quiz: its title, description and lesson objectives.
func moduleQuery(module models.OutlineModule) string {
	parts := []string{module.Title, module.Description}
	for _, node := range module.Lessons {
		parts = append(parts, node.LearningObjectives...)
	}

	lines := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}

	return strings.Join(lines, "\n")
}

// moduleMaterial joins the text of a module's generated lessons. Lessons that failed are
// represented by their outline entry.
func (o *Orchestrator) moduleMaterial(
	ctx context.Context, module models.OutlineModule, first int, lessons map[int]uuid.UUID,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Module: %s\n%s\n", module.Title, module.Description)

	for i, node := range module.Lessons {
		fmt.Fprintf(&b, "\nLesson: %s\n", node.Title)

		id, ok := lessons[first+i]
		if !ok {
			b.WriteString(strings.Join(node.LearningObjectives, "\n"))
			b.WriteString("\n")

			continue
		}

		a, err := o.artifacts.GetByID(ctx, id)
		if err != nil {
			o.logger.WarnContext(ctx, "lesson unavailable for quiz", "artifact_id", id, "error", err)

			continue
		}

		var content models.LessonContent
		if err := json.Unmarshal(a.GeneratedData, &content); err != nil {
			continue
		}

		b.WriteString(content.Text())
		b.WriteString("\n")
	}

	return b.String()
}
