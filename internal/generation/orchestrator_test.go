package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/embeddings"
	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/service"
	"github.com/edulane/coursegen/internal/source"
)

type pipeline struct {
	orchestrator *Orchestrator
	artifacts    *repository.MemoryArtifactStore
	llm          *mockCompleter
}

// newPipeline wires every stage against in-memory stores and a chromem index of testSource.
func newPipeline(t *testing.T, c *mockCompleter) *pipeline {
	t.Helper()

	ctx := context.Background()
	sources := source.NewMemoryStore(testSource())
	embedder := embeddings.NewClient(embeddings.NewMockProviderWithDimensions(128), "mock")

	vectors, err := repository.NewChromemVectorStore()
	require.NoError(t, err)

	indexer := service.NewIndexingService(service.IndexingServiceParams{
		Sources: sources, Embedder: embedder, Store: vectors,
	})
	_, err = indexer.IndexSource(ctx, models.SourceTypeBook, "go-concurrency")
	require.NoError(t, err)

	search := service.NewSearchService(service.SearchServiceParams{Embedder: embedder, Store: vectors})
	artifacts := repository.NewMemoryArtifactStore()
	params := StageParams{LLM: c, Pricing: NewPricing(testModel, ModelPrice{InputPer1K: 0.001, OutputPer1K: 0.002})}

	return &pipeline{
		artifacts: artifacts,
		llm:       c,
		orchestrator: NewOrchestrator(OrchestratorParams{
			Sources:   sources,
			Artifacts: artifacts,
			Analysis:  NewAnalysisStage(AnalysisStageParams{StageParams: params, Sources: sources}),
			Structure: NewStructureStage(StructureStageParams{StageParams: params, Retriever: search}),
			Batch: NewBatchRunner(BatchRunnerParams{
				Writer:    NewContentStage(ContentStageParams{StageParams: params, Retriever: search}),
				Artifacts: artifacts,
			}),
			Assessment: NewAssessmentStage(AssessmentStageParams{StageParams: params, Retriever: search}),
		}),
	}
}

func (p *pipeline) artifactsOf(t *testing.T, kind models.ContentType) []models.Artifact {
	t.Helper()

	list, err := p.artifacts.List(context.Background(), &models.ListArtifactsFilters{ContentType: string(kind)})
	require.NoError(t, err)

	return list
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("full run with quizzes", func(t *testing.T) {
		p := newPipeline(t, pipelineCompleter(nil))

		var states []RunState

		var progress int

		res, err := p.orchestrator.Run(ctx, RunRequest{
			SourceType:      models.SourceTypeBook,
			SourceID:        "go-concurrency",
			GenerateQuizzes: true,
			Quiz:            QuizConfig{QuestionCount: 2},
			OnStateChange:   func(s RunState) { states = append(states, s) },
			OnProgress:      func(BatchProgress) { progress++ },
		})
		require.NoError(t, err)

		assert.Equal(t, []RunState{RunPending, RunAnalyzing, RunStructuring, RunGeneratingContent, RunSaved}, states)
		assert.Equal(t, RunSaved, res.State)
		assert.NotEqual(t, "", res.RunID.String())
		assert.Equal(t, 3, progress)

		require.NotNil(t, res.AnalysisID)
		require.NotNil(t, res.CourseID)
		assert.Len(t, res.LessonIDs, 3)
		assert.Len(t, res.QuizIDs, 2)
		assert.Empty(t, res.QuizFailures)
		assert.Equal(t, 3, res.Batch.SuccessCount)

		assert.Equal(t, 7*1500, res.Totals.Tokens)
		assert.InDelta(t, 7*0.002, res.Totals.CostUSD, 1e-9)

		analyses := p.artifactsOf(t, models.ContentTypeAnalysis)
		require.Len(t, analyses, 1)
		assert.Nil(t, analyses[0].ParentID)

		courses := p.artifactsOf(t, models.ContentTypeCourse)
		require.Len(t, courses, 1)
		require.NotNil(t, courses[0].ParentID)
		assert.Equal(t, *res.AnalysisID, *courses[0].ParentID)
		assert.Equal(t, res.AnalysisID.String(), courses[0].Metadata["analysis_id"])

		for _, kind := range []models.ContentType{models.ContentTypeLesson, models.ContentTypeQuiz} {
			for _, a := range p.artifactsOf(t, kind) {
				require.NotNil(t, a.ParentID)
				assert.Equal(t, *res.CourseID, *a.ParentID, "%s parent", kind)
				assert.Equal(t, res.RunID, a.RunID)
			}
		}

		reqs := p.llm.Requests()
		require.Len(t, reqs, 7)

		for _, req := range reqs {
			if stageOf(req) == StageContent {
				assert.Contains(t, req.UserPrompt, "Audience: beginner.")
			}
		}

		quizPrompts := 0

		for _, req := range reqs {
			if stageOf(req) == StageAssessment {
				quizPrompts++

				assert.Contains(t, req.UserPrompt, "A goroutine is a lightweight thread")
				assert.Contains(t, req.UserPrompt, "Source excerpts:")
			}
		}

		assert.Equal(t, 2, quizPrompts)
	})

	t.Run("quizzes are grounded in retrieved source chunks", func(t *testing.T) {
		p := newPipeline(t, pipelineCompleter(nil))

		r := groundWith("select waits on several channel operations", 7)
		p.orchestrator.assessment = NewAssessmentStage(AssessmentStageParams{
			StageParams: StageParams{LLM: p.llm}, Retriever: r,
		})

		res, err := p.orchestrator.Run(ctx, RunRequest{
			SourceType:      models.SourceTypeBook,
			SourceID:        "go-concurrency",
			GenerateQuizzes: true,
		})
		require.NoError(t, err)
		require.Len(t, res.QuizIDs, 2)

		assert.Equal(t, []string{
			"Foundations\nstart a goroutine\nsend and receive",
			"Patterns\nbuild a pipeline",
		}, r.queries)

		for _, req := range p.llm.Requests() {
			if stageOf(req) == StageAssessment {
				assert.Contains(t, req.UserPrompt, "select waits on several channel operations")
				assert.Contains(t, req.UserPrompt, "A goroutine is a lightweight thread")
			}
		}

		for _, quiz := range p.artifactsOf(t, models.ContentTypeQuiz) {
			assert.Equal(t, GroundingRetrieval, quiz.Metadata["grounding"])
		}
	})

	t.Run("retrying a run overwrites its artifacts", func(t *testing.T) {
		structureDown := true
		p := newPipeline(t, pipelineCompleter(map[string]func(llm.Request) (*llm.Response, error){
			StageStructure: func(llm.Request) (*llm.Response, error) {
				if structureDown {
					return nil, errors.New("connection reset by peer")
				}

				return respond(mustJSON(sampleOutline())), nil
			},
		}))

		req := RunRequest{
			RunID:           uuid.Must(uuid.NewV7()),
			SourceType:      models.SourceTypeBook,
			SourceID:        "go-concurrency",
			GenerateQuizzes: true,
		}

		first, err := p.orchestrator.Run(ctx, req)
		require.Error(t, err)
		require.NotNil(t, first.AnalysisID)

		structureDown = false

		second, err := p.orchestrator.Run(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, *first.AnalysisID, *second.AnalysisID)

		third, err := p.orchestrator.Run(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, second.LessonIDs, third.LessonIDs)
		assert.Equal(t, second.QuizIDs, third.QuizIDs)

		all, err := p.artifacts.List(ctx, &models.ListArtifactsFilters{RunID: &req.RunID})
		require.NoError(t, err)
		assert.Len(t, all, 1+1+3+2)
		assert.Len(t, p.artifactsOf(t, models.ContentTypeAnalysis), 1)
		assert.Len(t, p.artifactsOf(t, models.ContentTypeCourse), 1)
	})

	t.Run("malformed structure fails after the analysis is saved", func(t *testing.T) {
		p := newPipeline(t, pipelineCompleter(map[string]func(llm.Request) (*llm.Response, error){
			StageStructure: func(llm.Request) (*llm.Response, error) { return respond(`{"title": "Only a title"}`), nil },
		}))

		res, err := p.orchestrator.Run(ctx, RunRequest{SourceType: models.SourceTypeBook, SourceID: "go-concurrency"})

		require.ErrorIs(t, err, huberrors.ErrMalformedLLMResponse)
		assert.Equal(t, RunFailed, res.State)
		assert.NotEmpty(t, res.Error)
		assert.NotNil(t, res.AnalysisID)
		assert.Nil(t, res.CourseID)

		assert.Len(t, p.artifactsOf(t, models.ContentTypeAnalysis), 1)
		assert.Empty(t, p.artifactsOf(t, models.ContentTypeCourse))
		assert.Empty(t, p.artifactsOf(t, models.ContentTypeLesson))
	})

	t.Run("missing source fails without artifacts", func(t *testing.T) {
		p := newPipeline(t, pipelineCompleter(nil))

		res, err := p.orchestrator.Run(ctx, RunRequest{SourceType: models.SourceTypeBook, SourceID: "nope"})

		require.ErrorIs(t, err, huberrors.ErrSourceNotFound)
		assert.Equal(t, RunFailed, res.State)
		assert.Nil(t, res.AnalysisID)
		assert.Empty(t, p.llm.Requests())
		assert.Empty(t, p.artifactsOf(t, models.ContentTypeAnalysis))
	})

	t.Run("cancellation mid batch keeps saved lessons", func(t *testing.T) {
		p := newPipeline(t, pipelineCompleter(nil))

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		res, err := p.orchestrator.Run(cctx, RunRequest{
			SourceType:      models.SourceTypeBook,
			SourceID:        "go-concurrency",
			GenerateQuizzes: true,
			OnProgress: func(bp BatchProgress) {
				if bp.Completed == 1 {
					cancel()
				}
			},
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, RunFailed, res.State)
		assert.Len(t, res.LessonIDs, 1)
		assert.Equal(t, 2, res.Batch.FailureCount)
		assert.Empty(t, res.QuizIDs)
		assert.Len(t, p.artifactsOf(t, models.ContentTypeLesson), 1)
	})
}
