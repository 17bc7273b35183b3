package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/service"
)

func TestStructureStage_GenerateStructure(t *testing.T) {
	ctx := context.Background()

	t.Run("grounded outline", func(t *testing.T) {
		c := fixedCompleter(mustJSON(sampleOutline()))
		r := groundWith("retrieved passage about goroutines", 3, 7)
		stage := NewStructureStage(StructureStageParams{StageParams: StageParams{LLM: c}, Retriever: r})

		out, err := stage.GenerateStructure(ctx, testSource(), sampleAnalysis(), StructureConfig{ModuleCount: 2})
		require.NoError(t, err)

		assert.Equal(t, "Concurrency in Go", out.Value.Title)
		assert.Equal(t, 3, out.Value.LessonCount())
		assert.Equal(t, GroundingRetrieval, out.Metadata["grounding"])
		assert.Equal(t, []int{3, 7}, out.Metadata["source_pages"])
		assert.Equal(t, []string{"Go Concurrency goroutines channels"}, r.queries)

		req := c.Requests()[0]
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Contains(t, req.UserPrompt, "retrieved passage about goroutines")
		assert.Contains(t, req.UserPrompt, "Target audience: beginner")
	})

	t.Run("ungrounded outline uses the head of the source", func(t *testing.T) {
		c := fixedCompleter(mustJSON(sampleOutline()))
		r := &mockRetriever{groundFunc: func(context.Context, models.SourceRef, string, int, int) (service.Grounding, error) {
			return service.Grounding{Fallback: true}, errors.New("store down")
		}}
		stage := NewStructureStage(StructureStageParams{StageParams: StageParams{LLM: c}, Retriever: r})

		out, err := stage.GenerateStructure(ctx, testSource(), sampleAnalysis(), StructureConfig{})
		require.NoError(t, err)

		assert.Equal(t, GroundingSourceHead, out.Metadata["grounding"])
		assert.Contains(t, c.Requests()[0].UserPrompt, "Goroutines are functions that run concurrently")
	})

	t.Run("lessons are normalized", func(t *testing.T) {
		outline := models.Outline{
			Title: " Course ",
			Modules: []models.OutlineModule{
				{Title: "Empty", Lessons: []models.OutlineNode{{Title: "  "}}},
				{Title: "Kept", Lessons: []models.OutlineNode{{Title: " Intro ", LearningObjectives: []string{"", "x"}}}},
			},
		}
		stage := NewStructureStage(StructureStageParams{StageParams: StageParams{LLM: fixedCompleter(mustJSON(outline))}})

		out, err := stage.GenerateStructure(ctx, testSource(), sampleAnalysis(), StructureConfig{})
		require.NoError(t, err)

		require.Len(t, out.Value.Modules, 1)
		lesson := out.Value.Modules[0].Lessons[0]
		assert.Equal(t, "Intro", lesson.Title)
		assert.Equal(t, defaultLessonType, lesson.Type)
		assert.Equal(t, defaultLessonMinutes, lesson.DurationMinutes)
		assert.Equal(t, []string{"x"}, lesson.LearningObjectives)
	})

	malformed := []struct {
		name    string
		text    string
		missing []string
	}{
		{"not json", "here is your outline!", nil},
		{"missing modules", `{"title": "Course"}`, []string{"modules"}},
		{"empty modules", `{"title": "Course", "modules": []}`, []string{"modules"}},
		{"modules without lessons", `{"title": "Course", "modules": [{"title": "M", "lessons": []}]}`, []string{"modules.lessons"}},
	}

	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewStructureStage(StructureStageParams{StageParams: StageParams{LLM: fixedCompleter(tt.text)}})

			out, err := stage.GenerateStructure(ctx, testSource(), sampleAnalysis(), StructureConfig{})

			assert.Nil(t, out)
			require.ErrorIs(t, err, huberrors.ErrMalformedLLMResponse)

			var merr *huberrors.MalformedLLMResponseError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, StageStructure, merr.Stage)
			assert.Equal(t, tt.missing, merr.MissingFields)
		})
	}

	t.Run("llm failure is a stage failure", func(t *testing.T) {
		stage := NewStructureStage(StructureStageParams{StageParams: StageParams{
			LLM: &mockCompleter{completeFunc: func(context.Context, llm.Request) (*llm.Response, error) {
				return nil, errors.New("quota exceeded")
			}},
		}})

		_, err := stage.GenerateStructure(ctx, testSource(), sampleAnalysis(), StructureConfig{})

		assert.ErrorContains(t, err, "quota exceeded")
	})
}

func TestContentStage_GenerateContent(t *testing.T) {
	ctx := context.Background()
	ref := testSource().Ref()
	node := models.OutlineNode{Title: "Channels", LearningObjectives: []string{"send", "receive"}, SourcePages: []int{9}}

	t.Run("lesson with metadata", func(t *testing.T) {
		c := fixedCompleter(mustJSON(sampleLesson()))
		r := groundWith("channel passage", 2)
		stage := NewContentStage(ContentStageParams{StageParams: StageParams{LLM: c}, Retriever: r})

		out, err := stage.GenerateContent(ctx, ref, node, ContentConfig{
			Tone: ToneAcademic, TargetWords: 100, IncludeExamples: true,
		})
		require.NoError(t, err)

		assert.Equal(t, sampleLesson().Summary, out.Value.Summary)
		assert.Equal(t, []string{"Channels send receive"}, r.queries)
		assert.Equal(t, []int{2, 9}, out.Metadata["source_pages"])
		assert.Equal(t, ToneAcademic, out.Metadata["tone"])
		assert.Equal(t, WordCount(out.Value.Text()), out.Metadata["word_count"])
		assert.Contains(t, c.Requests()[0].SystemPrompt, toneInstructions[ToneAcademic])
		assert.Contains(t, c.Requests()[0].UserPrompt, "between 80 and 120 words")
		assert.Positive(t, out.Confidence)
	})

	t.Run("unknown tone falls back to conversational", func(t *testing.T) {
		c := fixedCompleter(mustJSON(sampleLesson()))
		stage := NewContentStage(ContentStageParams{StageParams: StageParams{LLM: c}})

		out, err := stage.GenerateContent(ctx, ref, node, ContentConfig{Tone: "shouty"})
		require.NoError(t, err)

		assert.Equal(t, ToneConversational, out.Metadata["tone"])
		assert.Equal(t, GroundingNone, out.Metadata["grounding"])
	})

	t.Run("missing summary is malformed", func(t *testing.T) {
		stage := NewContentStage(ContentStageParams{StageParams: StageParams{
			LLM: fixedCompleter(`{"introduction": "hi", "main_content": "body"}`),
		}})

		_, err := stage.GenerateContent(ctx, ref, node, ContentConfig{})

		var merr *huberrors.MalformedLLMResponseError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, []string{"summary"}, merr.MissingFields)
		assert.Equal(t, StageContent, merr.Stage)
	})
}
