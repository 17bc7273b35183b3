package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

func TestAssessmentStage_GenerateQuiz(t *testing.T) {
	ctx := context.Background()
	ref := models.SourceRef{Type: models.SourceTypeBook, ID: "go-concurrency", Title: "Foundations"}

	t.Run("valid quiz from provided material", func(t *testing.T) {
		c := fixedCompleter(mustJSON(sampleQuiz()))
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: c}})

		out, err := stage.GenerateQuiz(ctx, ref, QuizConfig{QuestionCount: 2, ContextText: "lesson text about channels"})
		require.NoError(t, err)

		require.Len(t, out.Value.Questions, 2)
		assert.Equal(t, "go", out.Value.Questions[0].CorrectAnswer)
		assert.Equal(t, "true", out.Value.Questions[1].CorrectAnswer)
		assert.Equal(t, []string{"true", "false"}, out.Value.Questions[1].Options)
		assert.Equal(t, models.DifficultyMedium, out.Value.Questions[1].Difficulty)
		assert.Equal(t, models.CognitiveUnderstand, out.Value.Questions[1].CognitiveLevel)
		assert.Equal(t, 1, out.Value.Questions[1].Points)

		assert.Equal(t, GroundingProvided, out.Metadata["grounding"])
		assert.Equal(t, true, out.Metadata["provided_material"])
		assert.Equal(t, 0, out.Metadata["dropped_questions"])

		req := c.Requests()[0]
		assert.InDelta(t, 0.5, req.Temperature, 1e-9)
		assert.Contains(t, req.UserPrompt, "lesson text about channels")
		assert.Equal(t, 100, out.Confidence)
	})

	t.Run("provided material is combined with retrieved chunks", func(t *testing.T) {
		r := groundWith("channel excerpt from the book", 2)
		c := fixedCompleter(mustJSON(sampleQuiz()))
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: c}, Retriever: r})

		out, err := stage.GenerateQuiz(ctx, ref, QuizConfig{
			ContextText: "lesson text about channels",
			Query:       "Foundations\nexplain unbuffered channels",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Foundations\nexplain unbuffered channels"}, r.queries)
		assert.Equal(t, GroundingRetrieval, out.Metadata["grounding"])
		assert.Equal(t, 1, out.Metadata["grounding_chunks"])

		prompt := c.Requests()[0].UserPrompt
		assert.Contains(t, prompt, "lesson text about channels")
		assert.Contains(t, prompt, "channel excerpt from the book")
	})

	t.Run("retrieval when no material is provided", func(t *testing.T) {
		r := groundWith("retrieved quiz material", 4)
		c := fixedCompleter(mustJSON(sampleQuiz()))
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: c}, Retriever: r})

		out, err := stage.GenerateQuiz(ctx, ref, QuizConfig{})
		require.NoError(t, err)

		assert.Equal(t, []string{"Foundations"}, r.queries)
		assert.Equal(t, GroundingRetrieval, out.Metadata["grounding"])
		assert.Equal(t, DefaultQuestionCount, out.Metadata["requested_questions"])
		assert.Contains(t, c.Requests()[0].UserPrompt, "retrieved quiz material")
	})

	t.Run("invalid questions are dropped and counted", func(t *testing.T) {
		quiz := models.Quiz{Questions: []models.Question{
			{Type: models.QuestionMultipleChoice, Prompt: "Pick", Options: []string{"a1", "a2", "a3"}, CorrectAnswer: "B"},
			{Type: models.QuestionMultipleChoice, Prompt: "Only one", Options: []string{"x"}, CorrectAnswer: "x"},
			{Type: models.QuestionMultipleChoice, Prompt: "Wrong", Options: []string{"x", "y"}, CorrectAnswer: "z"},
			{Type: models.QuestionTrueFalse, Prompt: "Maybe", CorrectAnswer: "sometimes"},
			{Type: models.QuestionShortAnswer, Prompt: "Explain", SampleAnswers: []string{"because"}},
			{Type: "matching", Prompt: "Match"},
			{Type: models.QuestionEssay, Prompt: "Discuss", Rubric: []models.RubricItem{
				{Criterion: "clarity", Points: 3}, {Criterion: "depth", Points: 2}, {Criterion: "", Points: 4},
			}},
		}}
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: fixedCompleter(mustJSON(quiz))}})

		out, err := stage.GenerateQuiz(ctx, ref, QuizConfig{QuestionCount: 7, ContextText: "material"})
		require.NoError(t, err)

		require.Len(t, out.Value.Questions, 2)
		assert.Equal(t, "a2", out.Value.Questions[0].CorrectAnswer)

		essay := out.Value.Questions[1]
		assert.True(t, essay.RequiresManualGrading)
		assert.Len(t, essay.Rubric, 2)
		assert.Equal(t, 5, essay.Points)

		assert.Equal(t, 5, out.Metadata["dropped_questions"])
		assert.Len(t, out.Metadata["dropped_reasons"], 5)
		assert.Equal(t, "Foundations quiz", out.Value.Title)
		assert.Less(t, out.Confidence, 100)
	})

	t.Run("no valid question is malformed", func(t *testing.T) {
		quiz := models.Quiz{Questions: []models.Question{{Type: models.QuestionTrueFalse, Prompt: "?", CorrectAnswer: "yes"}}}
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: fixedCompleter(mustJSON(quiz))}})

		_, err := stage.GenerateQuiz(ctx, ref, QuizConfig{ContextText: "material"})

		require.ErrorIs(t, err, huberrors.ErrMalformedLLMResponse)

		var merr *huberrors.MalformedLLMResponseError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, StageAssessment, merr.Stage)
		assert.Equal(t, []string{"questions"}, merr.MissingFields)
	})

	t.Run("missing questions field is malformed", func(t *testing.T) {
		stage := NewAssessmentStage(AssessmentStageParams{StageParams: StageParams{LLM: fixedCompleter(`{"title": "Quiz"}`)}})

		_, err := stage.GenerateQuiz(ctx, ref, QuizConfig{ContextText: "material"})

		assert.ErrorIs(t, err, huberrors.ErrMalformedLLMResponse)
	})
}

func TestMatchOption(t *testing.T) {
	options := []string{"Buffered channel", "Unbuffered channel", "Mutex"}

	tests := []struct {
		name   string
		answer string
		want   string
		ok     bool
	}{
		{"exact text", "Mutex", "Mutex", true},
		{"case and spacing", "  unbuffered   CHANNEL ", "Unbuffered channel", true},
		{"letter", "A", "Buffered channel", true},
		{"letter with paren", "c)", "Mutex", true},
		{"letter out of range", "d", "", false},
		{"unknown", "WaitGroup", "", false},
		{"empty", " ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchOption(options, tt.answer)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAnswer(t *testing.T) {
	mc := models.Question{Type: models.QuestionMultipleChoice, Options: []string{"go", "defer"}, CorrectAnswer: "go"}
	tf := models.Question{Type: models.QuestionTrueFalse, CorrectAnswer: "true"}
	short := models.Question{Type: models.QuestionShortAnswer, SampleAnswers: []string{"it blocks"}}
	essay := models.Question{Type: models.QuestionEssay, RequiresManualGrading: true}

	tests := []struct {
		name      string
		question  models.Question
		submitted string
		status    models.AnswerStatus
		correct   *bool
	}{
		{"multiple choice correct", mc, " GO ", models.AnswerCorrect, ptr(true)},
		{"multiple choice incorrect", mc, "defer", models.AnswerIncorrect, ptr(false)},
		{"true false correct", tf, "True", models.AnswerCorrect, ptr(true)},
		{"true false incorrect", tf, "false", models.AnswerIncorrect, ptr(false)},
		{"short answer matching a sample", short, "it blocks", models.AnswerRequiresManualReview, nil},
		{"essay", essay, "a long answer", models.AnswerRequiresManualReview, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAnswer(tt.question, tt.submitted)

			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.correct, got.Correct)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
