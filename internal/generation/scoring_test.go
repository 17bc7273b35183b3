package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
)

func TestWithinLengthBand(t *testing.T) {
	tests := []struct {
		words, target int
		want          bool
	}{
		{800, 800, true},
		{640, 800, true},
		{960, 800, true},
		{639, 800, false},
		{961, 800, false},
		{5, 0, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WithinLengthBand(tt.words, tt.target), "words=%d target=%d", tt.words, tt.target)
	}
}

func TestScoreAnalysis(t *testing.T) {
	w := DefaultScoreWeights()

	t.Run("complete analysis", func(t *testing.T) {
		assert.Equal(t, 100, ScoreAnalysis(sampleAnalysis(), AnalysisSignals{}, w))
	})

	t.Run("defaulted fields lower the score", func(t *testing.T) {
		assert.Equal(t, 80, ScoreAnalysis(sampleAnalysis(), AnalysisSignals{DefaultedFields: 2}, w))
	})

	t.Run("degraded never goes below zero", func(t *testing.T) {
		assert.Equal(t, 0, ScoreAnalysis(DefaultAnalysis(), AnalysisSignals{Degraded: true, DefaultedFields: 6}, w))
	})
}

func TestScoreOutline(t *testing.T) {
	w := DefaultScoreWeights()
	outline := sampleOutline()

	assert.Equal(t, 100, ScoreOutline(outline, OutlineSignals{GroundingChunks: 3, RequestedModules: 2}, w))
	assert.Equal(t, 90, ScoreOutline(outline, OutlineSignals{GroundingChunks: 3, Fallback: true, RequestedModules: 2}, w))
	assert.Equal(t, 70, ScoreOutline(outline, OutlineSignals{RequestedModules: 5}, w))
}

func TestScoreLesson(t *testing.T) {
	w := DefaultScoreWeights()
	lesson := sampleLesson()
	words := WordCount(lesson.Text())

	t.Run("grounded and in band", func(t *testing.T) {
		got := ScoreLesson(lesson, LessonSignals{GroundingChunks: 2, TargetWords: words, ExamplesRequested: true}, w)
		assert.Equal(t, 100, got)
	})

	t.Run("missing requested exercises", func(t *testing.T) {
		got := ScoreLesson(lesson, LessonSignals{TargetWords: words * 3, ExercisesRequested: true}, w)
		assert.Equal(t, 45, got)
	})
}

func TestScoreQuiz(t *testing.T) {
	w := DefaultScoreWeights()
	quiz := sampleQuiz()

	assert.Equal(t, 100, ScoreQuiz(quiz, QuizSignals{Requested: 2, Grounded: true}, w))
	assert.Equal(t, 65, ScoreQuiz(quiz, QuizSignals{Requested: 5, Dropped: 1, Grounded: false}, w))

	essay := models.Quiz{Questions: []models.Question{{Type: models.QuestionEssay}}}
	assert.Equal(t, 100, ScoreQuiz(essay, QuizSignals{Requested: 1, Grounded: true}, w))
}

func TestPricing(t *testing.T) {
	p := Pricing{
		"":            {InputPer1K: 1, OutputPer1K: 1},
		"gpt-4o":      {InputPer1K: 0.005, OutputPer1K: 0.015},
		"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	}
	usage := llm.Usage{PromptTokens: 2000, CompletionTokens: 1000}

	t.Run("exact match", func(t *testing.T) {
		assert.InDelta(t, 0.025, p.Cost("gpt-4o", usage), 1e-9)
	})

	t.Run("longest prefix wins", func(t *testing.T) {
		assert.Equal(t, p["gpt-4o-mini"], p.Price("gpt-4o-mini-2024-07-18"))
	})

	t.Run("unknown model uses the fallback", func(t *testing.T) {
		assert.InDelta(t, 3.0, p.Cost("claude", usage), 1e-9)
	})

	t.Run("nil table costs nothing", func(t *testing.T) {
		var none Pricing
		assert.Zero(t, none.Cost("gpt-4o", usage))
	})
}
