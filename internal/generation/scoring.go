package generation

import (
	"strings"

	"github.com/edulane/coursegen/internal/models"
)

// ScoreWeights are the points each quality signal adds to a confidence score.
// Scores are always clamped to [0, 100].
type ScoreWeights struct {
	Base int

	// Analysis
	AnalysisParsed   int
	AnalysisTopics   int
	AnalysisSummary  int
	AnalysisDefaults int // subtracted once per defaulted field

	// Outline
	Grounded          int
	FallbackGrounding int
	ModuleCountMatch  int
	ObjectivesPresent int
	DurationsPresent  int

	// Lesson
	LengthInBand     int
	ExamplesPresent  int
	ExercisesPresent int
	TakeawaysPresent int
	MissingRequested int // subtracted per requested optional section that is missing

	// Quiz
	QuestionCountMatch  int
	NoDroppedQuestions  int
	ExplanationsPresent int
}

// DefaultScoreWeights returns the weights used when none are configured.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Base:                50,
		AnalysisParsed:      20,
		AnalysisTopics:      15,
		AnalysisSummary:     15,
		AnalysisDefaults:    10,
		Grounded:            20,
		FallbackGrounding:   10,
		ModuleCountMatch:    10,
		ObjectivesPresent:   10,
		DurationsPresent:    10,
		LengthInBand:        15,
		ExamplesPresent:     10,
		ExercisesPresent:    10,
		TakeawaysPresent:    5,
		MissingRequested:    10,
		QuestionCountMatch:  20,
		NoDroppedQuestions:  15,
		ExplanationsPresent: 15,
	}
}

func clampScore(score int) int {
	return min(max(score, 0), 100)
}

// AnalysisSignals are the objective facts about one analysis call.
type AnalysisSignals struct {
	Degraded        bool
	DefaultedFields int
}

// ScoreAnalysis scores an analysis result.
func ScoreAnalysis(a models.Analysis, sig AnalysisSignals, w ScoreWeights) int {
	if sig.Degraded {
		return clampScore(w.Base - w.AnalysisDefaults*sig.DefaultedFields)
	}

	score := w.Base + w.AnalysisParsed

	if len(a.Topics) > 0 {
		score += w.AnalysisTopics
	}

	if strings.TrimSpace(a.Summary) != "" {
		score += w.AnalysisSummary
	}

	score -= w.AnalysisDefaults * sig.DefaultedFields

	return clampScore(score)
}

// OutlineSignals are the objective facts about one structure call.
type OutlineSignals struct {
	GroundingChunks  int
	Fallback         bool
	RequestedModules int
}

// ScoreOutline scores a course outline.
func ScoreOutline(o models.Outline, sig OutlineSignals, w ScoreWeights) int {
	score := w.Base

	switch {
	case sig.GroundingChunks > 0 && !sig.Fallback:
		score += w.Grounded
	case sig.GroundingChunks > 0:
		score += w.FallbackGrounding
	}

	if sig.RequestedModules <= 0 || len(o.Modules) == sig.RequestedModules {
		score += w.ModuleCountMatch
	}

	nodes := o.Nodes()
	objectives, durations := len(nodes) > 0, len(nodes) > 0

	for _, n := range nodes {
		if len(n.LearningObjectives) == 0 {
			objectives = false
		}

		if n.DurationMinutes <= 0 {
			durations = false
		}
	}

	if objectives {
		score += w.ObjectivesPresent
	}

	if durations {
		score += w.DurationsPresent
	}

	return clampScore(score)
}

// LessonSignals are the objective facts about one content call.
type LessonSignals struct {
	GroundingChunks    int
	Fallback           bool
	TargetWords        int
	ExamplesRequested  bool
	ExercisesRequested bool
}

// WithinLengthBand reports whether words is within 20% of target. A non-positive target always matches.
func WithinLengthBand(words, target int) bool {
	if target <= 0 {
		return true
	}

	return float64(words) >= 0.8*float64(target) && float64(words) <= 1.2*float64(target)
}

// ScoreLesson scores generated lesson content.
func ScoreLesson(c models.LessonContent, sig LessonSignals, w ScoreWeights) int {
	score := w.Base

	switch {
	case sig.GroundingChunks > 0 && !sig.Fallback:
		score += w.Grounded
	case sig.GroundingChunks > 0:
		score += w.FallbackGrounding
	}

	if WithinLengthBand(WordCount(c.Text()), sig.TargetWords) {
		score += w.LengthInBand
	}

	if sig.ExamplesRequested {
		if len(c.Examples) > 0 {
			score += w.ExamplesPresent
		} else {
			score -= w.MissingRequested
		}
	}

	if sig.ExercisesRequested {
		if len(c.Exercises) > 0 {
			score += w.ExercisesPresent
		} else {
			score -= w.MissingRequested
		}
	}

	if len(c.KeyTakeaways) > 0 {
		score += w.TakeawaysPresent
	}

	return clampScore(score)
}

// QuizSignals are the objective facts about one assessment call.
type QuizSignals struct {
	Requested int
	Dropped   int
	Grounded  bool
}

// ScoreQuiz scores a validated quiz.
func ScoreQuiz(q models.Quiz, sig QuizSignals, w ScoreWeights) int {
	score := w.Base

	if sig.Grounded {
		score += w.Grounded
	}

	if sig.Requested <= 0 || len(q.Questions) >= sig.Requested {
		score += w.QuestionCountMatch
	}

	if sig.Dropped == 0 {
		score += w.NoDroppedQuestions
	}

	explained := len(q.Questions) > 0

	for _, question := range q.Questions {
		if strings.TrimSpace(question.Explanation) == "" && question.Type != models.QuestionEssay {
			explained = false

			break
		}
	}

	if explained {
		score += w.ExplanationsPresent
	}

	return clampScore(score)
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
