package generation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
)

const (
	assessmentTemperature = 0.5

	// DefaultQuestionCount is the quiz length when none is configured.
	DefaultQuestionCount = 5

	defaultQuestionPoints = 1
)

var errNoValidQuestions = errors.New("no question passed validation")

// DefaultQuestionTypes are requested when a quiz config names none.
func DefaultQuestionTypes() []models.QuestionType {
	return []models.QuestionType{
		models.QuestionMultipleChoice, models.QuestionTrueFalse, models.QuestionShortAnswer,
	}
}

var difficulties = map[string]bool{
	models.DifficultyEasy: true, models.DifficultyMedium: true, models.DifficultyHard: true,
}

// QuizConfig shapes a quiz. Distributions map a label to its share of questions.
// ContextText is material the quiz must cover (e.g. generated lessons); retrieved source chunks
// are always added to it. Query is the retrieval query and defaults to the quiz title.
type QuizConfig struct {
	QuestionCount          int                               `json:"question_count,omitempty" validate:"omitempty,min=1,max=50"`
	QuestionTypes          []models.QuestionType             `json:"question_types,omitempty" validate:"omitempty,dive,oneof=multiple_choice true_false short_answer essay"`
	DifficultyDistribution map[string]float64                `json:"difficulty_distribution,omitempty"`
	CognitiveDistribution  map[models.CognitiveLevel]float64 `json:"cognitive_distribution,omitempty"`
	ContextText            string                            `json:"-"`
	Query                  string                            `json:"-"`
}

// WithDefaults fills unset fields.
func (c QuizConfig) WithDefaults() QuizConfig {
	if c.QuestionCount <= 0 {
		c.QuestionCount = DefaultQuestionCount
	}

	if len(c.QuestionTypes) == 0 {
		c.QuestionTypes = DefaultQuestionTypes()
	}

	return c
}

// AssessmentStage writes quizzes and drops questions that break their shape contract.
type AssessmentStage struct {
	caller
	retriever Retriever
	count     int
	fallbackN int
	weights   ScoreWeights
}

// AssessmentStageParams configures AssessmentStage.
type AssessmentStageParams struct {
	StageParams
	Retriever      Retriever
	RetrievalCount int
	FallbackChunks int
}

// NewAssessmentStage creates an AssessmentStage.
func NewAssessmentStage(p AssessmentStageParams) *AssessmentStage {
	s := &AssessmentStage{
		caller:    newCaller(p.StageParams),
		retriever: p.Retriever,
		count:     p.RetrievalCount,
		fallbackN: p.FallbackChunks,
		weights:   p.weights(),
	}

	if s.count <= 0 {
		s.count = DefaultContentRetrievalCount
	}

	if s.fallbackN <= 0 {
		s.fallbackN = DefaultFallbackChunks
	}

	return s
}

// GenerateQuiz writes a quiz about ref. When no question survives validation the result is
// a *huberrors.MalformedLLMResponseError.
func (s *AssessmentStage) GenerateQuiz(
	ctx context.Context, ref models.SourceRef, cfg QuizConfig,
) (out *StageOutput[models.Quiz], err error) {
	ctx, span := observability.StartSpan(ctx, "generation.assessment",
		attribute.String("source_id", ref.ID), attribute.Int("question_count", cfg.QuestionCount))
	defer func() { observability.EndSpan(span, err) }()

	cfg = cfg.WithDefaults()

	query := strings.TrimSpace(cfg.Query)
	if query == "" {
		query = ref.Title
	}

	provided := strings.TrimSpace(cfg.ContextText)
	g, origin := ground(ctx, s.logger, s.retriever, ref, query, s.count, s.fallbackN)
	excerpts := strings.TrimSpace(g.Text())
	chunks := len(g.Chunks)

	var material string

	switch {
	case provided != "" && excerpts != "":
		material = provided + "\n\nSource excerpts:\n\n" + excerpts
	case provided != "":
		material, origin = provided, GroundingProvided
	case excerpts != "":
		material = excerpts
	default:
		material, origin = noMaterial, GroundingNone
	}

	comp, err := s.complete(ctx, StageAssessment, quizPrompt(ref.Title, cfg, material), assessmentTemperature)
	if err != nil {
		return nil, err
	}

	res := llm.ParseJSON[models.Quiz](comp.text, "questions")
	if res.Status != llm.Valid {
		return nil, s.malformed(ctx, StageAssessment, comp, res.Missing, res.Err)
	}

	quiz := models.Quiz{Title: strings.TrimSpace(res.Value.Title), Questions: []models.Question{}}
	if quiz.Title == "" {
		quiz.Title = ref.Title + " quiz"
	}

	dropped := []string{}

	for i, q := range res.Value.Questions {
		valid, reason := normalizeQuestion(q)
		if reason != "" {
			dropped = append(dropped, fmt.Sprintf("question %d: %s", i, reason))

			continue
		}

		quiz.Questions = append(quiz.Questions, valid)
	}

	if len(dropped) > 0 {
		s.logger.WarnContext(ctx, "dropped invalid quiz questions",
			"source_id", ref.ID, "dropped", len(dropped), "kept", len(quiz.Questions))
	}

	if len(quiz.Questions) == 0 {
		return nil, s.malformed(ctx, StageAssessment, comp, []string{"questions"}, errNoValidQuestions)
	}

	out = output(comp, quiz)
	out.Metadata["grounding"] = origin
	out.Metadata["grounding_chunks"] = chunks
	out.Metadata["provided_material"] = provided != ""
	out.Metadata["requested_questions"] = cfg.QuestionCount
	out.Metadata["dropped_questions"] = len(dropped)
	out.Metadata["question_types"] = countTypes(quiz.Questions)

	if len(dropped) > 0 {
		out.Metadata["dropped_reasons"] = dropped
	}

	out.Confidence = ScoreQuiz(quiz, QuizSignals{
		Requested: cfg.QuestionCount,
		Dropped:   len(dropped),
		Grounded:  origin == GroundingRetrieval || origin == GroundingProvided,
	}, s.weights)

	s.record(ctx, StageAssessment, "success", comp.duration, comp.usage, comp.cost)

	return out, nil
}

func countTypes(questions []models.Question) map[string]int {
	counts := map[string]int{}
	for _, q := range questions {
		counts[string(q.Type)]++
	}

	return counts
}

// normalizeQuestion checks q against the contract of its type and fills defaults.
// A non-empty reason means the question must be dropped.
func normalizeQuestion(q models.Question) (models.Question, string) {
	q.Prompt = strings.TrimSpace(q.Prompt)
	if q.Prompt == "" {
		return q, "missing question text"
	}

	q.Type = models.QuestionType(strings.ToLower(strings.TrimSpace(string(q.Type))))
	q.RequiresManualGrading = false

	switch q.Type {
	case models.QuestionMultipleChoice:
		q.Options = cleanStrings(q.Options)
		if len(q.Options) < 2 {
			return q, "multiple choice needs at least two options"
		}

		answer, ok := matchOption(q.Options, q.CorrectAnswer)
		if !ok {
			return q, "correct answer is not one of the options"
		}

		q.CorrectAnswer = answer

	case models.QuestionTrueFalse:
		switch normalizeAnswer(q.CorrectAnswer) {
		case "true":
			q.CorrectAnswer = "true"
		case "false":
			q.CorrectAnswer = "false"
		default:
			return q, "true/false answer must be true or false"
		}

		q.Options = []string{"true", "false"}

	case models.QuestionShortAnswer:
		q.SampleAnswers = cleanStrings(q.SampleAnswers)
		q.KeyPoints = cleanStrings(q.KeyPoints)

		if len(q.SampleAnswers) == 0 || len(q.KeyPoints) == 0 {
			return q, "short answer needs sample answers and key points"
		}

	case models.QuestionEssay:
		rubric := []models.RubricItem{}
		total := 0

		for _, item := range q.Rubric {
			item.Criterion = strings.TrimSpace(item.Criterion)
			if item.Criterion == "" || item.Points <= 0 {
				continue
			}

			rubric = append(rubric, item)
			total += item.Points
		}

		if len(rubric) == 0 {
			return q, "essay needs a rubric with positive points"
		}

		q.Rubric = rubric
		q.RequiresManualGrading = true

		if q.Points <= 0 {
			q.Points = total
		}

	default:
		return q, fmt.Sprintf("unsupported question type %q", q.Type)
	}

	if q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty)); !difficulties[q.Difficulty] {
		q.Difficulty = models.DifficultyMedium
	}

	level := models.CognitiveLevel(strings.ToLower(strings.TrimSpace(string(q.CognitiveLevel))))
	if !slices.Contains(models.CognitiveLevels, level) {
		level = models.CognitiveUnderstand
	}

	q.CognitiveLevel = level

	if q.Points <= 0 {
		q.Points = defaultQuestionPoints
	}

	q.Explanation = strings.TrimSpace(q.Explanation)

	return q, ""
}

// matchOption resolves answer to one of options, by text or by option letter ("B", "b)").
func matchOption(options []string, answer string) (string, bool) {
	want := normalizeAnswer(answer)
	if want == "" {
		return "", false
	}

	for _, o := range options {
		if normalizeAnswer(o) == want {
			return o, true
		}
	}

	letter := strings.TrimRight(want, ").:")
	if len(letter) == 1 && letter[0] >= 'a' && int(letter[0]-'a') < len(options) {
		return options[letter[0]-'a'], true
	}

	return "", false
}

// normalizeAnswer lower-cases and collapses whitespace.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ValidateAnswer checks a submitted answer. Multiple choice and true/false are matched exactly,
// ignoring case and whitespace. Short answer and essay questions are never scored automatically.
func ValidateAnswer(q models.Question, submitted string) models.AnswerResult {
	switch q.Type {
	case models.QuestionMultipleChoice, models.QuestionTrueFalse:
		want := normalizeAnswer(q.CorrectAnswer)
		correct := want != "" && normalizeAnswer(submitted) == want

		status := models.AnswerIncorrect
		if correct {
			status = models.AnswerCorrect
		}

		return models.AnswerResult{Status: status, Correct: &correct}
	default:
		return models.AnswerResult{Status: models.AnswerRequiresManualReview}
	}
}
