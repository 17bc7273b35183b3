package models

// QuestionType is the shape of a quiz question.
type QuestionType string

// Question shapes.
const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// CognitiveLevel is one level of the six-level taxonomy, from remember to create.
type CognitiveLevel string

// Cognitive levels, lowest first.
const (
	CognitiveRemember   CognitiveLevel = "remember"
	CognitiveUnderstand CognitiveLevel = "understand"
	CognitiveApply      CognitiveLevel = "apply"
	CognitiveAnalyze    CognitiveLevel = "analyze"
	CognitiveEvaluate   CognitiveLevel = "evaluate"
	CognitiveCreate     CognitiveLevel = "create"
)

// CognitiveLevels lists the taxonomy in ascending order.
var CognitiveLevels = []CognitiveLevel{
	CognitiveRemember, CognitiveUnderstand, CognitiveApply,
	CognitiveAnalyze, CognitiveEvaluate, CognitiveCreate,
}

// Difficulty labels requested per question.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// RubricItem is one point-weighted criterion of an essay rubric.
type RubricItem struct {
	Criterion string `json:"criterion"`
	Points    int    `json:"points"`
}

// Question is one quiz question. Which fields are set depends on Type.
type Question struct {
	Type                  QuestionType   `json:"type"`
	Prompt                string         `json:"question"`
	Options               []string       `json:"options,omitempty"`
	CorrectAnswer         string         `json:"correct_answer,omitempty"`
	SampleAnswers         []string       `json:"sample_answers,omitempty"`
	KeyPoints             []string       `json:"key_points,omitempty"`
	Rubric                []RubricItem   `json:"rubric,omitempty"`
	Difficulty            string         `json:"difficulty"`
	CognitiveLevel        CognitiveLevel `json:"cognitive_level"`
	Points                int            `json:"points"`
	Explanation           string         `json:"explanation,omitempty"`
	RequiresManualGrading bool           `json:"requires_manual_grading"`
}

// Quiz is a generated assessment.
type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerStatus is the outcome kind of answer validation.
type AnswerStatus string

// Answer statuses. RequiresManualReview never carries a score.
const (
	AnswerCorrect              AnswerStatus = "correct"
	AnswerIncorrect            AnswerStatus = "incorrect"
	AnswerRequiresManualReview AnswerStatus = "requires_manual_review"
)

// AnswerResult is the result of validating a submitted answer.
// Correct is nil when the question requires manual review.
type AnswerResult struct {
	Status  AnswerStatus `json:"status"`
	Correct *bool        `json:"correct,omitempty"`
}

// ValidateAnswerRequest is the body of POST /v1/artifacts/{id}/questions/{index}/validate.
type ValidateAnswerRequest struct {
	Answer string `json:"answer" validate:"no_null_bytes,max=20000"`
}
