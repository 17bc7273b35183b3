package generation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/service"
)

const testModel = "test-model"

type mockCompleter struct {
	mu           sync.Mutex
	requests     []llm.Request
	completeFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}

	return respond("{}"), nil
}

func (m *mockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]llm.Request(nil), m.requests...)
}

func respond(text string) *llm.Response {
	return &llm.Response{
		Text:  text,
		Model: testModel,
		Usage: llm.Usage{PromptTokens: 1000, CompletionTokens: 500},
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return string(b)
}

// fixedCompleter always answers text.
func fixedCompleter(text string) *mockCompleter {
	return &mockCompleter{completeFunc: func(context.Context, llm.Request) (*llm.Response, error) {
		return respond(text), nil
	}}
}

// stageOf tells which stage built a request from its system prompt.
func stageOf(req llm.Request) string {
	switch {
	case strings.Contains(req.SystemPrompt, "assessing source material"):
		return StageAnalysis
	case strings.Contains(req.SystemPrompt, "course outlines"):
		return StageStructure
	case strings.Contains(req.SystemPrompt, "course author"):
		return StageContent
	case strings.Contains(req.SystemPrompt, "assessment designer"):
		return StageAssessment
	default:
		return ""
	}
}

// pipelineCompleter answers every stage with valid output. Overrides replace the answer for one stage.
func pipelineCompleter(overrides map[string]func(req llm.Request) (*llm.Response, error)) *mockCompleter {
	return &mockCompleter{completeFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
		stage := stageOf(req)
		if f, ok := overrides[stage]; ok {
			return f(req)
		}

		switch stage {
		case StageAnalysis:
			return respond(mustJSON(sampleAnalysis())), nil
		case StageStructure:
			return respond(mustJSON(sampleOutline())), nil
		case StageContent:
			return respond(mustJSON(sampleLesson())), nil
		case StageAssessment:
			return respond(mustJSON(sampleQuiz())), nil
		default:
			return respond("{}"), nil
		}
	}}
}

func sampleAnalysis() models.Analysis {
	return models.Analysis{
		Difficulty:     6,
		Audience:       "beginner",
		Topics:         []string{"goroutines", "channels"},
		Granularity:    "detailed",
		EstimatedHours: 12,
		Summary:        "An introduction to concurrency in Go.",
	}
}

func sampleOutline() models.Outline {
	return models.Outline{
		Title:       "Concurrency in Go",
		Description: "From goroutines to pipelines.",
		Modules: []models.OutlineModule{
			{
				Title: "Foundations",
				Lessons: []models.OutlineNode{
					{Title: "Goroutines", Type: "lesson", DurationMinutes: 20, LearningObjectives: []string{"start a goroutine"}},
					{Title: "Channels", Type: "lesson", DurationMinutes: 25, LearningObjectives: []string{"send and receive"}},
				},
			},
			{
				Title: "Patterns",
				Lessons: []models.OutlineNode{
					{Title: "Pipelines", Type: "lab", DurationMinutes: 40, LearningObjectives: []string{"build a pipeline"}},
				},
			},
		},
	}
}

func sampleLesson() models.LessonContent {
	return models.LessonContent{
		Introduction: "Concurrency lets programs do many things at once.",
		MainContent:  strings.Repeat("A goroutine is a lightweight thread managed by the runtime. ", 10),
		KeyTakeaways: []string{"goroutines are cheap"},
		Examples:     []string{"go worker()"},
		Summary:      "Goroutines make concurrency approachable.",
	}
}

func sampleQuiz() models.Quiz {
	return models.Quiz{
		Title: "Foundations quiz",
		Questions: []models.Question{
			{
				Type:           models.QuestionMultipleChoice,
				Prompt:         "Which keyword starts a goroutine?",
				Options:        []string{"go", "defer", "func"},
				CorrectAnswer:  "go",
				Difficulty:     "easy",
				CognitiveLevel: models.CognitiveRemember,
				Explanation:    "The go statement starts a goroutine.",
			},
			{
				Type:          models.QuestionTrueFalse,
				Prompt:        "Unbuffered channels block until both sides are ready.",
				CorrectAnswer: "True",
				Explanation:   "Send and receive synchronize.",
			},
		},
	}
}

type mockRetriever struct {
	mu         sync.Mutex
	queries    []string
	groundFunc func(ctx context.Context, ref models.SourceRef, query string, count, fallbackN int) (service.Grounding, error)
}

func (m *mockRetriever) Ground(
	ctx context.Context, ref models.SourceRef, query string, count, fallbackN int,
) (service.Grounding, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.groundFunc != nil {
		return m.groundFunc(ctx, ref, query, count, fallbackN)
	}

	return service.Grounding{}, nil
}

func groundWith(text string, pages ...int) *mockRetriever {
	return &mockRetriever{groundFunc: func(context.Context, models.SourceRef, string, int, int) (service.Grounding, error) {
		chunks := []models.SimilarityResult{}

		for i, p := range pages {
			page := p
			chunks = append(chunks, models.SimilarityResult{ChunkIndex: i, Text: text, PageNumber: &page, Score: 0.9})
		}

		if len(pages) == 0 {
			chunks = append(chunks, models.SimilarityResult{Text: text, Score: 0.9})
		}

		return service.Grounding{Chunks: chunks}, nil
	}}
}

func testSource() *models.Source {
	return &models.Source{
		Type:  models.SourceTypeBook,
		ID:    "go-concurrency",
		Title: "Go Concurrency",
		Pages: []models.Page{
			{Number: 1, Text: "Goroutines are functions that run concurrently with other functions."},
			{Number: 2, Text: "Channels are the pipes that connect concurrent goroutines."},
		},
	}
}
