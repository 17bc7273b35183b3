package generation

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
)

const (
	contentTemperature = 0.7

	// DefaultContentRetrievalCount is how many chunks ground one lesson.
	DefaultContentRetrievalCount = 5
	// DefaultTargetWords is the lesson length aimed for when none is configured.
	DefaultTargetWords = 800

	noMaterial = "(no source material was found for this lesson; rely on the objectives)"
)

// ContentConfig shapes lesson content.
type ContentConfig struct {
	Tone             string `json:"tone,omitempty" validate:"omitempty,oneof=conversational academic practical"`
	TargetWords      int    `json:"target_words,omitempty" validate:"omitempty,min=100,max=5000"`
	IncludeExamples  bool   `json:"include_examples,omitempty"`
	IncludeExercises bool   `json:"include_exercises,omitempty"`
	TargetAudience   string `json:"target_audience,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

// WithDefaults fills unset fields.
func (c ContentConfig) WithDefaults() ContentConfig {
	if _, ok := toneInstructions[c.Tone]; !ok {
		c.Tone = ToneConversational
	}

	if c.TargetWords <= 0 {
		c.TargetWords = DefaultTargetWords
	}

	if c.TargetAudience == "" {
		c.TargetAudience = DefaultAudience
	}

	return c
}

// ContentStage writes the body of one outline node.
type ContentStage struct {
	caller
	retriever Retriever
	count     int
	fallbackN int
	weights   ScoreWeights
}

// ContentStageParams configures ContentStage.
type ContentStageParams struct {
	StageParams
	Retriever      Retriever
	RetrievalCount int
	FallbackChunks int
}

// NewContentStage creates a ContentStage.
func NewContentStage(p ContentStageParams) *ContentStage {
	s := &ContentStage{
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

// lessonQuery is the retrieval key of a node: its title and objectives.
func lessonQuery(node models.OutlineNode) string {
	return strings.TrimSpace(node.Title + " " + strings.Join(node.LearningObjectives, " "))
}

// GenerateContent writes the lesson for node. Output without an introduction, main content
// or summary is returned as a *huberrors.MalformedLLMResponseError.
func (s *ContentStage) GenerateContent(
	ctx context.Context, ref models.SourceRef, node models.OutlineNode, cfg ContentConfig,
) (out *StageOutput[models.LessonContent], err error) {
	ctx, span := observability.StartSpan(ctx, "generation.content",
		attribute.String("source_id", ref.ID), attribute.String("lesson", node.Title))
	defer func() { observability.EndSpan(span, err) }()

	cfg = cfg.WithDefaults()

	grounding, origin := ground(ctx, s.logger, s.retriever, ref, lessonQuery(node), s.count, s.fallbackN)

	material := grounding.Text()
	if material == "" {
		material = noMaterial
		origin = GroundingNone
	}

	comp, err := s.complete(ctx, StageContent, contentPrompt(ref.Title, node, cfg, material), contentTemperature)
	if err != nil {
		return nil, err
	}

	res := llm.ParseJSON[models.LessonContent](comp.text, "introduction", "main_content", "summary")
	if res.Status != llm.Valid {
		return nil, s.malformed(ctx, StageContent, comp, res.Missing, res.Err)
	}

	content := normalizeLesson(res.Value)
	words := WordCount(content.Text())

	pages := slices.Clone(node.SourcePages)
	for _, p := range grounding.Pages() {
		if !slices.Contains(pages, p) {
			pages = append(pages, p)
		}
	}

	slices.Sort(pages)

	out = output(comp, content)
	out.Metadata["grounding"] = origin
	out.Metadata["grounding_chunks"] = len(grounding.Chunks)
	out.Metadata["source_pages"] = pages
	out.Metadata["tone"] = cfg.Tone
	out.Metadata["word_count"] = words
	out.Metadata["target_words"] = cfg.TargetWords
	out.Metadata["within_length_band"] = WithinLengthBand(words, cfg.TargetWords)
	out.Confidence = ScoreLesson(content, LessonSignals{
		GroundingChunks:    len(grounding.Chunks),
		Fallback:           origin != GroundingRetrieval,
		TargetWords:        cfg.TargetWords,
		ExamplesRequested:  cfg.IncludeExamples,
		ExercisesRequested: cfg.IncludeExercises,
	}, s.weights)

	s.record(ctx, StageContent, "success", comp.duration, comp.usage, comp.cost)

	return out, nil
}

func normalizeLesson(c models.LessonContent) models.LessonContent {
	return models.LessonContent{
		Introduction: strings.TrimSpace(c.Introduction),
		MainContent:  strings.TrimSpace(c.MainContent),
		Examples:     cleanStrings(c.Examples),
		KeyTakeaways: cleanStrings(c.KeyTakeaways),
		Exercises:    cleanStrings(c.Exercises),
		Summary:      strings.TrimSpace(c.Summary),
	}
}
