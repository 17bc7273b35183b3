package generation

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
)

const (
	structureTemperature = 0.7

	// DefaultStructureRetrievalCount is how many chunks ground an outline.
	DefaultStructureRetrievalCount = 8
	// DefaultFallbackChunks is how many leading chunks are used when retrieval finds nothing.
	DefaultFallbackChunks = 5

	defaultModuleCount      = 4
	defaultLessonsPerModule = 3
	defaultLessonMinutes    = 30
	defaultLessonType       = "lesson"
)

// Where the grounding text of a prompt came from.
const (
	GroundingRetrieval  = "retrieval"
	GroundingFallback   = "fallback_chunks"
	GroundingSourceHead = "source_head"
	GroundingProvided   = "provided"
	GroundingNone       = "none"
)

var errNoLessons = errors.New("outline has no lessons")

// StructureConfig shapes the generated outline.
type StructureConfig struct {
	TargetAudience   string `json:"target_audience,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	ModuleCount      int    `json:"module_count,omitempty" validate:"omitempty,min=1,max=20"`
	Mode             string `json:"mode,omitempty" validate:"omitempty,oneof=sequential modular"`
	LessonsPerModule int    `json:"lessons_per_module,omitempty" validate:"omitempty,min=1,max=20"`
}

// withDefaults fills unset fields, preferring what the analysis suggested.
func (c StructureConfig) withDefaults(a models.Analysis) StructureConfig {
	if c.TargetAudience == "" {
		c.TargetAudience = a.Audience
	}

	if c.TargetAudience == "" {
		c.TargetAudience = DefaultAudience
	}

	if c.ModuleCount <= 0 {
		c.ModuleCount = a.SuggestedModules
	}

	if c.ModuleCount <= 0 {
		c.ModuleCount = defaultModuleCount
	}

	if c.Mode == "" {
		c.Mode = ModeSequential
	}

	if c.LessonsPerModule <= 0 {
		c.LessonsPerModule = defaultLessonsPerModule
	}

	return c
}

// StructureStage turns an analysis and grounding chunks into a module/lesson outline.
type StructureStage struct {
	caller
	retriever Retriever
	count     int
	fallbackN int
	window    int
	weights   ScoreWeights
}

// StructureStageParams configures StructureStage.
type StructureStageParams struct {
	StageParams
	Retriever      Retriever
	RetrievalCount int
	FallbackChunks int
	WindowRunes    int
}

// NewStructureStage creates a StructureStage.
func NewStructureStage(p StructureStageParams) *StructureStage {
	s := &StructureStage{
		caller:    newCaller(p.StageParams),
		retriever: p.Retriever,
		count:     p.RetrievalCount,
		fallbackN: p.FallbackChunks,
		window:    p.WindowRunes,
		weights:   p.weights(),
	}

	if s.count <= 0 {
		s.count = DefaultStructureRetrievalCount
	}

	if s.fallbackN <= 0 {
		s.fallbackN = DefaultFallbackChunks
	}

	if s.window <= 0 {
		s.window = DefaultWindowRunes
	}

	return s
}

// GenerateStructure produces the course outline. Model output without a title or modules
// is returned as a *huberrors.MalformedLLMResponseError.
func (s *StructureStage) GenerateStructure(
	ctx context.Context, src *models.Source, analysis models.Analysis, cfg StructureConfig,
) (out *StageOutput[models.Outline], err error) {
	ctx, span := observability.StartSpan(ctx, "generation.structure",
		attribute.String("source_type", src.Type), attribute.String("source_id", src.ID))
	defer func() { observability.EndSpan(span, err) }()

	cfg = cfg.withDefaults(analysis)

	query := strings.TrimSpace(src.Title + " " + strings.Join(analysis.Topics, " "))
	grounding, origin := ground(ctx, s.logger, s.retriever, src.Ref(), query, s.count, s.fallbackN)

	text := grounding.Text()
	if text == "" {
		text = headWindow(src.Text(), s.window)
		origin = GroundingSourceHead
	}

	comp, err := s.complete(ctx, StageStructure, structurePrompt(src.Title, analysis, cfg, text), structureTemperature)
	if err != nil {
		return nil, err
	}

	res := llm.ParseJSON[models.Outline](comp.text, "title", "modules")
	if res.Status != llm.Valid {
		return nil, s.malformed(ctx, StageStructure, comp, res.Missing, res.Err)
	}

	outline := normalizeOutline(res.Value)
	if outline.LessonCount() == 0 {
		return nil, s.malformed(ctx, StageStructure, comp, []string{"modules.lessons"}, errNoLessons)
	}

	out = output(comp, outline)
	out.Metadata["grounding"] = origin
	out.Metadata["grounding_chunks"] = len(grounding.Chunks)
	out.Metadata["source_pages"] = grounding.Pages()
	out.Metadata["module_count"] = len(outline.Modules)
	out.Metadata["lesson_count"] = outline.LessonCount()
	out.Metadata["mode"] = cfg.Mode
	out.Confidence = ScoreOutline(outline, OutlineSignals{
		GroundingChunks:  len(grounding.Chunks),
		Fallback:         origin != GroundingRetrieval,
		RequestedModules: cfg.ModuleCount,
	}, s.weights)

	s.record(ctx, StageStructure, "success", comp.duration, comp.usage, comp.cost)

	s.logger.InfoContext(ctx, "outline generated",
		"source_id", src.ID,
		"modules", len(outline.Modules),
		"lessons", outline.LessonCount(),
		"grounding", origin,
	)

	return out, nil
}

// normalizeOutline trims text, drops untitled modules and lessons, and fills lesson defaults.
func normalizeOutline(o models.Outline) models.Outline {
	out := models.Outline{
		Title:       strings.TrimSpace(o.Title),
		Description: strings.TrimSpace(o.Description),
		Modules:     []models.OutlineModule{},
	}

	for _, m := range o.Modules {
		m.Title = strings.TrimSpace(m.Title)
		m.Description = strings.TrimSpace(m.Description)

		lessons := []models.OutlineNode{}

		for _, n := range m.Lessons {
			if n.Title = strings.TrimSpace(n.Title); n.Title == "" {
				continue
			}

			if n.Type = strings.ToLower(strings.TrimSpace(n.Type)); n.Type == "" {
				n.Type = defaultLessonType
			}

			if n.DurationMinutes <= 0 {
				n.DurationMinutes = defaultLessonMinutes
			}

			n.LearningObjectives = cleanStrings(n.LearningObjectives)
			lessons = append(lessons, n)
		}

		if m.Title == "" || len(lessons) == 0 {
			continue
		}

		m.Lessons = lessons
		out.Modules = append(out.Modules, m)
	}

	return out
}
