package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/source"
)

const analysisTemperature = 0.3

// Analysis fallbacks for fields the model omits or gets wrong.
const (
	DefaultDifficulty     = 5
	DefaultAudience       = "intermediate"
	DefaultGranularity    = models.GranularityStandard
	DefaultEstimatedHours = 10
)

var (
	audiences     = map[string]bool{"beginner": true, "intermediate": true, "advanced": true}
	granularities = map[string]bool{
		models.GranularityCoarse: true, models.GranularityStandard: true, models.GranularityDetailed: true,
	}
)

// DefaultAnalysis returns the analysis used when nothing can be recovered from the model.
func DefaultAnalysis() models.Analysis {
	return models.Analysis{
		Difficulty:     DefaultDifficulty,
		Audience:       DefaultAudience,
		Topics:         []string{},
		Granularity:    DefaultGranularity,
		EstimatedHours: DefaultEstimatedHours,
		Summary:        "",
	}
}

// AnalysisStage assesses difficulty, audience and topics of a source.
// It never fails on model output: missing or invalid fields fall back to defaults.
type AnalysisStage struct {
	caller
	sources source.Loader
	window  int
	weights ScoreWeights
}

// AnalysisStageParams configures AnalysisStage.
type AnalysisStageParams struct {
	StageParams
	Sources     source.Loader
	WindowRunes int
}

// NewAnalysisStage creates an AnalysisStage.
func NewAnalysisStage(p AnalysisStageParams) *AnalysisStage {
	window := p.WindowRunes
	if window <= 0 {
		window = DefaultWindowRunes
	}

	return &AnalysisStage{
		caller:  newCaller(p.StageParams),
		sources: p.Sources,
		window:  window,
		weights: p.weights(),
	}
}

// Analyze loads the source and analyzes it. Only a load failure is returned as an error.
func (s *AnalysisStage) Analyze(
	ctx context.Context, sourceType, sourceID string,
) (*StageOutput[models.Analysis], error) {
	src, err := s.sources.Load(ctx, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	return s.AnalyzeSource(ctx, src)
}

// AnalyzeSource analyzes an already loaded source.
func (s *AnalysisStage) AnalyzeSource(ctx context.Context, src *models.Source) (out *StageOutput[models.Analysis], err error) {
	ctx, span := observability.StartSpan(ctx, "generation.analysis",
		attribute.String("source_type", src.Type), attribute.String("source_id", src.ID))
	defer func() { observability.EndSpan(span, err) }()

	excerpt := SampleWindows(src.Text(), s.window)

	comp, err := s.complete(ctx, StageAnalysis, analysisPrompt(src.Title, excerpt), analysisTemperature)
	if err != nil {
		if isCancelled(ctx, err) {
			return nil, err
		}

		s.logger.WarnContext(ctx, "analysis call failed, using defaults",
			"source_type", src.Type, "source_id", src.ID, "error", err)

		analysis, defaulted := recoverAnalysis(nil)

		out = &StageOutput[models.Analysis]{
			Value: analysis,
			Metadata: map[string]any{
				"degraded":         true,
				"defaulted_fields": defaulted,
				"llm_error":        err.Error(),
			},
		}
		out.Confidence = ScoreAnalysis(analysis, AnalysisSignals{
			Degraded:        true,
			DefaultedFields: len(defaulted),
		}, s.weights)

		return out, nil
	}

	res := llm.ParseJSON[models.Analysis](comp.text)
	analysis, defaulted := recoverAnalysis(res.Fields)
	degraded := res.Status == llm.Unparseable

	status := "success"
	if degraded || len(defaulted) > 0 {
		status = "degraded"

		s.logger.WarnContext(ctx, "analysis degraded to defaults",
			"source_id", src.ID, "parse_status", res.Status.String(), "defaulted_fields", defaulted)
	}

	out = output(comp, analysis)
	out.Metadata["parse_status"] = res.Status.String()
	out.Metadata["degraded"] = degraded
	out.Metadata["excerpt_runes"] = len([]rune(excerpt))

	if len(defaulted) > 0 {
		out.Metadata["defaulted_fields"] = defaulted
	}

	out.Confidence = ScoreAnalysis(analysis, AnalysisSignals{
		Degraded:        degraded,
		DefaultedFields: len(defaulted),
	}, s.weights)

	s.record(ctx, StageAnalysis, status, comp.duration, comp.usage, comp.cost)

	return out, nil
}

// recoverAnalysis decodes each field on its own so one bad field does not discard the rest.
// It returns the names of the fields that fell back to defaults.
func recoverAnalysis(fields map[string]json.RawMessage) (models.Analysis, []string) {
	a := DefaultAnalysis()
	defaulted := []string{}

	var difficulty int
	if llm.DecodeField(fields, "difficulty", &difficulty) && difficulty >= 1 && difficulty <= 10 {
		a.Difficulty = difficulty
	} else {
		defaulted = append(defaulted, "difficulty")
	}

	var audience string
	if llm.DecodeField(fields, "audience", &audience) && audiences[strings.ToLower(strings.TrimSpace(audience))] {
		a.Audience = strings.ToLower(strings.TrimSpace(audience))
	} else {
		defaulted = append(defaulted, "audience")
	}

	var topics []string
	if llm.DecodeField(fields, "topics", &topics) && len(cleanStrings(topics)) > 0 {
		a.Topics = cleanStrings(topics)
	} else {
		defaulted = append(defaulted, "topics")
	}

	var granularity string
	if llm.DecodeField(fields, "granularity", &granularity) &&
		granularities[strings.ToLower(strings.TrimSpace(granularity))] {
		a.Granularity = strings.ToLower(strings.TrimSpace(granularity))
	} else {
		defaulted = append(defaulted, "granularity")
	}

	var hours float64
	if llm.DecodeField(fields, "estimated_hours", &hours) && hours > 0 {
		a.EstimatedHours = hours
	} else {
		defaulted = append(defaulted, "estimated_hours")
	}

	var summary string
	if llm.DecodeField(fields, "summary", &summary) && strings.TrimSpace(summary) != "" {
		a.Summary = strings.TrimSpace(summary)
	} else {
		defaulted = append(defaulted, "summary")
	}

	// optional, never counted as defaulted
	var prerequisites []string
	if llm.DecodeField(fields, "prerequisites", &prerequisites) {
		a.Prerequisites = cleanStrings(prerequisites)
	}

	var modules int
	if llm.DecodeField(fields, "suggested_modules", &modules) && modules > 0 {
		a.SuggestedModules = modules
	}

	return a, defaulted
}

// cleanStrings trims entries and drops empty ones.
func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))

	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
