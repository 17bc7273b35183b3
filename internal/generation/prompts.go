package generation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/edulane/coursegen/internal/models"
)

type prompt struct {
	system string
	user   string
}

const jsonOnly = "Respond with a single JSON object and nothing else."

// Lesson tones.
const (
	ToneConversational = "conversational"
	ToneAcademic       = "academic"
	TonePractical      = "practical"
)

var toneInstructions = map[string]string{
	ToneConversational: "Write in a warm, conversational voice. Address the learner as \"you\" and use everyday analogies.",
	ToneAcademic:       "Write in a precise academic register. Define terms before using them and cite the source material where relevant.",
	TonePractical:      "Write for practitioners. Lead with how the idea is applied and keep theory to what the learner needs to act.",
}

// Tones lists the supported lesson tones.
func Tones() []string {
	return []string{ToneConversational, ToneAcademic, TonePractical}
}

// Outline modes.
const (
	ModeSequential = "sequential"
	ModeModular    = "modular"
)

var modeInstructions = map[string]string{
	ModeSequential: "Each module builds on the previous one; order lessons from foundations to advanced material.",
	ModeModular:    "Modules must stand alone so learners can take them in any order.",
}

func analysisPrompt(title, excerpt string) prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Source title: %s\n\n", title)
	b.WriteString("Excerpts from the beginning, middle and end of the source:\n\n")
	b.WriteString(excerpt)
	b.WriteString("\n\nReturn JSON with these fields:\n")
	b.WriteString(`{"difficulty": 1-10, "audience": "beginner|intermediate|advanced", "topics": [string],` +
		` "granularity": "coarse|standard|detailed", "estimated_hours": number, "summary": string,` +
		` "prerequisites": [string], "suggested_modules": integer}`)

	return prompt{
		system: "You are an instructional designer assessing source material for a course. " + jsonOnly,
		user:   b.String(),
	}
}

func structurePrompt(title string, analysis models.Analysis, cfg StructureConfig, grounding string) prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Design a course from the source %q.\n\n", title)
	fmt.Fprintf(&b, "Analysis: difficulty %d/10, audience %s, granularity %s, about %.0f hours.\n",
		analysis.Difficulty, analysis.Audience, analysis.Granularity, analysis.EstimatedHours)

	if len(analysis.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s.\n", strings.Join(analysis.Topics, ", "))
	}

	if analysis.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", analysis.Summary)
	}

	fmt.Fprintf(&b, "\nTarget audience: %s.\n", cfg.TargetAudience)
	fmt.Fprintf(&b, "Modules: %d, about %d lessons each.\n", cfg.ModuleCount, cfg.LessonsPerModule)

	if instr, ok := modeInstructions[cfg.Mode]; ok {
		b.WriteString(instr + "\n")
	}

	b.WriteString("\nSource material:\n\n")
	b.WriteString(grounding)
	b.WriteString("\n\nReturn JSON:\n")
	b.WriteString(`{"title": string, "description": string, "modules": [{"title": string, "description": string,` +
		` "lessons": [{"title": string, "type": "lesson|lab|reading|review", "duration_minutes": integer,` +
		` "learning_objectives": [string], "source_pages": [integer]}]}]}`)

	return prompt{
		system: "You are an instructional designer building course outlines grounded in source material. " + jsonOnly,
		user:   b.String(),
	}
}

func contentPrompt(sourceTitle string, node models.OutlineNode, cfg ContentConfig, grounding string) prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Write the lesson %q for a course based on %q.\n", node.Title, sourceTitle)
	fmt.Fprintf(&b, "Audience: %s.\n", cfg.TargetAudience)

	if len(node.LearningObjectives) > 0 {
		b.WriteString("Learning objectives:\n")

		for _, o := range node.LearningObjectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}

	low, high := lengthBand(cfg.TargetWords)
	fmt.Fprintf(&b, "Length: between %d and %d words across introduction, main content and summary.\n", low, high)

	if cfg.IncludeExamples {
		b.WriteString("Include worked examples.\n")
	}

	if cfg.IncludeExercises {
		b.WriteString("Include practice exercises.\n")
	}

	b.WriteString("\nSource material:\n\n")
	b.WriteString(grounding)
	b.WriteString("\n\nReturn JSON:\n")
	b.WriteString(`{"introduction": string, "main_content": string, "examples": [string],` +
		` "key_takeaways": [string], "exercises": [string], "summary": string}`)

	return prompt{
		system: "You are a course author. " + toneInstructions[cfg.Tone] + " " + jsonOnly,
		user:   b.String(),
	}
}

func quizPrompt(title string, cfg QuizConfig, material string) prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Write %d quiz questions for %q.\n", cfg.QuestionCount, title)

	types := make([]string, 0, len(cfg.QuestionTypes))
	for _, t := range cfg.QuestionTypes {
		types = append(types, string(t))
	}

	fmt.Fprintf(&b, "Question types: %s.\n", strings.Join(types, ", "))

	if d := formatDistribution(cfg.DifficultyDistribution); d != "" {
		fmt.Fprintf(&b, "Difficulty mix: %s.\n", d)
	}

	levels := make(map[string]float64, len(cfg.CognitiveDistribution))
	for level, share := range cfg.CognitiveDistribution {
		levels[string(level)] = share
	}

	if d := formatDistribution(levels); d != "" {
		fmt.Fprintf(&b, "Cognitive level mix: %s.\n", d)
	}

	b.WriteString(`Multiple choice questions need "options" and a "correct_answer" equal to one option. ` +
		`True/false questions answer "true" or "false". Short answer questions need "sample_answers" ` +
		`and "key_points". Essay questions need a "rubric" of criteria with points.` + "\n")

	b.WriteString("\nMaterial:\n\n")
	b.WriteString(material)
	b.WriteString("\n\nReturn JSON:\n")
	b.WriteString(`{"title": string, "questions": [{"type": string, "question": string, "options": [string],` +
		` "correct_answer": string, "sample_answers": [string], "key_points": [string],` +
		` "rubric": [{"criterion": string, "points": integer}], "difficulty": "easy|medium|hard",` +
		` "cognitive_level": "remember|understand|apply|analyze|evaluate|create", "points": integer,` +
		` "explanation": string}]}`)

	return prompt{
		system: "You are an assessment designer writing fair, unambiguous questions. " + jsonOnly,
		user:   b.String(),
	}
}

func formatDistribution(dist map[string]float64) string {
	keys := make([]string, 0, len(dist))
	for k, v := range dist {
		if v > 0 {
			keys = append(keys, k)
		}
	}

	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", k, dist[k]*100))
	}

	return strings.Join(parts, ", ")
}

func lengthBand(target int) (int, int) {
	return int(float64(target) * 0.8), int(float64(target) * 1.2)
}
