package models

// Outline granularities suggested by the analysis.
const (
	GranularityCoarse   = "coarse"
	GranularityStandard = "standard"
	GranularityDetailed = "detailed"
)

// Analysis is the difficulty, audience and topic assessment of a source.
type Analysis struct {
	Difficulty       int      `json:"difficulty"`
	Audience         string   `json:"audience"`
	Topics           []string `json:"topics"`
	Granularity      string   `json:"granularity"`
	EstimatedHours   float64  `json:"estimated_hours"`
	Summary          string   `json:"summary"`
	Prerequisites    []string `json:"prerequisites,omitempty"`
	SuggestedModules int      `json:"suggested_modules,omitempty"`
}

// Outline is the module/lesson structure of a course.
type Outline struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Modules     []OutlineModule `json:"modules"`
}

// OutlineModule groups lessons.
type OutlineModule struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Lessons     []OutlineNode `json:"lessons"`
}

// OutlineNode is one lesson slot of an outline.
type OutlineNode struct {
	Title              string   `json:"title"`
	Type               string   `json:"type"`
	DurationMinutes    int      `json:"duration_minutes"`
	LearningObjectives []string `json:"learning_objectives"`
	SourcePages        []int    `json:"source_pages,omitempty"`
}

// Nodes returns every lesson of the outline in module order.
func (o *Outline) Nodes() []OutlineNode {
	var nodes []OutlineNode

	for _, m := range o.Modules {
		nodes = append(nodes, m.Lessons...)
	}

	return nodes
}

// LessonCount returns the number of lessons across all modules.
func (o *Outline) LessonCount() int {
	n := 0
	for _, m := range o.Modules {
		n += len(m.Lessons)
	}

	return n
}

// LessonContent is the generated body of one lesson.
type LessonContent struct {
	Introduction string   `json:"introduction"`
	MainContent  string   `json:"main_content"`
	Examples     []string `json:"examples,omitempty"`
	KeyTakeaways []string `json:"key_takeaways"`
	Exercises    []string `json:"exercises,omitempty"`
	Summary      string   `json:"summary"`
}

// Text returns the prose of the lesson, used for length checks and cache keys.
func (c *LessonContent) Text() string {
	return c.Introduction + "\n\n" + c.MainContent + "\n\n" + c.Summary
}
