// Package jobs provides the River workers that index sources and generate courses in the background.
package jobs

import (
	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/generation"
)

// Queue names.
const (
	QueueIndexing   = "indexing"
	QueueGeneration = "generation"
)

// IndexSourceArgs asks for one source to be chunked, embedded and stored.
type IndexSourceArgs struct {
	SourceType string `json:"source_type" river:"unique"`
	SourceID   string `json:"source_id"   river:"unique"`
}

// Kind returns the job type identifier for River.
func (IndexSourceArgs) Kind() string { return "index_source" }

// GenerateCourseArgs asks for one generation run. RunID is assigned when the job is enqueued
// so callers can poll artifacts by run before the job starts.
type GenerateCourseArgs struct {
	RunID           uuid.UUID                  `json:"run_id"      river:"unique"`
	SourceType      string                     `json:"source_type"`
	SourceID        string                     `json:"source_id"`
	Structure       generation.StructureConfig `json:"structure"`
	Content         generation.ContentConfig   `json:"content"`
	GenerateQuizzes bool                       `json:"generate_quizzes"`
	Quiz            generation.QuizConfig      `json:"quiz"`
}

// Kind returns the job type identifier for River.
func (GenerateCourseArgs) Kind() string { return "generate_course" }

// RunRequest converts the job arguments to an orchestrator request.
func (a GenerateCourseArgs) RunRequest() generation.RunRequest {
	return generation.RunRequest{
		RunID:           a.RunID,
		SourceType:      a.SourceType,
		SourceID:        a.SourceID,
		Structure:       a.Structure,
		Content:         a.Content,
		GenerateQuizzes: a.GenerateQuizzes,
		Quiz:            a.Quiz,
	}
}
