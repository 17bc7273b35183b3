package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentType is the kind of generated artifact.
type ContentType string

// Artifact content types.
const (
	ContentTypeAnalysis ContentType = "analysis"
	ContentTypeCourse   ContentType = "course"
	ContentTypeLesson   ContentType = "lesson"
	ContentTypeQuiz     ContentType = "quiz"
)

// ArtifactStatus is the review status of an artifact.
type ArtifactStatus string

// Artifact statuses.
const (
	ArtifactStatusDraft     ArtifactStatus = "draft"
	ArtifactStatusApproved  ArtifactStatus = "approved"
	ArtifactStatusPublished ArtifactStatus = "published"
)

// Artifact is the persisted output of one pipeline stage with its provenance and cost.
type Artifact struct {
	ID               uuid.UUID       `json:"id"`
	RunID            uuid.UUID       `json:"run_id"`
	ParentID         *uuid.UUID      `json:"parent_id,omitempty"`
	ContentType      ContentType     `json:"content_type"`
	SourceType       string          `json:"source_type"`
	SourceID         string          `json:"source_id"`
	SourceTitle      string          `json:"source_title"`
	GeneratedData    json.RawMessage `json:"generated_data"`
	ModelUsed        string          `json:"model_used"`
	TokensUsed       int             `json:"tokens_used"`
	CostUSD          float64         `json:"cost_usd"`
	GenerationTimeMs int64           `json:"generation_time_ms"`
	Status           ArtifactStatus  `json:"status"`
	ConfidenceScore  int             `json:"confidence_score"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListArtifactsFilters represents filters for listing artifacts.
type ListArtifactsFilters struct {
	SourceType  string     `form:"source_type" validate:"omitempty,no_null_bytes,max=64"`
	SourceID    string     `form:"source_id" validate:"omitempty,no_null_bytes,max=255"`
	ContentType string     `form:"content_type" validate:"omitempty,oneof=analysis course lesson quiz"`
	RunID       *uuid.UUID `form:"run_id"`
	Limit       int        `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset      int        `form:"offset" validate:"omitempty,min=0"`
}

// ListArtifactsResponse represents the response for listing artifacts.
type ListArtifactsResponse struct {
	Data   []Artifact `json:"data"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// UpdateArtifactStatusRequest moves an artifact through review.
type UpdateArtifactStatusRequest struct {
	Status ArtifactStatus `json:"status" validate:"required,oneof=draft approved published"`
}
