package models

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a bounded, ordered slice of a source prepared for embedding.
type Chunk struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	PageNumber *int   `json:"page_number,omitempty"`
}

// EmbeddingRecord is one stored chunk vector. (ContentType, ContentID, ChunkIndex) is unique.
type EmbeddingRecord struct {
	ID          uuid.UUID      `json:"id"`
	ContentType string         `json:"content_type"`
	ContentID   string         `json:"content_id"`
	ChunkIndex  int            `json:"chunk_index"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	Embedding   []float32      `json:"-"`
	PageNumber  *int           `json:"page_number,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SimilarityResult is one ranked hit of a vector search.
type SimilarityResult struct {
	ID          uuid.UUID      `json:"id"`
	ContentType string         `json:"content_type"`
	ContentID   string         `json:"content_id"`
	ChunkIndex  int            `json:"chunk_index"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	PageNumber  *int           `json:"page_number,omitempty"`
	Score       float64        `json:"score"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SearchOptions restricts a vector search. Empty ContentType/ContentID means no filter.
type SearchOptions struct {
	Threshold   float64
	Count       int
	ContentType string
	ContentID   string
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query       string   `json:"query" validate:"required,no_null_bytes,min=1,max=10000"`
	Threshold   *float64 `json:"threshold,omitempty" validate:"omitempty,min=0,max=1"`
	Limit       int      `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	ContentType string   `json:"content_type,omitempty" validate:"omitempty,no_null_bytes,max=64"`
	ContentID   string   `json:"content_id,omitempty" validate:"omitempty,no_null_bytes,max=255"`
}

// SearchResponse is the body returned by POST /v1/search.
type SearchResponse struct {
	Results []SimilarityResult `json:"results"`
}

// IndexFailure records one chunk that could not be indexed.
type IndexFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Error      string `json:"error"`
}

// IndexSummary reports the outcome of indexing one source. Partial indexing is reported, never hidden.
type IndexSummary struct {
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	Total      int            `json:"total"`
	Indexed    int            `json:"indexed"`
	Failed     int            `json:"failed"`
	Deleted    int64          `json:"deleted"`
	Failures   []IndexFailure `json:"failures,omitempty"`
}
