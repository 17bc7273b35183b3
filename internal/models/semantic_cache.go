package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheCategory is the coarse pre-filter for semantic cache candidates.
// Entries are only compared within the same category.
type CacheCategory struct {
	ContentType string `json:"content_type"`
	Audience    string `json:"audience"`
	Variant     string `json:"variant"`
}

// SemanticCacheEntry maps the embedding of an input to a derived artifact.
type SemanticCacheEntry struct {
	ID           uuid.UUID     `json:"id"`
	ContentHash  string        `json:"content_hash"`
	SemanticHash string        `json:"semantic_hash"`
	Embedding    []float32     `json:"-"`
	Category     CacheCategory `json:"category"`
	ArtifactRef  uuid.UUID     `json:"artifact_ref"`
	HitCount     int64         `json:"hit_count"`
	CreatedAt    time.Time     `json:"created_at"`
	LastHitAt    *time.Time    `json:"last_hit_at,omitempty"`
}

// CacheMatch is a semantic cache hit with its similarity score.
type CacheMatch struct {
	Entry SemanticCacheEntry `json:"entry"`
	Score float64            `json:"score"`
	Exact bool               `json:"exact"`
}
