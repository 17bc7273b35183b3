package repository

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/edulane/coursegen/internal/models"
)

// VectorStore is the persistence contract for chunk embeddings. Both the pgvector repository
// and the in-process chromem store satisfy it.
type VectorStore interface {
	Upsert(ctx context.Context, rec *models.EmbeddingRecord) error
	Search(ctx context.Context, query []float32, opts models.SearchOptions) ([]models.SimilarityResult, error)
	DeleteByContent(ctx context.Context, contentType, contentID string) (int64, error)
	ListByContent(ctx context.Context, contentType, contentID string, limit int) ([]models.SimilarityResult, error)
	CountByContent(ctx context.Context, contentType, contentID string) (int, error)
}

var (
	// ErrInvalidRecord is returned when an embedding record is missing its key or vector.
	ErrInvalidRecord = errors.New("invalid embedding record")
)

func validateRecord(rec *models.EmbeddingRecord) error {
	switch {
	case rec == nil:
		return ErrInvalidRecord
	case rec.ContentType == "" || rec.ContentID == "":
		return errors.Join(ErrInvalidRecord, errors.New("content_type and content_id are required"))
	case rec.ChunkIndex < 0:
		return errors.Join(ErrInvalidRecord, errors.New("chunk_index must be non-negative"))
	case len(rec.Embedding) == 0:
		return errors.Join(ErrInvalidRecord, errors.New("embedding is empty"))
	}

	return nil
}

func clampScore(s float64) float64 {
	return min(max(s, 0), 1)
}

// rankResults orders by score descending then chunk_index ascending, and keeps the first count.
func rankResults(results []models.SimilarityResult, count int) []models.SimilarityResult {
	slices.SortStableFunc(results, func(a, b models.SimilarityResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}

		return cmp.Compare(a.ChunkIndex, b.ChunkIndex)
	})

	if len(results) > count {
		results = results[:count]
	}

	return results
}
