package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

func TestMemoryArtifactStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save assigns id and defaults", func(t *testing.T) {
		s := NewMemoryArtifactStore()
		a := &models.Artifact{ContentType: models.ContentTypeCourse, SourceType: "book", SourceID: "1"}

		require.NoError(t, s.Save(ctx, a))

		assert.NotEqual(t, uuid.Nil, a.ID)
		assert.Equal(t, models.ArtifactStatusDraft, a.Status)
		assert.False(t, a.CreatedAt.IsZero())
	})

	t.Run("get returns an independent copy", func(t *testing.T) {
		s := NewMemoryArtifactStore()
		a := &models.Artifact{
			ContentType:   models.ContentTypeLesson,
			GeneratedData: json.RawMessage(`{"summary":"x"}`),
			Metadata:      map[string]any{"node_index": 1},
		}
		require.NoError(t, s.Save(ctx, a))

		got, err := s.GetByID(ctx, a.ID)
		require.NoError(t, err)
		got.Metadata["node_index"] = 99

		again, err := s.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Metadata["node_index"])
		assert.JSONEq(t, `{"summary":"x"}`, string(again.GeneratedData))
	})

	t.Run("missing artifact", func(t *testing.T) {
		s := NewMemoryArtifactStore()

		_, err := s.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, ErrArtifactNotFound)
		assert.ErrorIs(t, err, huberrors.ErrNotFound)

		_, err = s.UpdateStatus(ctx, uuid.New(), models.ArtifactStatusApproved)
		assert.ErrorIs(t, err, ErrArtifactNotFound)
	})

	t.Run("list filters and paginates", func(t *testing.T) {
		s := NewMemoryArtifactStore()
		runID := uuid.New()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, ct := range []models.ContentType{
			models.ContentTypeAnalysis, models.ContentTypeCourse, models.ContentTypeLesson, models.ContentTypeLesson,
		} {
			require.NoError(t, s.Save(ctx, &models.Artifact{
				RunID: runID, ContentType: ct, SourceType: "book", SourceID: "1",
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		require.NoError(t, s.Save(ctx, &models.Artifact{ContentType: models.ContentTypeLesson, SourceType: "book", SourceID: "2"}))

		lessons, err := s.List(ctx, &models.ListArtifactsFilters{SourceID: "1", ContentType: "lesson"})
		require.NoError(t, err)
		require.Len(t, lessons, 2)
		assert.True(t, lessons[0].CreatedAt.After(lessons[1].CreatedAt), "newest first")

		byRun, err := s.List(ctx, &models.ListArtifactsFilters{RunID: &runID, Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, byRun, 2)
		assert.Equal(t, models.ContentTypeLesson, byRun[0].ContentType)
		assert.Equal(t, models.ContentTypeCourse, byRun[1].ContentType)

		past, err := s.List(ctx, &models.ListArtifactsFilters{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, past)
	})

	t.Run("update status", func(t *testing.T) {
		s := NewMemoryArtifactStore()
		a := &models.Artifact{ContentType: models.ContentTypeQuiz}
		require.NoError(t, s.Save(ctx, a))

		updated, err := s.UpdateStatus(ctx, a.ID, models.ArtifactStatusPublished)

		require.NoError(t, err)
		assert.Equal(t, models.ArtifactStatusPublished, updated.Status)
	})
}

func TestMemorySemanticCacheStore(t *testing.T) {
	ctx := context.Background()
	category := models.CacheCategory{ContentType: "lesson", Audience: "beginner", Variant: "conversational"}

	t.Run("same content hash replaces the entry", func(t *testing.T) {
		s := NewMemorySemanticCacheStore()
		first := &models.SemanticCacheEntry{ContentHash: "h1", Category: category, ArtifactRef: uuid.New(), Embedding: []float32{1, 0}}
		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.RecordHit(ctx, first.ID))

		ref := uuid.New()
		second := &models.SemanticCacheEntry{ContentHash: "h1", Category: category, ArtifactRef: ref, Embedding: []float32{1, 0}}
		require.NoError(t, s.Save(ctx, second))

		assert.Equal(t, first.ID, second.ID)

		found, err := s.FindByContentHash(ctx, category, "h1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, ref, found.ArtifactRef)
		assert.Equal(t, int64(1), found.HitCount)
	})

	t.Run("categories are isolated", func(t *testing.T) {
		s := NewMemorySemanticCacheStore()
		require.NoError(t, s.Save(ctx, &models.SemanticCacheEntry{ContentHash: "h1", Category: category}))

		other := category
		other.Audience = "advanced"

		found, err := s.FindByContentHash(ctx, other, "h1")
		require.NoError(t, err)
		assert.Nil(t, found)

		candidates, err := s.ListCandidates(ctx, other, 10)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("candidates favour recent hits and respect the cap", func(t *testing.T) {
		s := NewMemorySemanticCacheStore()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		var ids []uuid.UUID

		for i := range 3 {
			e := &models.SemanticCacheEntry{
				ContentHash: string(rune('a' + i)), Category: category, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}
			require.NoError(t, s.Save(ctx, e))
			ids = append(ids, e.ID)
		}

		require.NoError(t, s.RecordHit(ctx, ids[0]))

		candidates, err := s.ListCandidates(ctx, category, 2)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, ids[0], candidates[0].ID)
		assert.Equal(t, ids[2], candidates[1].ID)
	})

	t.Run("hit on unknown entry", func(t *testing.T) {
		s := NewMemorySemanticCacheStore()

		assert.ErrorIs(t, s.RecordHit(ctx, uuid.New()), huberrors.ErrNotFound)
	})
}
