package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// SemanticCacheStore persists semantic cache entries.
type SemanticCacheStore interface {
	Save(ctx context.Context, e *models.SemanticCacheEntry) error
	FindByContentHash(ctx context.Context, category models.CacheCategory, contentHash string) (*models.SemanticCacheEntry, error)
	ListCandidates(ctx context.Context, category models.CacheCategory, limit int) ([]models.SemanticCacheEntry, error)
	RecordHit(ctx context.Context, id uuid.UUID) error
}

func errCacheEntryNotFound() error {
	return huberrors.NewNotFoundError("semantic cache entry", "semantic cache entry not found")
}

// SemanticCacheRepository handles data access for semantic_cache_entries.
type SemanticCacheRepository struct {
	db *pgxpool.Pool
}

var _ SemanticCacheStore = (*SemanticCacheRepository)(nil)

// NewSemanticCacheRepository creates a new semantic cache repository.
func NewSemanticCacheRepository(db *pgxpool.Pool) *SemanticCacheRepository {
	return &SemanticCacheRepository{db: db}
}

const cacheEntryColumns = `id, content_type, audience, variant, content_hash, semantic_hash, embedding,
	artifact_ref, hit_count, created_at, last_hit_at`

func scanCacheEntry(row pgx.Row) (*models.SemanticCacheEntry, error) {
	var (
		e   models.SemanticCacheEntry
		vec pgvector.Vector
	)

	err := row.Scan(
		&e.ID, &e.Category.ContentType, &e.Category.Audience, &e.Category.Variant, &e.ContentHash,
		&e.SemanticHash, &vec, &e.ArtifactRef, &e.HitCount, &e.CreatedAt, &e.LastHitAt,
	)
	if err != nil {
		return nil, err
	}

	e.Embedding = vec.Slice()

	return &e, nil
}

// Save inserts the entry. An entry with the same category and content hash is re-pointed at the new artifact.
func (r *SemanticCacheRepository) Save(ctx context.Context, e *models.SemanticCacheEntry) error {
	prepareEntry(e)

	err := r.db.QueryRow(ctx, `
		INSERT INTO semantic_cache_entries (`+cacheEntryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_type, audience, variant, content_hash) DO UPDATE SET
			semantic_hash = EXCLUDED.semantic_hash, embedding = EXCLUDED.embedding,
			artifact_ref = EXCLUDED.artifact_ref
		RETURNING id, hit_count, created_at`,
		e.ID, e.Category.ContentType, e.Category.Audience, e.Category.Variant, e.ContentHash, e.SemanticHash,
		pgvector.NewVector(e.Embedding), e.ArtifactRef, e.HitCount, e.CreatedAt, e.LastHitAt,
	).Scan(&e.ID, &e.HitCount, &e.CreatedAt)
	if err != nil {
		return huberrors.NewStoreUnavailableError("save cache entry", err)
	}

	return nil
}

// FindByContentHash returns the entry with an identical input in the category, or nil.
func (r *SemanticCacheRepository) FindByContentHash(
	ctx context.Context, category models.CacheCategory, contentHash string,
) (*models.SemanticCacheEntry, error) {
	e, err := scanCacheEntry(r.db.QueryRow(ctx, `
		SELECT `+cacheEntryColumns+` FROM semantic_cache_entries
		WHERE content_type = $1 AND audience = $2 AND variant = $3 AND content_hash = $4`,
		category.ContentType, category.Audience, category.Variant, contentHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // absent entry is not an error
		}

		return nil, huberrors.NewStoreUnavailableError("find cache entry", err)
	}

	return e, nil
}

// ListCandidates returns up to limit entries of the category, most recently used first.
func (r *SemanticCacheRepository) ListCandidates(
	ctx context.Context, category models.CacheCategory, limit int,
) ([]models.SemanticCacheEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cacheEntryColumns+` FROM semantic_cache_entries
		WHERE content_type = $1 AND audience = $2 AND variant = $3
		ORDER BY COALESCE(last_hit_at, created_at) DESC, id ASC
		LIMIT $4`,
		category.ContentType, category.Audience, category.Variant, limit)
	if err != nil {
		return nil, huberrors.NewStoreUnavailableError("list cache candidates", err)
	}
	defer rows.Close()

	entries := []models.SemanticCacheEntry{}

	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, huberrors.NewStoreUnavailableError("list cache candidates", err)
		}

		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, huberrors.NewStoreUnavailableError("list cache candidates", err)
	}

	return entries, nil
}

// RecordHit increments the hit counter of an entry.
func (r *SemanticCacheRepository) RecordHit(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE semantic_cache_entries SET hit_count = hit_count + 1, last_hit_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return huberrors.NewStoreUnavailableError("record cache hit", err)
	}

	if tag.RowsAffected() == 0 {
		return errCacheEntryNotFound()
	}

	return nil
}

func prepareEntry(e *models.SemanticCacheEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}
