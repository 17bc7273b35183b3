package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// EmbeddingsRepository stores chunk vectors in Postgres with pgvector.
type EmbeddingsRepository struct {
	db *pgxpool.Pool
}

var _ VectorStore = (*EmbeddingsRepository)(nil)

// NewEmbeddingsRepository creates a new embeddings repository.
func NewEmbeddingsRepository(db *pgxpool.Pool) *EmbeddingsRepository {
	return &EmbeddingsRepository{db: db}
}

// Upsert inserts the record or replaces the row with the same (content_type, content_id, chunk_index).
// The stored ID and UpdatedAt are written back to rec.
func (r *EmbeddingsRepository) Upsert(ctx context.Context, rec *models.EmbeddingRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := time.Now().UTC()

	err := r.db.QueryRow(ctx, `
		INSERT INTO content_embeddings
			(id, content_type, content_id, chunk_index, title, text, embedding, page_number, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (content_type, content_id, chunk_index)
		DO UPDATE SET title = EXCLUDED.title, text = EXCLUDED.text, embedding = EXCLUDED.embedding,
			page_number = EXCLUDED.page_number, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
		RETURNING id, updated_at`,
		rec.ID, rec.ContentType, rec.ContentID, rec.ChunkIndex, rec.Title, rec.Text,
		pgvector.NewVector(rec.Embedding), rec.PageNumber, metadata, now,
	).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return huberrors.NewStoreUnavailableError("upsert", err)
	}

	return nil
}

// buildSearchQuery renders the similarity query. Scores are cosine similarity; ties break on chunk_index.
func buildSearchQuery(query []float32, opts models.SearchOptions) (string, []any) {
	args := []any{pgvector.NewVector(query), opts.Threshold}
	conditions := []string{"1 - (embedding <=> $1) >= $2"}

	if opts.ContentType != "" {
		args = append(args, opts.ContentType)
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", len(args)))
	}

	if opts.ContentID != "" {
		args = append(args, opts.ContentID)
		conditions = append(conditions, fmt.Sprintf("content_id = $%d", len(args)))
	}

	args = append(args, opts.Count)

	sql := `
		SELECT id, content_type, content_id, chunk_index, title, text, page_number, metadata,
			1 - (embedding <=> $1) AS score
		FROM content_embeddings
		WHERE ` + strings.Join(conditions, " AND ") + fmt.Sprintf(`
		ORDER BY score DESC, chunk_index ASC
		LIMIT $%d`, len(args))

	return sql, args
}

// Search returns up to opts.Count chunks with similarity >= opts.Threshold, best first.
func (r *EmbeddingsRepository) Search(
	ctx context.Context, query []float32, opts models.SearchOptions,
) ([]models.SimilarityResult, error) {
	results := []models.SimilarityResult{}
	if opts.Count <= 0 || len(query) == 0 {
		return results, nil
	}

	sql, args := buildSearchQuery(query, opts)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, huberrors.NewStoreUnavailableError("search", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res models.SimilarityResult
		if err := rows.Scan(
			&res.ID, &res.ContentType, &res.ContentID, &res.ChunkIndex, &res.Title, &res.Text,
			&res.PageNumber, &res.Metadata, &res.Score,
		); err != nil {
			return nil, huberrors.NewStoreUnavailableError("search", err)
		}

		res.Score = clampScore(res.Score)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, huberrors.NewStoreUnavailableError("search", err)
	}

	return results, nil
}

// DeleteByContent removes every chunk of one content item and reports how many rows went away.
func (r *EmbeddingsRepository) DeleteByContent(ctx context.Context, contentType, contentID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM content_embeddings WHERE content_type = $1 AND content_id = $2`,
		contentType, contentID,
	)
	if err != nil {
		return 0, huberrors.NewStoreUnavailableError("delete", err)
	}

	return tag.RowsAffected(), nil
}

// ListByContent returns the first limit chunks of one content item in chunk order. Used as the
// retrieval fallback when a similarity search comes back empty.
func (r *EmbeddingsRepository) ListByContent(
	ctx context.Context, contentType, contentID string, limit int,
) ([]models.SimilarityResult, error) {
	results := []models.SimilarityResult{}
	if limit <= 0 {
		return results, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, content_type, content_id, chunk_index, title, text, page_number, metadata
		FROM content_embeddings
		WHERE content_type = $1 AND content_id = $2
		ORDER BY chunk_index ASC
		LIMIT $3`, contentType, contentID, limit)
	if err != nil {
		return nil, huberrors.NewStoreUnavailableError("list", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res models.SimilarityResult
		if err := rows.Scan(
			&res.ID, &res.ContentType, &res.ContentID, &res.ChunkIndex, &res.Title, &res.Text,
			&res.PageNumber, &res.Metadata,
		); err != nil {
			return nil, huberrors.NewStoreUnavailableError("list", err)
		}

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, huberrors.NewStoreUnavailableError("list", err)
	}

	return results, nil
}

// CountByContent returns the number of stored chunks for one content item.
func (r *EmbeddingsRepository) CountByContent(ctx context.Context, contentType, contentID string) (int, error) {
	var n int

	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM content_embeddings WHERE content_type = $1 AND content_id = $2`,
		contentType, contentID,
	).Scan(&n)
	if err != nil {
		return 0, huberrors.NewStoreUnavailableError("count", err)
	}

	return n, nil
}
