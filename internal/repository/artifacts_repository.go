package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// ArtifactStore persists generated artifacts.
type ArtifactStore interface {
	Save(ctx context.Context, a *models.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
	List(ctx context.Context, filters *models.ListArtifactsFilters) ([]models.Artifact, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) (*models.Artifact, error)
}

// ErrArtifactNotFound is returned when no artifact exists for an ID. It matches huberrors.ErrNotFound.
var ErrArtifactNotFound = huberrors.NewNotFoundError("artifact", "artifact not found")

// ArtifactsRepository handles data access for generation_artifacts.
type ArtifactsRepository struct {
	db *pgxpool.Pool
}

var _ ArtifactStore = (*ArtifactsRepository)(nil)

// NewArtifactsRepository creates a new artifacts repository.
func NewArtifactsRepository(db *pgxpool.Pool) *ArtifactsRepository {
	return &ArtifactsRepository{db: db}
}

const artifactColumns = `id, run_id, parent_id, content_type, source_type, source_id, source_title, generated_data,
	model_used, tokens_used, cost_usd, generation_time_ms, status, confidence_score, metadata, created_at, updated_at`

func scanArtifact(row pgx.Row) (*models.Artifact, error) {
	var a models.Artifact

	err := row.Scan(
		&a.ID, &a.RunID, &a.ParentID, &a.ContentType, &a.SourceType, &a.SourceID, &a.SourceTitle, &a.GeneratedData,
		&a.ModelUsed, &a.TokensUsed, &a.CostUSD, &a.GenerationTimeMs, &a.Status, &a.ConfidenceScore, &a.Metadata,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Save inserts the artifact, or replaces the row with the same ID.
func (r *ArtifactsRepository) Save(ctx context.Context, a *models.Artifact) error {
	prepareArtifact(a)

	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO generation_artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			generated_data = EXCLUDED.generated_data, model_used = EXCLUDED.model_used,
			tokens_used = EXCLUDED.tokens_used, cost_usd = EXCLUDED.cost_usd,
			generation_time_ms = EXCLUDED.generation_time_ms, status = EXCLUDED.status,
			confidence_score = EXCLUDED.confidence_score, metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		a.ID, a.RunID, a.ParentID, a.ContentType, a.SourceType, a.SourceID, a.SourceTitle, []byte(a.GeneratedData),
		a.ModelUsed, a.TokensUsed, a.CostUSD, a.GenerationTimeMs, a.Status, a.ConfidenceScore, metadata,
		a.CreatedAt, a.UpdatedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return huberrors.NewStoreUnavailableError("save artifact", err)
	}

	return nil
}

// GetByID retrieves a single artifact.
func (r *ArtifactsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	a, err := scanArtifact(r.db.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM generation_artifacts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}

		return nil, huberrors.NewStoreUnavailableError("get artifact", err)
	}

	return a, nil
}

// buildArtifactsFilterConditions builds WHERE clause conditions and arguments from filters.
func buildArtifactsFilterConditions(filters *models.ListArtifactsFilters) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filters.SourceType != "" {
		args = append(args, filters.SourceType)
		conditions = append(conditions, fmt.Sprintf("source_type = $%d", len(args)))
	}

	if filters.SourceID != "" {
		args = append(args, filters.SourceID)
		conditions = append(conditions, fmt.Sprintf("source_id = $%d", len(args)))
	}

	if filters.ContentType != "" {
		args = append(args, filters.ContentType)
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", len(args)))
	}

	if filters.RunID != nil {
		args = append(args, *filters.RunID)
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves artifacts newest first.
func (r *ArtifactsRepository) List(ctx context.Context, filters *models.ListArtifactsFilters) ([]models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM generation_artifacts`

	whereClause, args := buildArtifactsFilterConditions(filters)
	query += whereClause + " ORDER BY created_at DESC, id ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, huberrors.NewStoreUnavailableError("list artifacts", err)
	}
	defer rows.Close()

	artifacts := []models.Artifact{}

	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, huberrors.NewStoreUnavailableError("list artifacts", err)
		}

		artifacts = append(artifacts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, huberrors.NewStoreUnavailableError("list artifacts", err)
	}

	return artifacts, nil
}

// UpdateStatus moves an artifact to a new review status.
func (r *ArtifactsRepository) UpdateStatus(
	ctx context.Context, id uuid.UUID, status models.ArtifactStatus,
) (*models.Artifact, error) {
	a, err := scanArtifact(r.db.QueryRow(ctx, `
		UPDATE generation_artifacts SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+artifactColumns, status, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}

		return nil, huberrors.NewStoreUnavailableError("update artifact status", err)
	}

	return a, nil
}

func prepareArtifact(a *models.Artifact) {
	now := time.Now().UTC()

	if a.ID == uuid.Nil {
		a.ID = uuid.Must(uuid.NewV7())
	}

	if a.Status == "" {
		a.Status = models.ArtifactStatusDraft
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	a.UpdatedAt = now
}
