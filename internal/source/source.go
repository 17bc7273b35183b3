// Package source loads the documents the pipeline indexes and generates courses from.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// Loader resolves a source reference to its text.
type Loader interface {
	Load(ctx context.Context, sourceType, sourceID string) (*models.Source, error)
}

// Store is a Loader that can also persist sources.
type Store interface {
	Loader
	Save(ctx context.Context, src *models.Source) error
}

// Repository reads sources from the sources table.
type Repository struct {
	db *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new source repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Load returns the source, or a SourceNotFoundError when it is absent or has no text.
func (r *Repository) Load(ctx context.Context, sourceType, sourceID string) (*models.Source, error) {
	src := models.Source{Type: sourceType, ID: sourceID}

	err := r.db.QueryRow(ctx,
		`SELECT title, pages FROM sources WHERE source_type = $1 AND source_id = $2`,
		sourceType, sourceID,
	).Scan(&src.Title, &src.Pages)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewSourceNotFoundError(sourceType, sourceID)
		}

		return nil, huberrors.NewStoreUnavailableError("load source", err)
	}

	return checkText(&src)
}

// Save inserts or replaces a source.
func (r *Repository) Save(ctx context.Context, src *models.Source) error {
	pages := src.Pages
	if pages == nil {
		pages = []models.Page{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO sources (source_type, source_id, title, pages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_type, source_id)
		DO UPDATE SET title = EXCLUDED.title, pages = EXCLUDED.pages, updated_at = now()`,
		src.Type, src.ID, src.Title, pages,
	)
	if err != nil {
		return huberrors.NewStoreUnavailableError("save source", err)
	}

	return nil
}

// MemoryStore keeps sources in process.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string]models.Source
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with the given sources.
func NewMemoryStore(sources ...*models.Source) *MemoryStore {
	s := &MemoryStore{sources: make(map[string]models.Source)}
	for _, src := range sources {
		_ = s.Save(context.Background(), src)
	}

	return s
}

func key(sourceType, sourceID string) string {
	return sourceType + "/" + sourceID
}

// Load returns a copy of the stored source.
func (s *MemoryStore) Load(_ context.Context, sourceType, sourceID string) (*models.Source, error) {
	s.mu.RLock()
	src, ok := s.sources[key(sourceType, sourceID)]
	s.mu.RUnlock()

	if !ok {
		return nil, huberrors.NewSourceNotFoundError(sourceType, sourceID)
	}

	src.Pages = append([]models.Page(nil), src.Pages...)

	return checkText(&src)
}

// Save stores a copy of src.
func (s *MemoryStore) Save(_ context.Context, src *models.Source) error {
	if src == nil || src.Type == "" || src.ID == "" {
		return fmt.Errorf("source type and id are required")
	}

	cp := *src
	cp.Pages = append([]models.Page(nil), src.Pages...)

	s.mu.Lock()
	s.sources[key(src.Type, src.ID)] = cp
	s.mu.Unlock()

	return nil
}

func checkText(src *models.Source) (*models.Source, error) {
	if strings.TrimSpace(src.Text()) == "" {
		e := huberrors.NewSourceNotFoundError(src.Type, src.ID)
		e.Message = fmt.Sprintf("source %s/%s has no text", src.Type, src.ID)

		return nil, e
	}

	return src, nil
}
