package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/models"
)

// MemoryArtifactStore keeps artifacts in process. Values are copied on the way in and out.
type MemoryArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[uuid.UUID]models.Artifact
}

var _ ArtifactStore = (*MemoryArtifactStore)(nil)

// NewMemoryArtifactStore creates an empty store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{artifacts: make(map[uuid.UUID]models.Artifact)}
}

func copyArtifact(a models.Artifact) models.Artifact {
	a.GeneratedData = slices.Clone(a.GeneratedData)
	a.Metadata = maps.Clone(a.Metadata)

	if a.ParentID != nil {
		p := *a.ParentID
		a.ParentID = &p
	}

	return a
}

// Save stores a copy of the artifact keyed by ID.
func (s *MemoryArtifactStore) Save(_ context.Context, a *models.Artifact) error {
	prepareArtifact(a)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.artifacts[a.ID]; ok {
		a.CreatedAt = prev.CreatedAt
	}

	s.artifacts[a.ID] = copyArtifact(*a)

	return nil
}

// GetByID returns a copy of the stored artifact.
func (s *MemoryArtifactStore) GetByID(_ context.Context, id uuid.UUID) (*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}

	out := copyArtifact(a)

	return &out, nil
}

// List applies the same filters and ordering as the Postgres repository.
func (s *MemoryArtifactStore) List(_ context.Context, filters *models.ListArtifactsFilters) ([]models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Artifact{}

	for _, a := range s.artifacts {
		if filters.SourceType != "" && a.SourceType != filters.SourceType {
			continue
		}

		if filters.SourceID != "" && a.SourceID != filters.SourceID {
			continue
		}

		if filters.ContentType != "" && string(a.ContentType) != filters.ContentType {
			continue
		}

		if filters.RunID != nil && a.RunID != *filters.RunID {
			continue
		}

		out = append(out, copyArtifact(a))
	}

	slices.SortFunc(out, func(a, b models.Artifact) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return []models.Artifact{}, nil
		}

		out = out[filters.Offset:]
	}

	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}

	return out, nil
}

// UpdateStatus moves an artifact to a new review status.
func (s *MemoryArtifactStore) UpdateStatus(
	_ context.Context, id uuid.UUID, status models.ArtifactStatus,
) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}

	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	s.artifacts[id] = a

	out := copyArtifact(a)

	return &out, nil
}

// MemorySemanticCacheStore keeps semantic cache entries in process.
type MemorySemanticCacheStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]models.SemanticCacheEntry
}

var _ SemanticCacheStore = (*MemorySemanticCacheStore)(nil)

// NewMemorySemanticCacheStore creates an empty store.
func NewMemorySemanticCacheStore() *MemorySemanticCacheStore {
	return &MemorySemanticCacheStore{entries: make(map[uuid.UUID]models.SemanticCacheEntry)}
}

func copyEntry(e models.SemanticCacheEntry) models.SemanticCacheEntry {
	e.Embedding = slices.Clone(e.Embedding)

	if e.LastHitAt != nil {
		t := *e.LastHitAt
		e.LastHitAt = &t
	}

	return e
}

// Save stores the entry. An entry with the same category and content hash is replaced.
func (s *MemorySemanticCacheStore) Save(_ context.Context, e *models.SemanticCacheEntry) error {
	prepareEntry(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.entries {
		if existing.Category == e.Category && existing.ContentHash == e.ContentHash {
			e.ID = id
			e.CreatedAt = existing.CreatedAt
			e.HitCount = existing.HitCount

			break
		}
	}

	s.entries[e.ID] = copyEntry(*e)

	return nil
}

// FindByContentHash returns the entry with an identical input in the category, or nil.
func (s *MemorySemanticCacheStore) FindByContentHash(
	_ context.Context, category models.CacheCategory, contentHash string,
) (*models.SemanticCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Category == category && e.ContentHash == contentHash {
			out := copyEntry(e)

			return &out, nil
		}
	}

	return nil, nil //nolint:nilnil // absent entry is not an error
}

// ListCandidates returns up to limit entries of the category, most recently used first.
func (s *MemorySemanticCacheStore) ListCandidates(
	_ context.Context, category models.CacheCategory, limit int,
) ([]models.SemanticCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.SemanticCacheEntry{}

	for _, e := range s.entries {
		if e.Category == category {
			out = append(out, copyEntry(e))
		}
	}

	slices.SortFunc(out, compareCandidates)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// RecordHit increments the hit counter of an entry.
func (s *MemorySemanticCacheStore) RecordHit(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return errCacheEntryNotFound()
	}

	now := time.Now().UTC()
	e.HitCount++
	e.LastHitAt = &now
	s.entries[id] = e

	return nil
}

func lastUsed(e models.SemanticCacheEntry) time.Time {
	if e.LastHitAt != nil {
		return *e.LastHitAt
	}

	return e.CreatedAt
}

func compareCandidates(a, b models.SemanticCacheEntry) int {
	if c := lastUsed(b).Compare(lastUsed(a)); c != 0 {
		return c
	}

	return cmp.Compare(a.ID.String(), b.ID.String())
}
