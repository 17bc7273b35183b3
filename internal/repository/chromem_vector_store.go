package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

const defaultCollectionName = "content_embeddings"

// Metadata keys used on chromem documents.
const (
	metaRecordID    = "record_id"
	metaContentType = "content_type"
	metaContentID   = "content_id"
	metaChunkIndex  = "chunk_index"
	metaTitle       = "title"
	metaPageNumber  = "page_number"
	metaExtra       = "metadata"
	metaUpdatedAt   = "updated_at"
)

var errNoEmbeddingFunc = errors.New("chromem store requires precomputed embeddings")

// ChromemVectorStore is an in-process VectorStore backed by chromem-go. Used for local runs and tests.
type ChromemVectorStore struct {
	mu         sync.Mutex
	collection *chromem.Collection
	// content key -> chunk indexes present
	chunks map[string]map[int]struct{}
}

var _ VectorStore = (*ChromemVectorStore)(nil)

// NewChromemVectorStore creates an empty in-memory store.
func NewChromemVectorStore() (*ChromemVectorStore, error) {
	collection, err := chromem.NewDB().GetOrCreateCollection(defaultCollectionName, nil,
		func(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc })
	if err != nil {
		return nil, fmt.Errorf("create chromem collection: %w", err)
	}

	return &ChromemVectorStore{collection: collection, chunks: make(map[string]map[int]struct{})}, nil
}

func contentKey(contentType, contentID string) string {
	return contentType + ":" + contentID
}

func documentID(contentType, contentID string, chunkIndex int) string {
	return contentKey(contentType, contentID) + ":" + strconv.Itoa(chunkIndex)
}

func (s *ChromemVectorStore) track(contentType, contentID string, idx int) {
	key := contentKey(contentType, contentID)
	if s.chunks[key] == nil {
		s.chunks[key] = make(map[int]struct{})
	}

	s.chunks[key][idx] = struct{}{}
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}

	return true
}

// Upsert stores rec under a deterministic document ID so re-adding the same chunk replaces it.
func (s *ChromemVectorStore) Upsert(ctx context.Context, rec *models.EmbeddingRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	if isZeroVector(rec.Embedding) {
		return errors.Join(ErrInvalidRecord, errors.New("embedding is a zero vector"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(rec.ContentType, rec.ContentID, rec.ChunkIndex)

	if existing, err := s.collection.GetByID(ctx, id); err == nil {
		if prev, perr := uuid.Parse(existing.Metadata[metaRecordID]); perr == nil {
			rec.ID = prev
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	rec.UpdatedAt = time.Now().UTC()

	meta := map[string]string{
		metaRecordID:    rec.ID.String(),
		metaContentType: rec.ContentType,
		metaContentID:   rec.ContentID,
		metaChunkIndex:  strconv.Itoa(rec.ChunkIndex),
		metaTitle:       rec.Title,
		metaUpdatedAt:   rec.UpdatedAt.Format(time.RFC3339Nano),
	}

	if rec.PageNumber != nil {
		meta[metaPageNumber] = strconv.Itoa(*rec.PageNumber)
	}

	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}

		meta[metaExtra] = string(raw)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   rec.Text,
		Metadata:  meta,
		Embedding: slices.Clone(rec.Embedding),
	}

	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return huberrors.NewStoreUnavailableError("upsert", err)
	}

	s.track(rec.ContentType, rec.ContentID, rec.ChunkIndex)

	return nil
}

// Search ranks every matching document and applies threshold, ordering and count itself so the
// result contract matches the Postgres repository exactly.
func (s *ChromemVectorStore) Search(
	ctx context.Context, query []float32, opts models.SearchOptions,
) ([]models.SimilarityResult, error) {
	results := []models.SimilarityResult{}
	if opts.Count <= 0 || len(query) == 0 || isZeroVector(query) {
		return results, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.collection.Count()
	if total == 0 {
		return results, nil
	}

	hits, err := s.collection.QueryEmbedding(ctx, slices.Clone(query), total, nil, nil)
	if err != nil {
		return nil, huberrors.NewStoreUnavailableError("search", err)
	}

	for _, hit := range hits {
		if opts.ContentType != "" && hit.Metadata[metaContentType] != opts.ContentType {
			continue
		}

		if opts.ContentID != "" && hit.Metadata[metaContentID] != opts.ContentID {
			continue
		}

		// Filter on the raw similarity like the SQL predicate; only the reported score is clamped.
		similarity := float64(hit.Similarity)
		if similarity < opts.Threshold {
			continue
		}

		res := resultFromDocument(hit.ID, hit.Content, hit.Metadata)
		res.Score = clampScore(similarity)
		results = append(results, res)
	}

	return rankResults(results, opts.Count), nil
}

// DeleteByContent removes all chunks of one content item.
func (s *ChromemVectorStore) DeleteByContent(ctx context.Context, contentType, contentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contentKey(contentType, contentID)

	indexes := s.chunks[key]
	if len(indexes) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(indexes))
	for idx := range indexes {
		ids = append(ids, documentID(contentType, contentID, idx))
	}

	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, huberrors.NewStoreUnavailableError("delete", err)
	}

	delete(s.chunks, key)

	return int64(len(ids)), nil
}

// ListByContent returns the first limit chunks of one content item in chunk order.
func (s *ChromemVectorStore) ListByContent(
	ctx context.Context, contentType, contentID string, limit int,
) ([]models.SimilarityResult, error) {
	results := []models.SimilarityResult{}
	if limit <= 0 {
		return results, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	indexes := make([]int, 0, len(s.chunks[contentKey(contentType, contentID)]))
	for idx := range s.chunks[contentKey(contentType, contentID)] {
		indexes = append(indexes, idx)
	}

	slices.Sort(indexes)

	for _, idx := range indexes {
		if len(results) == limit {
			break
		}

		doc, err := s.collection.GetByID(ctx, documentID(contentType, contentID, idx))
		if err != nil {
			return nil, huberrors.NewStoreUnavailableError("list", err)
		}

		results = append(results, resultFromDocument(doc.ID, doc.Content, doc.Metadata))
	}

	return results, nil
}

// CountByContent returns the number of stored chunks for one content item.
func (s *ChromemVectorStore) CountByContent(_ context.Context, contentType, contentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.chunks[contentKey(contentType, contentID)]), nil
}

func resultFromDocument(docID, content string, meta map[string]string) models.SimilarityResult {
	res := models.SimilarityResult{
		ContentType: meta[metaContentType],
		ContentID:   meta[metaContentID],
		Title:       meta[metaTitle],
		Text:        content,
	}

	if id, err := uuid.Parse(meta[metaRecordID]); err == nil {
		res.ID = id
	} else {
		res.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID))
	}

	res.ChunkIndex, _ = strconv.Atoi(meta[metaChunkIndex])

	if p, err := strconv.Atoi(meta[metaPageNumber]); err == nil {
		res.PageNumber = &p
	}

	if raw := meta[metaExtra]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &res.Metadata)
	}

	return res
}
