package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/service"
)

type mockSearchService struct {
	searchFunc func(ctx context.Context, req *models.SearchRequest) ([]models.SimilarityResult, error)
}

func (m *mockSearchService) Search(ctx context.Context, req *models.SearchRequest) ([]models.SimilarityResult, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, req)
	}

	return nil, nil
}

func postSearch(t *testing.T, handler *SearchHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://test/v1/search", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.Search(rec, req)

	return rec
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("success returns 200 with results", func(t *testing.T) {
		id := uuid.MustParse("018e1234-5678-9abc-def0-111111111111")
		page := 4
		mock := &mockSearchService{
			searchFunc: func(_ context.Context, req *models.SearchRequest) ([]models.SimilarityResult, error) {
				assert.Equal(t, "what is a goroutine", req.Query)
				require.NotNil(t, req.Threshold)
				assert.InDelta(t, 0.6, *req.Threshold, 1e-9)
				assert.Equal(t, 3, req.Limit)
				assert.Equal(t, models.SourceTypeBook, req.ContentType)

				return []models.SimilarityResult{
					{ID: id, ContentType: "book", ContentID: "go", Text: "A goroutine is...", PageNumber: &page, Score: 0.91},
				}, nil
			},
		}

		rec := postSearch(t, NewSearchHandler(mock, nil),
			`{"query":"what is a goroutine","threshold":0.6,"limit":3,"content_type":"book"}`)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp models.SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, id, resp.Results[0].ID)
		assert.InDelta(t, 0.91, resp.Results[0].Score, 1e-9)
		assert.Equal(t, 4, *resp.Results[0].PageNumber)
	})

	t.Run("no results returns an empty array", func(t *testing.T) {
		rec := postSearch(t, NewSearchHandler(&mockSearchService{}, nil), `{"query":"nothing"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		called := false
		mock := &mockSearchService{searchFunc: func(context.Context, *models.SearchRequest) ([]models.SimilarityResult, error) {
			called = true

			return nil, nil
		}}

		for _, body := range []string{`{`, `{"query":"x","topK":3}`, `{"query":"x"} {"query":"y"}`} {
			rec := postSearch(t, NewSearchHandler(mock, nil), body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}

		assert.False(t, called)
	})

	t.Run("validation failures list the field", func(t *testing.T) {
		rec := postSearch(t, NewSearchHandler(&mockSearchService{}, nil), `{"query":"x","threshold":1.5}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"location":"threshold"`)
	})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"blank query", service.ErrEmptyQuery, http.StatusBadRequest},
		{"bad threshold", service.ErrInvalidThreshold, http.StatusBadRequest},
		{"embedding failure", huberrors.NewEmbeddingServiceError("openai", errors.New("429")), http.StatusServiceUnavailable},
		{"store failure", huberrors.NewStoreUnavailableError("search", errors.New("conn refused")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSearchService{searchFunc: func(context.Context, *models.SearchRequest) ([]models.SimilarityResult, error) {
				return nil, tt.err
			}}

			rec := postSearch(t, NewSearchHandler(mock, nil), `{"query":"  goroutines "}`)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}
