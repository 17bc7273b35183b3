package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Check(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{"no database", nil, http.StatusOK},
		{"database reachable", pingFunc(func(context.Context) error { return nil }), http.StatusOK},
		{"database down", pingFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
