package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/edulane/coursegen/internal/api/response"
)

// RequestBodyTooLargeRecorder counts requests rejected by MaxBody. Nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody rejects request bodies larger than maxBytes with 413 before the handler runs.
// Bodies are read up front, so handlers never see a truncated body. maxBytes <= 0 disables the limit.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)

				return
			}

			tooLarge := func() {
				if recorder != nil {
					recorder.RecordRequestBodyTooLarge(r.Context())
				}

				response.RespondStatus(w, http.StatusRequestEntityTooLarge, "request body exceeds maximum allowed size")
			}

			if r.ContentLength > maxBytes {
				tooLarge()

				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					tooLarge()

					return
				}

				response.RespondBadRequest(w, "Failed to read request body")

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))

			next.ServeHTTP(w, r)
		})
	}
}
