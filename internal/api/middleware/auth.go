package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/edulane/coursegen/internal/api/response"
)

// Auth middleware validates the static API key from the Authorization header.
func Auth(apiKey string) func(http.Handler) http.Handler {
	// Comparing digests keeps the comparison constant-time regardless of the presented key length.
	want := sha256.Sum256([]byte(apiKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RespondUnauthorized(w, "Missing Authorization header")

				return
			}

			// Expected format: "Bearer <api-key>"
			scheme, key, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				response.RespondUnauthorized(w, "Invalid Authorization header format. Expected: Bearer <api-key>")

				return
			}

			key = strings.TrimSpace(key)
			if key == "" {
				response.RespondUnauthorized(w, "API key is empty")

				return
			}

			got := sha256.Sum256([]byte(key))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				response.RespondUnauthorized(w, "Invalid API key")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
