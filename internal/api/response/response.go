// Package response writes JSON bodies and RFC 7807 problem documents.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrorDetail points at one invalid input, e.g. Location "quiz.question_types[0]".
type ErrorDetail struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// ProblemDetails is an RFC 7807 problem document.
type ProblemDetails struct {
	Type     string        `json:"type,omitempty"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

// retryAfter is advertised on 503s.
const retryAfter = 5 * time.Second

// RespondProblem writes p as application/problem+json. Empty Type and Title default to
// about:blank and the status text.
func RespondProblem(w http.ResponseWriter, p ProblemDetails) {
	if p.Type == "" {
		p.Type = "about:blank"
	}

	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}

	if p.Status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)

	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("Failed to encode problem response", "status", p.Status, "error", err)
	}
}

// RespondStatus writes a problem document titled with the standard status text.
func RespondStatus(w http.ResponseWriter, status int, detail string) {
	RespondProblem(w, ProblemDetails{Status: status, Detail: detail})
}

func RespondBadRequest(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusBadRequest, detail)
}

func RespondUnauthorized(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusUnauthorized, detail)
}

func RespondNotFound(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusNotFound, detail)
}

// RespondConflict is used when the target exists but is the wrong kind, e.g. validating
// an answer against a lesson.
func RespondConflict(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusConflict, detail)
}

func RespondInternalServerError(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusInternalServerError, detail)
}

// RespondBadGateway reports language model output that could not be used.
func RespondBadGateway(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusBadGateway, detail)
}

// RespondServiceUnavailable also sets Retry-After.
func RespondServiceUnavailable(w http.ResponseWriter, detail string) {
	RespondStatus(w, http.StatusServiceUnavailable, detail)
}

// RespondJSON writes data as the JSON body.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
