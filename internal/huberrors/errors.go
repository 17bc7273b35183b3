// Package huberrors provides sentinel and custom error types for the pipeline.
package huberrors

import "fmt"

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrSourceNotFound is the sentinel for missing sources (book, document, course).
var ErrSourceNotFound = &SourceNotFoundError{}

// SourceNotFoundError is returned when a source to index or analyze does not exist or has no text.
type SourceNotFoundError struct {
	SourceType string
	SourceID   string
	Message    string
}

// NewSourceNotFoundError creates a SourceNotFoundError for the given source.
func NewSourceNotFoundError(sourceType, sourceID string) *SourceNotFoundError {
	return &SourceNotFoundError{SourceType: sourceType, SourceID: sourceID}
}

// Error implements the error interface.
func (e *SourceNotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.SourceID != "" {
		return fmt.Sprintf("source %s/%s not found", e.SourceType, e.SourceID)
	}

	return "source not found"
}

// Is implements the error interface for error comparison.
// A SourceNotFoundError also matches ErrNotFound so HTTP mapping stays uniform.
func (e *SourceNotFoundError) Is(target error) bool {
	switch target.(type) {
	case *SourceNotFoundError, *NotFoundError:
		return true
	default:
		return false
	}
}

// ErrEmbeddingService is the sentinel for embedding provider failures.
var ErrEmbeddingService = &EmbeddingServiceError{}

// EmbeddingServiceError wraps a failed or rejected embedding request. Not retried.
type EmbeddingServiceError struct {
	Provider string
	Err      error
}

// NewEmbeddingServiceError wraps err as an EmbeddingServiceError.
func NewEmbeddingServiceError(provider string, err error) *EmbeddingServiceError {
	return &EmbeddingServiceError{Provider: provider, Err: err}
}

// Error implements the error interface.
func (e *EmbeddingServiceError) Error() string {
	msg := "embedding service error"
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying provider error.
func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *EmbeddingServiceError) Is(target error) bool {
	_, ok := target.(*EmbeddingServiceError)

	return ok
}

// ErrStoreUnavailable is the sentinel for vector/artifact store failures.
var ErrStoreUnavailable = &StoreUnavailableError{}

// StoreUnavailableError wraps a failed read or write against a store.
type StoreUnavailableError struct {
	Op  string
	Err error
}

// NewStoreUnavailableError wraps err as a StoreUnavailableError for operation op.
func NewStoreUnavailableError(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	msg := "store unavailable"
	if e.Op != "" {
		msg += " during " + e.Op
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying store error.
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *StoreUnavailableError) Is(target error) bool {
	_, ok := target.(*StoreUnavailableError)

	return ok
}

// ErrMalformedLLMResponse is the sentinel for model output that cannot be used.
var ErrMalformedLLMResponse = &MalformedLLMResponseError{}

// MalformedLLMResponseError is returned when model output is not valid JSON or lacks required fields.
type MalformedLLMResponseError struct {
	Stage         string
	MissingFields []string
	Err           error
}

// NewMalformedLLMResponseError creates a MalformedLLMResponseError for stage.
func NewMalformedLLMResponseError(stage string, missing []string, err error) *MalformedLLMResponseError {
	return &MalformedLLMResponseError{Stage: stage, MissingFields: missing, Err: err}
}

// Error implements the error interface.
func (e *MalformedLLMResponseError) Error() string {
	msg := "malformed llm response"
	if e.Stage != "" {
		msg += " in " + e.Stage
	}

	if len(e.MissingFields) > 0 {
		msg += fmt.Sprintf(": missing fields %v", e.MissingFields)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying parse error, if any.
func (e *MalformedLLMResponseError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *MalformedLLMResponseError) Is(target error) bool {
	_, ok := target.(*MalformedLLMResponseError)

	return ok
}
