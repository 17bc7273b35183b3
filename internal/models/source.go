package models

import "strings"

// Source types known to the pipeline.
const (
	SourceTypeBook     = "book"
	SourceTypeDocument = "document"
	SourceTypeCourse   = "course"
)

// IsValidSourceType reports whether t is a known source type.
func IsValidSourceType(t string) bool {
	switch t {
	case SourceTypeBook, SourceTypeDocument, SourceTypeCourse:
		return true
	default:
		return false
	}
}

// Page is one page (or the whole body, for unpaged sources) of a source document.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Source is a document the pipeline indexes and generates courses from.
type Source struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Pages []Page `json:"pages"`
}

// Ref returns the source reference for s.
func (s *Source) Ref() SourceRef {
	return SourceRef{Type: s.Type, ID: s.ID, Title: s.Title}
}

// Text returns the full text with pages joined by paragraph breaks.
func (s *Source) Text() string {
	parts := make([]string, 0, len(s.Pages))

	for _, p := range s.Pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, "\n\n")
}

// SourceRef identifies a source without carrying its text.
type SourceRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}
