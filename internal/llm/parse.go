package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseStatus classifies model output.
type ParseStatus int

const (
	// Valid output decoded and has every required field.
	Valid ParseStatus = iota
	// Incomplete output is a JSON object but lacks required fields.
	Incomplete
	// Unparseable output is not a JSON object or does not decode into the target type.
	Unparseable
)

// String returns the status name used in logs and artifact metadata.
func (s ParseStatus) String() string {
	switch s {
	case Valid:
		return "valid"
	case Incomplete:
		return "incomplete"
	case Unparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("ParseStatus(%d)", int(s))
	}
}

// ErrNoJSONObject is returned when the text contains no JSON object.
var ErrNoJSONObject = errors.New("llm: no JSON object in response")

// ParseResult is the tagged outcome of ParseJSON.
// Fields holds the raw top-level members whenever the text was a JSON object,
// so callers can recover field by field when Value failed to decode.
type ParseResult[T any] struct {
	Status  ParseStatus
	Value   T
	Fields  map[string]json.RawMessage
	Missing []string
	Err     error
}

// ParseJSON extracts the JSON object in text (tolerating markdown code fences and
// surrounding prose), checks that every required top-level key is present and
// non-empty, and decodes it into T.
func ParseJSON[T any](text string, required ...string) ParseResult[T] {
	var res ParseResult[T]

	raw, err := extractObject(text)
	if err != nil {
		res.Status = Unparseable
		res.Err = err

		return res
	}

	if err := json.Unmarshal(raw, &res.Fields); err != nil {
		res.Status = Unparseable
		res.Err = fmt.Errorf("decode object: %w", err)

		return res
	}

	for _, key := range required {
		if isEmptyJSON(res.Fields[key]) {
			res.Missing = append(res.Missing, key)
		}
	}

	if err := json.Unmarshal(raw, &res.Value); err != nil {
		res.Status = Unparseable
		res.Err = fmt.Errorf("decode value: %w", err)

		return res
	}

	if len(res.Missing) > 0 {
		res.Status = Incomplete

		return res
	}

	res.Status = Valid

	return res
}

// extractObject returns the outermost {...} span of text after stripping code fences.
func extractObject(text string) ([]byte, error) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:] // drop the language tag line
		}

		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')

	if start < 0 || end <= start {
		return nil, ErrNoJSONObject
	}

	return []byte(s[start : end+1]), nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)

	switch string(v) {
	case "", "null", `""`, "[]", "{}":
		return true
	default:
		return false
	}
}

// DecodeField decodes one raw top-level member into dst. It reports false when the
// member is missing, empty or of the wrong type, leaving dst unchanged.
func DecodeField[V any](fields map[string]json.RawMessage, key string, dst *V) bool {
	raw, ok := fields[key]
	if !ok || isEmptyJSON(raw) {
		return false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}

	*dst = v

	return true
}
