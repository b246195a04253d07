package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Extraction failure reasons.
const (
	ReasonParseError = "parse_error"
	ReasonNoProvider = "no_provider_available"
)

// ExtractionFailure describes why a model reply could not be turned into a
// JSON object. Raw keeps the reply text for diagnostics when there was one.
type ExtractionFailure struct {
	Reason string
	Raw    string
	Err    error
}

// Error implements the error interface.
func (f *ExtractionFailure) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}
	return f.Reason
}

// Unwrap exposes ErrMalformedOutput or ErrNoProviderAvailable to errors.Is.
func (f *ExtractionFailure) Unwrap() error {
	return f.Err
}

// StripFence trims text and removes a surrounding ``` fence, with or without
// a "json" language tag. Text without a leading fence is returned trimmed.
func StripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = s[3:]
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	return strings.TrimSpace(s)
}

// ParseObject strips an optional fence from text and checks that what remains
// is exactly one JSON object. It returns the object text.
func ParseObject(text string) ([]byte, error) {
	s := StripFence(text)
	if s == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}
	if s[0] != '{' {
		return nil, fmt.Errorf("%w: reply is not a JSON object", ErrMalformedOutput)
	}

	obj := []byte(s)
	if _, err := decodeObject(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// decodeObject decodes a single JSON object into a map.
func decodeObject(obj []byte) (map[string]any, error) {
	var m map[string]any
	if err := DecodeObject(obj, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object", ErrMalformedOutput)
	}
	return m, nil
}

// DecodeObject decodes obj into v and rejects trailing data after the value.
// Errors wrap ErrMalformedOutput.
func DecodeObject(obj []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON object", ErrMalformedOutput)
	}
	return nil
}
