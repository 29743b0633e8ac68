// Package llmjson extracts JSON objects from free-form model output.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON signals that no JSON object could be extracted.
var ErrNoJSON = errors.New("no JSON object in model output")

var fenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// Extract returns the first JSON object found in text.
// It tries, in order: the whole text, the first code fence, the first balanced {...} span.
func Extract(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoJSON
	}
	if isObject(text) {
		return json.RawMessage(text), nil
	}
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); isObject(inner) {
			return json.RawMessage(inner), nil
		}
	}
	if span, ok := balancedObject(text); ok && isObject(span) {
		return json.RawMessage(span), nil
	}
	return nil, ErrNoJSON
}

// Decode extracts the first JSON object from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v) //nolint:wrapcheck // json errors are self-describing
}

// ObjectOrRaw decodes the first JSON object or wraps the raw text as
// {"raw_response": text, "parse_error": true}.
func ObjectOrRaw(text string) map[string]any {
	var m map[string]any
	if err := Decode(text, &m); err == nil && m != nil {
		return m
	}
	return map[string]any{"raw_response": text, "parse_error": true}
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var m map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &m) == nil
}

// balancedObject finds the span from the first '{' to its matching '}',
// ignoring braces inside JSON strings.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
