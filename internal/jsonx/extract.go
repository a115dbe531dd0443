// Package jsonx extracts JSON objects from raw model output. Model
// replies are frequently wrapped in prose or markdown fences, so
// extraction tries progressively looser strategies before giving up.
package jsonx

import (
	"encoding/json"
	"strings"
)

// ExtractObject attempts to parse a JSON object out of raw text.
// Strategies are tried in order:
//  1. the whole text as JSON
//  2. the text with markdown code fences stripped
//  3. the span from the first '{' to the last '}'
//
// Returns the parsed object and true, or nil and false if nothing parsed.
func ExtractObject(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	if obj, ok := parseObject(raw); ok {
		return obj, true
	}
	if obj, ok := parseObject(stripFences(raw)); ok {
		return obj, true
	}
	if obj, ok := parseObject(braceSpan(raw)); ok {
		return obj, true
	}
	return nil, false
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// stripFences removes a leading markdown code fence (with optional
// language tag) and a trailing fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// braceSpan returns the substring from the first '{' to the last '}',
// or empty if no such span exists.
func braceSpan(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
