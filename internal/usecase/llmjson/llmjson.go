// Package llmjson decodes JSON objects out of model output, which often
// arrives wrapped in markdown fences or surrounded by prose.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"a2a-router/internal/domain"
)

var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFences removes one surrounding markdown code fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// Decode parses the JSON object in raw into a T. When the cleaned text is not
// valid JSON the outermost {...} span is tried before giving up.
func Decode[T any](raw string) (T, error) {
	var out T
	text := StripCodeFences(raw)
	if text == "" {
		return out, fmt.Errorf("%w: empty output", domain.ErrMalformedOutput)
	}

	err := json.Unmarshal([]byte(text), &out)
	if err == nil {
		return out, nil
	}
	start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		var retry T
		if json.Unmarshal([]byte(text[start:end+1]), &retry) == nil {
			return retry, nil
		}
	}
	return out, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
