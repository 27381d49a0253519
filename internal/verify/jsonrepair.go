package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be recovered from a model
// response.
var ErrNoJSON = errors.New("no JSON object found in model response")

var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

// ParseModelJSON recovers a JSON object from raw model output. It locates the
// first balanced {...} span, tries a strict parse, and on failure applies
// textual repairs (code fences, trailing commas, literal newlines inside
// strings) before reparsing. Failure here is an ordinary parse-failure
// outcome for the caller's retry loop.
func ParseModelJSON(raw string) (map[string]interface{}, error) {
	candidate := stripCodeFences(raw)

	span, ok := extractJSONObject(candidate)
	if !ok {
		// Fences may have hidden the braces in the trimmed candidate.
		if span, ok = extractJSONObject(raw); !ok {
			return nil, ErrNoJSON
		}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(span), &parsed); err == nil {
		return parsed, nil
	}

	repaired := repairJSON(span)
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("JSON parse failed after repair: %w", err)
	}
	return parsed, nil
}

// extractJSONObject finds the first balanced top-level {...} span, ignoring
// braces inside string literals.
func extractJSONObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
			continue
		}
		if ch == '}' {
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}

// stripCodeFences unwraps a markdown-fenced block if the response carries one.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	start := strings.Index(trimmed, "```")
	end := strings.Index(trimmed[start+3:], "```")
	if end == -1 {
		return trimmed
	}
	content := trimmed[start+3 : start+3+end]
	// Drop an opening language tag ("json", etc).
	if idx := strings.Index(content, "\n"); idx != -1 {
		content = content[idx+1:]
	}
	return strings.TrimSpace(content)
}

// repairJSON applies best-effort textual repairs to a near-valid JSON span.
// Valid JSON passes through unchanged in meaning.
func repairJSON(span string) string {
	repaired := escapeNewlinesInStrings(span)
	repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")
	return repaired
}

// escapeNewlinesInStrings replaces literal control characters that appear
// inside quoted string spans with their escape sequences. Models sometimes
// emit raw newlines inside narrative fields.
func escapeNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			b.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			b.WriteByte(ch)
			continue
		}
		if inString {
			switch ch {
			case '\n':
				b.WriteString(`\n`)
				continue
			case '\r':
				b.WriteString(`\r`)
				continue
			case '\t':
				b.WriteString(`\t`)
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}
