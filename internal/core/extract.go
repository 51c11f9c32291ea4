package core

import (
	"fmt"
	"strings"
)

// NoUpdateMarker is the reply a model gives when guidance needs no change
const NoUpdateMarker = "NO_UPDATE_NEEDED"

// ExtractJSON finds the JSON object in a model reply. It accepts a bare
// object, an object inside a ```json block, or falls back to the text between
// the first '{' and the last '}'.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		if end := objectEnd(text); end > 0 {
			return text[:end], nil
		}
	}

	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object in response: %q", shorten(text, 200))
}

// objectEnd returns the offset just past the brace closing the object that
// starts text, or 0 if it is never closed. Braces inside strings are skipped.
func objectEnd(text string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
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
				return i + 1
			}
		}
	}
	return 0
}

// ExtractFenced returns the content of the first fenced code block in text.
// Without a fence the trimmed text itself is returned.
func ExtractFenced(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	// Skip the info string (```markdown, ```md, ...)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
