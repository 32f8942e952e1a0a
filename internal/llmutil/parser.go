// internal/llmutil/parser.go
package llmutil

import (
	"strings"
	"unicode/utf8"
)

// ExtractObjects scans an LLM response and returns every top-level JSON
// object it contains, in order of appearance. Markdown fences and
// conversational text around the objects are ignored. Braces inside JSON
// strings are not counted, so a value such as "{not an object}" does not
// confuse the scan. A brace that never closes is skipped.
func ExtractObjects(response string) []string {
	var objects []string
	for i := 0; i < len(response); {
		start := strings.IndexByte(response[i:], '{')
		if start < 0 {
			break
		}
		start += i
		end := matchObject(response, start)
		if end < 0 {
			i = start + 1
			continue
		}
		objects = append(objects, response[start:end])
		i = end
	}
	return objects
}

// matchObject returns the index just past the brace that closes the object
// opened at s[start], or -1 when the input ends first.
func matchObject(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Truncate shortens s to at most maxLen bytes for logging, appending an
// ellipsis when something was cut. It never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
