package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObjects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"bare object", `{"step":"THINK"}`, []string{`{"step":"THINK"}`}},
		{"markdown fence", "```json\n{\"step\":\"OUTPUT\",\"content\":\"done\"}\n```", []string{`{"step":"OUTPUT","content":"done"}`}},
		{"prose around", `Sure! Here you go: {"a":1} Hope that helps.`, []string{`{"a":1}`}},
		{"nested", `{"input":{"html":"<p>","outDir":"x"}}`, []string{`{"input":{"html":"<p>","outDir":"x"}}`}},
		{"braces in strings", `{"content":"use } and { freely \" ok"}`, []string{`{"content":"use } and { freely \" ok"}`}},
		{"two objects", "{\"step\":\"THINK\"}\n{\"step\":\"TOOL\"}", []string{`{"step":"THINK"}`, `{"step":"TOOL"}`}},
		{"unterminated", `{"step":"THINK"`, nil},
		{"stray brace in prose", `Step { one: {"a":1}`, []string{`{"a":1}`}},
		{"no object", "I cannot help with that.", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractObjects(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	// "é" is two bytes; cutting inside it backs off to the rune start.
	assert.Equal(t, "a...", Truncate("aé", 2))
}
