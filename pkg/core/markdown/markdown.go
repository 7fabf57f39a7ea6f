// Package markdown cleans and validates a markdown report body. Adapted
// from the teacher's pkg/core/utils/markdown.go, unchanged in mechanism.
// No other package in this module calls it: the Synthesizer hands its
// report to the HTML renderer hook without passing it through here.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// Clean strips conversational filler and an outer fenced code block
// (```markdown ... ``` or ``` ... ```) an LLM sometimes wraps its answer in.
func Clean(input string) string {
	cleaned := strings.TrimSpace(input)

	switch {
	case strings.HasPrefix(cleaned, "```markdown") && strings.HasSuffix(cleaned, "```"):
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	case strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```"):
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	return cleaned
}

// Validate reports whether input parses as Markdown. Goldmark is
// permissive, so this only catches gross structural failures.
func Validate(input string) bool {
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(input))
	doc := parser.Parse(reader)
	return doc != nil
}
