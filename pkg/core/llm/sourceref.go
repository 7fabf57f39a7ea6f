package llm

import "strings"

// NormalizeSource implements spec.md §3's SourceRef normalization: strip
// surrounding whitespace and a trailing punctuation class, prefix bare
// "www." hosts with "https://", and reject anything that doesn't start with
// http(s)://. Returns ("", false) for rejected input.
func NormalizeSource(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, `.,;:)]}>"'`)

	if strings.HasPrefix(s, "www.") {
		s = "https://" + s
	}

	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", false
	}
	return s, true
}

// SourceCollector accumulates normalized, deduplicated source URLs in
// first-seen order — the accumulation rule spec.md §4.1 requires of the
// LLM Call Facade's sources list.
type SourceCollector struct {
	seen    map[string]struct{}
	ordered []string
}

// NewSourceCollector constructs an empty collector.
func NewSourceCollector() *SourceCollector {
	return &SourceCollector{seen: make(map[string]struct{})}
}

// Add normalizes and appends raw if it is a valid, not-yet-seen source.
func (c *SourceCollector) Add(raw string) {
	normalized, ok := NormalizeSource(raw)
	if !ok {
		return
	}
	if _, dup := c.seen[normalized]; dup {
		return
	}
	c.seen[normalized] = struct{}{}
	c.ordered = append(c.ordered, normalized)
}

// Sources returns the accumulated list in first-seen order.
func (c *SourceCollector) Sources() []string {
	return append([]string(nil), c.ordered...)
}

// ExtractSources walks an arbitrary nested result shape (maps, slices,
// strings) looking for URL-bearing fields — "url", "href", "source",
// "url_citation" nested under "url" — or any bare string containing an
// http(s):// substring, per spec.md §4.1. Every match is passed through
// NormalizeSource before being added.
func ExtractSources(value any, into *SourceCollector) {
	switch v := value.(type) {
	case string:
		if idx := strings.Index(v, "http://"); idx >= 0 {
			into.Add(v[idx:])
		} else if idx := strings.Index(v, "https://"); idx >= 0 {
			into.Add(v[idx:])
		}
	case map[string]any:
		for _, key := range []string{"url", "href", "source"} {
			if s, ok := v[key].(string); ok {
				into.Add(s)
			}
		}
		if citation, ok := v["url_citation"].(map[string]any); ok {
			if s, ok := citation["url"].(string); ok {
				into.Add(s)
			}
		}
		for _, nested := range v {
			switch nested.(type) {
			case map[string]any, []any:
				ExtractSources(nested, into)
			}
		}
	case []any:
		for _, item := range v {
			ExtractSources(item, into)
		}
	}
}
