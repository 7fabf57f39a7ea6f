package llm

import (
	"reflect"
	"testing"
)

func TestNormalizeSource_AcceptsHTTPS(t *testing.T) {
	got, ok := NormalizeSource("  https://example.com/report.  ")
	if !ok {
		t.Fatalf("expected a valid https URL to be accepted")
	}
	if got != "https://example.com/report" {
		t.Fatalf("expected trailing punctuation trimmed, got %q", got)
	}
}

func TestNormalizeSource_PrefixesBareWWW(t *testing.T) {
	got, ok := NormalizeSource("www.example.com/data")
	if !ok {
		t.Fatalf("expected www. host to be accepted")
	}
	if got != "https://www.example.com/data" {
		t.Fatalf("expected https:// prefix added, got %q", got)
	}
}

func TestNormalizeSource_RejectsNonURL(t *testing.T) {
	if _, ok := NormalizeSource("just some text"); ok {
		t.Fatalf("expected plain text to be rejected")
	}
	if _, ok := NormalizeSource("ftp://example.com"); ok {
		t.Fatalf("expected a non-http(s) scheme to be rejected")
	}
}

func TestSourceCollector_DedupesInFirstSeenOrder(t *testing.T) {
	c := NewSourceCollector()
	c.Add("https://a.example/1")
	c.Add("https://b.example/2")
	c.Add("https://a.example/1")
	c.Add("not a url")

	got := c.Sources()
	want := []string{"https://a.example/1", "https://b.example/2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
}

func TestSourceCollector_SourcesReturnsACopy(t *testing.T) {
	c := NewSourceCollector()
	c.Add("https://a.example/1")
	got := c.Sources()
	got[0] = "mutated"
	if c.Sources()[0] == "mutated" {
		t.Fatalf("Sources() should return a defensive copy, internal state was mutated")
	}
}

func TestExtractSources_FindsURLField(t *testing.T) {
	c := NewSourceCollector()
	ExtractSources(map[string]any{"url": "https://example.com/a"}, c)
	if got := c.Sources(); len(got) != 1 || got[0] != "https://example.com/a" {
		t.Fatalf("expected one extracted source, got %v", got)
	}
}

func TestExtractSources_FindsURLCitationNested(t *testing.T) {
	c := NewSourceCollector()
	ExtractSources(map[string]any{
		"url_citation": map[string]any{"url": "https://example.com/citation"},
	}, c)
	if got := c.Sources(); len(got) != 1 || got[0] != "https://example.com/citation" {
		t.Fatalf("expected citation url extracted, got %v", got)
	}
}

func TestExtractSources_WalksNestedSlicesAndMaps(t *testing.T) {
	c := NewSourceCollector()
	value := []any{
		map[string]any{"href": "https://example.com/one"},
		map[string]any{
			"items": []any{
				map[string]any{"source": "https://example.com/two"},
			},
		},
		"plain text mentioning https://example.com/three inline",
	}
	ExtractSources(value, c)
	got := c.Sources()
	want := []string{"https://example.com/one", "https://example.com/two", "https://example.com/three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractSources() collected %v, want %v", got, want)
	}
}

func TestExtractSources_IgnoresNonURLBearingValues(t *testing.T) {
	c := NewSourceCollector()
	ExtractSources(map[string]any{"note": "no links here"}, c)
	ExtractSources(42, c)
	ExtractSources(nil, c)
	if got := c.Sources(); len(got) != 0 {
		t.Fatalf("expected no sources extracted, got %v", got)
	}
}
