package jsonutil

import "testing"

type sampleSchema struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func TestSmartParse_ValidJSONPassesThroughUnmodified(t *testing.T) {
	input := `{"name":"trend_scout","score":7}`
	var out sampleSchema
	got, err := SmartParse(input, &out)
	if err != nil {
		t.Fatalf("unexpected error for valid JSON: %v", err)
	}
	if got != input {
		t.Fatalf("expected valid JSON returned unmodified, got %q", got)
	}
	if out.Name != "trend_scout" || out.Score != 7 {
		t.Fatalf("expected schema populated, got %+v", out)
	}
}

func TestSmartParse_ValidJSONIntoMap(t *testing.T) {
	input := `{"a":1,"b":"two"}`
	var out map[string]any
	if _, err := SmartParse(input, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["a"].(float64) != 1 || out["b"] != "two" {
		t.Fatalf("unexpected map contents: %+v", out)
	}
}

func TestSmartParse_UnparsableInputFails(t *testing.T) {
	var out sampleSchema
	if _, err := SmartParse("this is not json, hjson, or anything structured {{{", &out); err == nil {
		t.Fatalf("expected an error for thoroughly malformed input")
	}
}

func TestSmartParse_EmptyInputFails(t *testing.T) {
	var out sampleSchema
	if _, err := SmartParse("", &out); err == nil {
		t.Fatalf("expected an error for empty input")
	}
}
