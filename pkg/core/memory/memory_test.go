package memory

import (
	"strings"
	"testing"
	"time"

	"weaveinsight/pkg/core/model"
)

const sampleReport = `# Market Insight

- Expand into Vietnam next quarter
- Risk: compliance audit pending for cross-border imports
- Social sentiment remains strongly positive
3. Increase advertising spend in Q3
`

func ptr(v float64) *float64 { return &v }

func sampleAgentResults() []model.AgentResult {
	return []model.AgentResult{
		{
			AgentName:  model.AgentTrendScout,
			Content:    "Regulatory risk increases compliance costs for cross border sellers significantly",
			Confidence: ptr(0.7),
			Status:     model.AgentStatusCompleted,
		},
		{
			AgentName: model.AgentCompetitorAnalyst,
			Content:   "",
			Status:    model.AgentStatusFailed,
		},
	}
}

func TestBuild_Version(t *testing.T) {
	snap := Build("sess-1", model.Profile{}, sampleAgentResults(), nil, sampleReport, time.Now().UTC())
	if snap.Version != "phase3.memory.v1" {
		t.Fatalf("expected version phase3.memory.v1, got %q", snap.Version)
	}
}

func TestBuild_AgentHighlightsDefaultStatus(t *testing.T) {
	results := []model.AgentResult{{AgentName: model.AgentSocialSentinel}}
	snap := Build("sess-1", model.Profile{}, results, nil, "", time.Now().UTC())
	if len(snap.AgentHighlights) != 1 {
		t.Fatalf("expected one highlight, got %d", len(snap.AgentHighlights))
	}
	if snap.AgentHighlights[0].Status != "unknown" {
		t.Fatalf("expected empty status to default to unknown, got %q", snap.AgentHighlights[0].Status)
	}
}

func TestBuild_DebateSignals(t *testing.T) {
	exchanges := []model.DebateExchange{
		{RoundNumber: 1, Revised: true},
		{RoundNumber: 2, Revised: false},
	}
	snap := Build("sess-1", model.Profile{}, nil, exchanges, "", time.Now().UTC())
	if snap.Signals.DebateCount != 2 || snap.Signals.RevisedCount != 1 {
		t.Fatalf("unexpected signals: %+v", snap.Signals)
	}
}

func TestExtractMarkdownItems_ParsesBulletsAndNumbered(t *testing.T) {
	items := extractMarkdownItems(sampleReport, 6)
	if len(items) != 4 {
		t.Fatalf("expected 4 list items, got %d: %v", len(items), items)
	}
	if !strings.Contains(items[0], "Vietnam") {
		t.Fatalf("expected first item to mention Vietnam, got %q", items[0])
	}
}

func TestExtractMarkdownItems_RespectsLimit(t *testing.T) {
	items := extractMarkdownItems(sampleReport, 2)
	if len(items) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(items))
	}
}

func TestExtractMarkdownItems_EmptyInput(t *testing.T) {
	if items := extractMarkdownItems("", 6); len(items) != 0 {
		t.Fatalf("expected no items for empty markdown, got %v", items)
	}
}

func TestFilterRiskItems_MatchesRiskKeyword(t *testing.T) {
	items := extractMarkdownItems(sampleReport, 6)
	risky := filterRiskItems(items, 4)
	if len(risky) != 1 {
		t.Fatalf("expected exactly one risk item, got %d: %v", len(risky), risky)
	}
	if !strings.Contains(strings.ToLower(risky[0]), "risk") {
		t.Fatalf("expected the risk item to contain 'risk', got %q", risky[0])
	}
}

func TestExtractKeywords_DedupesAndLimitsToFive(t *testing.T) {
	kw := extractKeywords("Regulatory risk increases compliance costs for cross border sellers significantly")
	if len(kw) != 5 {
		t.Fatalf("expected 5 keywords (capped), got %d: %v", len(kw), kw)
	}
	want := []string{"Regulatory", "risk", "increases", "compliance", "costs"}
	for i, w := range want {
		if kw[i] != w {
			t.Fatalf("keyword[%d]: want %q, got %q (full: %v)", i, w, kw[i], kw)
		}
	}
}

func TestExtractKeywords_DropsShortTokens(t *testing.T) {
	kw := extractKeywords("a an is up to go on in it")
	if len(kw) != 0 {
		t.Fatalf("expected all 1-2 letter tokens dropped, got %v", kw)
	}
}

func TestExtractKeywords_EmptyContent(t *testing.T) {
	if kw := extractKeywords(""); kw != nil {
		t.Fatalf("expected nil for empty content, got %v", kw)
	}
}

func TestClip_TrimsAndTruncates(t *testing.T) {
	got := clip("  "+strings.Repeat("x", 200)+"  ", 180)
	if len([]rune(got)) != 180 {
		t.Fatalf("expected clipped length 180, got %d", len([]rune(got)))
	}
}
