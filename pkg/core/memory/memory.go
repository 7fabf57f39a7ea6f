// Package memory implements the Memory Snapshot Builder (spec.md §4.10): a
// deterministic pure function producing a lightweight, graph-database-free
// recap of a session for context recovery. Ported field-for-field from
// original_source/backend/memory/session_snapshot.py's
// build_memory_snapshot.
package memory

import (
	"regexp"
	"strings"
	"time"

	"weaveinsight/pkg/core/model"
)

const snapshotVersion = "phase3.memory.v1"

var (
	listItemPattern = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+(.+)$`)
	keywordSplitter = regexp.MustCompile(`[，。；、,.\s/|\-_:：()\[\]{}]+`)
	riskKeywords    = []string{"风险", "risk", "合规", "限制", "约束", "挑战"}
)

// Build constructs the MemorySnapshot for one session at generatedAt.
func Build(sessionID string, profile model.Profile, agentResults []model.AgentResult, debateExchanges []model.DebateExchange, finalReport string, generatedAt time.Time) model.MemorySnapshot {
	generated := generatedAt.UTC().Format(time.RFC3339)

	highlights := make([]model.AgentHighlight, 0, len(agentResults))
	for _, r := range agentResults {
		status := string(r.Status)
		if status == "" {
			status = "unknown"
		}
		highlights = append(highlights, model.AgentHighlight{
			AgentName:  string(r.AgentName),
			Status:     status,
			Confidence: confidenceOrDefault(r.Confidence),
			Summary:    clip(r.Content, 180),
			Keywords:   extractKeywords(r.Content),
		})
	}

	revisedCount := 0
	focus := make([]model.DebateFocus, 0, len(debateExchanges))
	for _, ex := range debateExchanges {
		if ex.Revised {
			revisedCount++
		}
		focus = append(focus, model.DebateFocus{
			RoundNumber: ex.RoundNumber,
			DebateType:  string(ex.DebateType),
			Challenger:  string(ex.Challenger),
			Responder:   string(ex.Responder),
			Revised:     ex.Revised,
		})
	}

	actionItems := extractMarkdownItems(finalReport, 6)
	riskItems := filterRiskItems(actionItems, 4)

	return model.MemorySnapshot{
		Version:     snapshotVersion,
		SessionID:   sessionID,
		GeneratedAt: generated,
		Entities: model.MemoryEntities{
			TargetMarket: profile["target_market"],
			SupplyChain:  profile["supply_chain"],
			SellerType:   profile["seller_type"],
			PriceRange: model.MemoryPriceRange{
				MinPrice: profile["min_price"],
				MaxPrice: profile["max_price"],
			},
		},
		Summary:         clip(finalReport, 260),
		AgentHighlights: highlights,
		DebateFocus:     focus,
		Signals: model.MemorySignals{
			DebateCount:  len(debateExchanges),
			RevisedCount: revisedCount,
			AgentCount:   len(agentResults),
		},
		ActionItems: actionItems,
		RiskItems:   riskItems,
	}
}

func extractMarkdownItems(markdown string, limit int) []string {
	items := make([]string, 0, limit)
	if markdown == "" {
		return items
	}
	for _, line := range strings.Split(markdown, "\n") {
		m := listItemPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if v := clip(m[1], 120); v != "" {
			items = append(items, v)
		}
		if len(items) >= limit {
			break
		}
	}
	return items
}

func filterRiskItems(items []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, k := range riskKeywords {
			if strings.Contains(lower, k) {
				out = append(out, item)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func extractKeywords(content string) []string {
	if content == "" {
		return nil
	}
	tokens := keywordSplitter.Split(content, -1)
	seen := make(map[string]struct{})
	out := make([]string, 0, 5)
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if len([]rune(t)) < 3 {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) >= 5 {
			break
		}
	}
	return out
}

func confidenceOrDefault(v *float64) float64 {
	if v == nil {
		return 0.6
	}
	return *v
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	return string(r[:limit-1]) + "…"
}
