// Package evidence implements the Evidence Pack Builder (spec.md §4.9): a
// deterministic pure function turning a session's agent results and debate
// exchanges into a structured, source-traceable evidence pack. Ported
// field-for-field from original_source/backend/core/evidence_pack.py's
// build_evidence_pack, in the idiom of this module's typed model instead
// of that file's dict-of-dicts shape.
package evidence

import (
	"fmt"
	"math"
	"time"

	"weaveinsight/pkg/core/model"
)

const packVersion = "phase3.v1"

// Build constructs the EvidencePack for one session at generatedAt.
func Build(sessionID string, profile model.Profile, agentResults []model.AgentResult, debateExchanges []model.DebateExchange, finalReport string, generatedAt time.Time) model.EvidencePack {
	generated := generatedAt.UTC().Format(time.RFC3339)

	sources, sourceIDs := buildSourceIndex(agentResults)

	claims := make([]model.Claim, 0, len(agentResults))
	traceability := make([]model.Traceability, 0, len(agentResults))
	for i, r := range agentResults {
		agentName := string(r.AgentName)
		if agentName == "" {
			agentName = fmt.Sprintf("agent_%d", i+1)
		}
		refs := sourceRefs(r.Sources, sourceIDs)

		claimID := fmt.Sprintf("C%03d", i+1)
		claims = append(claims, model.Claim{
			ClaimID:     claimID,
			Agent:       agentName,
			Summary:     clip(r.Content, 240),
			Confidence:  normalizeConfidence(r.Confidence),
			SourceRefs:  refs,
			GeneratedAt: generated,
		})
		traceability = append(traceability, model.Traceability{
			ClaimID:    claimID,
			FromAgent:  agentName,
			SourceRefs: refs,
		})
	}

	adjustments := make([]model.DebateAdjustment, 0, len(debateExchanges))
	for _, ex := range debateExchanges {
		adjustments = append(adjustments, model.DebateAdjustment{
			RoundNumber:      ex.RoundNumber,
			DebateType:       string(ex.DebateType),
			Challenger:       string(ex.Challenger),
			Responder:        string(ex.Responder),
			Revised:          ex.Revised,
			ChallengeSummary: clip(ex.ChallengeContent, 140),
			ResponseSummary:  clip(ex.ResponseContent, 140),
		})
	}

	return model.EvidencePack{
		Version:     packVersion,
		SessionID:   sessionID,
		GeneratedAt: generated,
		Profile: model.EvidenceProfile{
			TargetMarket: profile["target_market"],
			SupplyChain:  profile["supply_chain"],
			SellerType:   profile["seller_type"],
			MinPrice:     profile["min_price"],
			MaxPrice:     profile["max_price"],
		},
		ReportExcerpt:     clip(finalReport, 300),
		Claims:            claims,
		Sources:           sources,
		DebateAdjustments: adjustments,
		Traceability:      traceability,
		Stats: model.EvidenceStats{
			ClaimsCount:  len(claims),
			SourcesCount: len(sources),
			DebateCount:  len(adjustments),
		},
	}
}

func buildSourceIndex(agentResults []model.AgentResult) ([]model.SourceEntry, map[string]string) {
	sources := make([]model.SourceEntry, 0)
	ids := make(map[string]string)

	for _, r := range agentResults {
		agentName := string(r.AgentName)
		for _, src := range dedupNonEmpty(r.Sources) {
			if _, seen := ids[src]; seen {
				continue
			}
			id := fmt.Sprintf("S%03d", len(sources)+1)
			ids[src] = id
			sources = append(sources, model.SourceEntry{SourceID: id, Source: src, FirstSeenAgent: agentName})
		}
	}
	return sources, ids
}

func sourceRefs(sources []string, ids map[string]string) []string {
	refs := make([]string, 0, len(sources))
	for _, src := range dedupNonEmpty(sources) {
		if id, ok := ids[src]; ok {
			refs = append(refs, id)
		}
	}
	return refs
}

func dedupNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func normalizeConfidence(v *float64) float64 {
	c := 0.6
	if v != nil {
		c = *v
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return math.Round(c*1000) / 1000
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	return string(r[:limit-1]) + "…"
}
