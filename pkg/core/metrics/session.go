// Package metrics implements the Session Metrics Aggregator (spec.md
// §4.12): a pure function computed on demand from a session's agent
// results and workflow-event log, producing duration, outcome counts,
// evidence coverage, and a stability score. No teacher or pack file
// computes this exact formula; it is specified directly in spec.md and
// implemented here as a small, dependency-free pure function — a
// stdlib-only part with nothing to wire a third-party library into (see
// DESIGN.md).
package metrics

import (
	"time"

	"weaveinsight/pkg/core/model"
)

// Tier buckets the stability score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// EventCounts are the workflow-event-log-derived counters spec.md §4.12
// needs; computed by the caller scanning persisted workflow_events rows
// (this package stays a pure function over already-counted inputs).
type EventCounts struct {
	RetryCount         int
	GuardrailTriggered int
	AdaptiveDegraded   int
	ToolErrorCount     int
	ToolCallCount      int
}

// Input bundles everything Compute needs.
type Input struct {
	StartedAt   time.Time
	CompletedAt time.Time // zero if still running
	Now         time.Time // used instead of time.Now() if CompletedAt is zero

	AgentResults []model.AgentResult
	Claims       []model.Claim

	Events EventCounts
}

// Snapshot is the computed metrics bundle.
type Snapshot struct {
	TotalDurationMS      int64
	CompletedAgents      int
	DegradedAgents       int
	FailedAgents         int
	RetryCount           int
	GuardrailTriggered   int
	AdaptiveDegraded     int
	EvidenceCoverageRate float64
	StabilityScore       int
	Tier                 Tier
}

// Compute derives a Snapshot per spec.md §4.12's exact formulas.
func Compute(in Input) Snapshot {
	end := in.CompletedAt
	if end.IsZero() {
		end = in.Now
		if end.IsZero() {
			end = time.Now()
		}
	}
	duration := int64(0)
	if !in.StartedAt.IsZero() {
		duration = end.Sub(in.StartedAt).Milliseconds()
		if duration < 0 {
			duration = 0
		}
	}

	var completed, degraded, failed int
	for _, r := range in.AgentResults {
		switch r.Status {
		case model.AgentStatusCompleted:
			completed++
		case model.AgentStatusDegraded:
			degraded++
		case model.AgentStatusFailed:
			failed++
		}
	}

	coverage := 0.0
	if len(in.Claims) > 0 {
		withSource := 0
		for _, c := range in.Claims {
			if len(c.SourceRefs) > 0 {
				withSource++
			}
		}
		coverage = float64(withSource) / float64(len(in.Claims))
	}

	toolErrorRate := 0.0
	if in.Events.ToolCallCount > 0 {
		toolErrorRate = float64(in.Events.ToolErrorCount) / float64(in.Events.ToolCallCount)
	}

	penalty := 30*failed + 12*degraded + 15*in.Events.GuardrailTriggered + 6*in.Events.AdaptiveDegraded
	penalty += minInt(20, 2*in.Events.RetryCount)
	penalty += minInt(25, int(25*toolErrorRate))

	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var tier Tier
	switch {
	case score >= 85:
		tier = TierHigh
	case score >= 65:
		tier = TierMedium
	default:
		tier = TierLow
	}

	return Snapshot{
		TotalDurationMS:      duration,
		CompletedAgents:      completed,
		DegradedAgents:       degraded,
		FailedAgents:         failed,
		RetryCount:           in.Events.RetryCount,
		GuardrailTriggered:   in.Events.GuardrailTriggered,
		AdaptiveDegraded:     in.Events.AdaptiveDegraded,
		EvidenceCoverageRate: coverage,
		StabilityScore:       score,
		Tier:                 tier,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
