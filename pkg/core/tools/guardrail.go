package tools

import "sync"

// SessionStats is a per-session accumulation snapshot, mirroring
// original_source/backend/tools/guardrail.py:SessionGuardrailStats.
type SessionStats struct {
	TotalCalls       int
	ErrorCalls       int
	EstimatedCostUSD float64
}

// ErrorRate is ErrorCalls/TotalCalls, or 0 if no calls were recorded yet.
func (s SessionStats) ErrorRate() float64 {
	if s.TotalCalls <= 0 {
		return 0
	}
	return float64(s.ErrorCalls) / float64(s.TotalCalls)
}

// GuardrailConfig are the ceilings spec.md §4.2/§6 names.
type GuardrailConfig struct {
	MaxEstimatedCostUSD  float64
	MaxErrorRate         float64
	MinCallsForErrorRate int
}

// Guardrail is the per-session cost/error-rate ceiling that disables
// websearch on trip (spec.md §4.2). It holds two distinct pieces of state
// per session: a permanent "disabled" flag once tripped, and a one-shot
// "triggered" latch gating event emission — collapsing these to a single
// boolean cannot reproduce "disabled forever, event fires once" (see
// SPEC_FULL.md), so this mirrors original_source's two-set design exactly.
type Guardrail struct {
	cfg GuardrailConfig

	mu        sync.Mutex
	stats     map[string]*SessionStats
	disabled  map[string]bool
	triggered map[string]bool
}

// NewGuardrail constructs a Guardrail with the minimum-calls floor clamped
// to at least 1, matching original_source's max(1, int(...)).
func NewGuardrail(cfg GuardrailConfig) *Guardrail {
	if cfg.MinCallsForErrorRate < 1 {
		cfg.MinCallsForErrorRate = 1
	}
	return &Guardrail{
		cfg:       cfg,
		stats:     make(map[string]*SessionStats),
		disabled:  make(map[string]bool),
		triggered: make(map[string]bool),
	}
}

// RecordInvocation accumulates one invocation's outcome into the session's
// running stats and returns a copy of the updated totals.
func (g *Guardrail) RecordInvocation(sessionID, status string, estimatedCostUSD float64) SessionStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats, ok := g.stats[sessionID]
	if !ok {
		stats = &SessionStats{}
		g.stats[sessionID] = stats
	}
	stats.TotalCalls++
	if status == "error" || status == "failed" {
		stats.ErrorCalls++
	}
	stats.EstimatedCostUSD += estimatedCostUSD
	return *stats
}

// IsWebsearchDisabled reports whether the session has permanently tripped
// the guardrail.
func (g *Guardrail) IsWebsearchDisabled(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabled[sessionID]
}

// EvaluateResult is the tripped/reason/stats-snapshot tuple Evaluate
// returns.
type EvaluateResult struct {
	Tripped bool
	Reason  string // "estimated_cost_exceeded" | "error_rate_exceeded" | ""
	Stats   SessionStats
}

// Evaluate checks the session's running stats against both ceilings. When
// both trip in the same call, cost is reported first — the reason string
// mirrors original_source's `if cost_hit: reason = ... else: ...` tie-break.
// On a trip, the session is added to the permanent disabled set; repeated
// calls after a trip keep returning Tripped=true.
func (g *Guardrail) Evaluate(sessionID string) EvaluateResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := g.stats[sessionID]
	if stats == nil {
		stats = &SessionStats{}
	}

	costHit := stats.EstimatedCostUSD > g.cfg.MaxEstimatedCostUSD
	errorRateHit := stats.TotalCalls >= g.cfg.MinCallsForErrorRate && stats.ErrorRate() > g.cfg.MaxErrorRate

	if !costHit && !errorRateHit {
		return EvaluateResult{Stats: *stats}
	}

	reason := "error_rate_exceeded"
	if costHit {
		reason = "estimated_cost_exceeded"
	}
	g.disabled[sessionID] = true
	return EvaluateResult{Tripped: true, Reason: reason, Stats: *stats}
}

// MarkTriggered is a one-shot latch: it returns true only the first time it
// is called for a given session, gating the single `guardrail_triggered`
// event emission spec.md invariant 5 requires.
func (g *Guardrail) MarkTriggered(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.triggered[sessionID] {
		return false
	}
	g.triggered[sessionID] = true
	return true
}
