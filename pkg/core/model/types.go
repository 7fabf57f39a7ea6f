// Package model defines the data entities shared across the orchestration
// engine: Session, AgentResult, DebateExchange, ToolInvocation, and the
// derived EvidencePack / MemorySnapshot artifacts.
package model

import (
	"strconv"
	"time"
)

// AgentName enumerates every agent identity that can appear in agent_results
// or a debate exchange.
type AgentName string

const (
	AgentTrendScout        AgentName = "trend_scout"
	AgentCompetitorAnalyst AgentName = "competitor_analyst"
	AgentRegulationChecker AgentName = "regulation_checker"
	AgentSocialSentinel    AgentName = "social_sentinel"
	AgentSynthesizer       AgentName = "synthesizer"
	AgentDebateChallenger  AgentName = "debate_challenger"
)

// WorkerAgents lists the four worker agents in their fan-out order. Order
// only matters for stagger indexing; the barrier merges their results
// commutatively.
var WorkerAgents = []AgentName{
	AgentTrendScout,
	AgentCompetitorAnalyst,
	AgentRegulationChecker,
	AgentSocialSentinel,
}

// AgentStatus is the lifecycle status of one AgentResult.
type AgentStatus string

const (
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusDegraded  AgentStatus = "degraded"
	AgentStatusSkipped   AgentStatus = "skipped"
	AgentStatusFailed    AgentStatus = "failed"
)

// DegradeMode selects what happens when a node's retries are exhausted.
type DegradeMode string

const (
	DegradeSkip    DegradeMode = "skip"
	DegradePartial DegradeMode = "partial"
	DegradeFail    DegradeMode = "fail"
)

// DebateType distinguishes the two debate rounds.
type DebateType string

const (
	DebateTypePeerReview DebateType = "peer_review"
	DebateTypeRedTeam    DebateType = "red_team"
)

// Phase is the Session's lifecycle phase. Phases are monotonic: once a
// session reaches Complete or Error it never mutates again.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseGather        Phase = "gather"
	PhaseDebatePeer    Phase = "debate_peer"
	PhaseDebateRedTeam Phase = "debate_redteam"
	PhaseSynthesize    Phase = "synthesize"
	PhaseComplete      Phase = "complete"
	PhaseError         Phase = "error"
)

var phaseOrder = map[Phase]int{
	PhaseInit:          0,
	PhaseGather:        1,
	PhaseDebatePeer:    2,
	PhaseDebateRedTeam: 3,
	PhaseSynthesize:    4,
	PhaseComplete:      5,
}

// IsTerminal reports whether a phase ends the session's lifecycle.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// AdvancesFrom reports whether moving from `prev` to `p` respects the
// monotonic phase order (or transitions into the Error escape hatch, which
// is reachable from any non-terminal phase).
func (p Phase) AdvancesFrom(prev Phase) bool {
	if p == PhaseError {
		return !prev.IsTerminal()
	}
	prevRank, prevOK := phaseOrder[prev]
	nextRank, nextOK := phaseOrder[p]
	return prevOK && nextOK && nextRank >= prevRank
}

// InvocationStatus is the terminal status of a ToolInvocation.
type InvocationStatus string

const (
	InvocationCompleted InvocationStatus = "completed"
	InvocationError     InvocationStatus = "error"
)

// AgentResult is one worker's (or the synthesizer's) contribution.
// Exactly one AgentResult exists per agent per session, unless
// DegradeMode=skip drops one entirely. Confidence is a pointer because a
// nil value (never parsed/assigned) and an explicit 0.0 are distinct: only
// the former should default to the evidence pack's 0.6 fallback.
type AgentResult struct {
	AgentName    AgentName
	Content      string
	Thinking     string
	Sources      []string
	Confidence   *float64
	DurationMS   int64
	ErrorMessage string
	Status       AgentStatus
}

// DebateExchange is one challenge → respond → (follow-up?) triple. It is
// immutable once the Debate Runner returns it.
type DebateExchange struct {
	RoundNumber      int
	DebateType       DebateType
	Challenger       AgentName
	Responder        AgentName
	ChallengeContent string
	ResponseContent  string
	FollowupContent  string
	Revised          bool
}

// TargetID is the debate-exchange retry target identifier format fixed by
// spec.md §4.3: "r{round}:{challenger}->{responder}".
func (e DebateExchange) TargetID() string {
	return "r" + strconv.Itoa(e.RoundNumber) + ":" + string(e.Challenger) + "->" + string(e.Responder)
}

// ToolInvocation records one external tool call's full lifecycle.
type ToolInvocation struct {
	SessionID             string
	InvocationID          string
	Tool                  string
	AgentName             string
	Context               string
	ModelName             string
	CacheHit              bool
	InputPayload          any
	OutputPayload         any
	Status                InvocationStatus
	ErrorMessage          string
	StartedAt             time.Time
	FinishedAt            time.Time
	DurationMS            int64
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	EstimatedCostUSD      float64
}

// WorkflowConfig holds the per-session tunables enumerated in spec.md §6.
type WorkflowConfig struct {
	DebateRounds      int // 0, 1, or 2
	EnableFollowup    bool
	EnableWebsearch   bool
	RetryMaxAttempts  int
	RetryBackoffMS    int64
	DegradeMode       DegradeMode
}

// DefaultWorkflowConfig returns the configuration spec.md's scenarios assume
// absent an override.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DebateRounds:     1,
		EnableFollowup:   true,
		EnableWebsearch:  true,
		RetryMaxAttempts: 2,
		RetryBackoffMS:   500,
		DegradeMode:      DegradePartial,
	}
}

// Profile is the opaque user-supplied request: target market, category,
// seller type, price range. Kept as a map since its shape is policy, not
// mechanism (spec.md §1).
type Profile map[string]any

// Session is the unit of work the whole engine operates on.
type Session struct {
	ID     string
	Profile  Profile
	Config   WorkflowConfig
	Phase    Phase

	AgentResults    []AgentResult
	DebateExchanges []DebateExchange

	CurrentDebateRound int
	CurrentDebateType  DebateType

	SynthesizedReport string
	ReportHTMLURL     string
	EvidencePack      *EvidencePack
	MemorySnapshot    *MemorySnapshot

	ErrorMessage string

	StartedAt   time.Time
	CompletedAt time.Time
	CreatedAt   time.Time
}

// EvidencePack is the deterministic projection of agent_results and
// debate_exchanges described in spec.md §3 and §4.9.
type EvidencePack struct {
	Version     string         `json:"version"`
	SessionID   string         `json:"session_id"`
	GeneratedAt string         `json:"generated_at"`
	Profile     EvidenceProfile `json:"profile"`
	ReportExcerpt string       `json:"report_excerpt"`
	Claims      []Claim        `json:"claims"`
	Sources     []SourceEntry  `json:"sources"`
	DebateAdjustments []DebateAdjustment `json:"debate_adjustments"`
	Traceability []Traceability `json:"traceability"`
	Stats       EvidenceStats  `json:"stats"`
}

// EvidenceProfile mirrors the original's literal dict shape: exactly these
// five fields, no more.
type EvidenceProfile struct {
	TargetMarket any `json:"target_market"`
	SupplyChain  any `json:"supply_chain"`
	SellerType   any `json:"seller_type"`
	MinPrice     any `json:"min_price"`
	MaxPrice     any `json:"max_price"`
}

type Claim struct {
	ClaimID     string   `json:"claim_id"`
	Agent       string   `json:"agent"`
	Summary     string   `json:"summary"`
	Confidence  float64  `json:"confidence"`
	SourceRefs  []string `json:"source_refs"`
	GeneratedAt string   `json:"generated_at"`
}

type SourceEntry struct {
	SourceID       string `json:"source_id"`
	Source         string `json:"source"`
	FirstSeenAgent string `json:"first_seen_in_agent"`
}

type DebateAdjustment struct {
	RoundNumber      int    `json:"round_number"`
	DebateType       string `json:"debate_type"`
	Challenger       string `json:"challenger"`
	Responder        string `json:"responder"`
	Revised          bool   `json:"revised"`
	ChallengeSummary string `json:"challenge_summary"`
	ResponseSummary  string `json:"response_summary"`
}

type Traceability struct {
	ClaimID    string   `json:"claim_id"`
	FromAgent  string   `json:"from_agent"`
	SourceRefs []string `json:"source_refs"`
}

type EvidenceStats struct {
	ClaimsCount int `json:"claims_count"`
	SourcesCount int `json:"sources_count"`
	DebateCount int `json:"debate_count"`
}

// MemorySnapshot is the lightweight analog described in spec.md §3 and §4.10.
type MemorySnapshot struct {
	Version     string            `json:"version"`
	SessionID   string            `json:"session_id"`
	GeneratedAt string            `json:"generated_at"`
	Entities    MemoryEntities    `json:"entities"`
	Summary     string            `json:"summary"`
	AgentHighlights []AgentHighlight `json:"agent_highlights"`
	DebateFocus []DebateFocus     `json:"debate_focus"`
	Signals     MemorySignals     `json:"signals"`
	ActionItems []string          `json:"action_items"`
	RiskItems   []string          `json:"risk_items"`
}

type MemoryEntities struct {
	TargetMarket any            `json:"target_market"`
	SupplyChain  any            `json:"supply_chain"`
	SellerType   any            `json:"seller_type"`
	PriceRange   MemoryPriceRange `json:"price_range"`
}

type MemoryPriceRange struct {
	MinPrice any `json:"min_price"`
	MaxPrice any `json:"max_price"`
}

type AgentHighlight struct {
	AgentName  string   `json:"agent_name"`
	Status     string   `json:"status"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
}

type DebateFocus struct {
	RoundNumber int    `json:"round_number"`
	DebateType  string `json:"debate_type"`
	Challenger  string `json:"challenger"`
	Responder   string `json:"responder"`
	Revised     bool   `json:"revised"`
}

type MemorySignals struct {
	DebateCount  int `json:"debate_count"`
	RevisedCount int `json:"revised_count"`
	AgentCount   int `json:"agent_count"`
}

// WorkflowState is the graph-internal in-flight shape: everything the
// Session carries plus routing metadata. Only AgentResults and
// DebateExchanges carry accumulation (append) semantics; every other field
// is last-writer-wins, per spec.md §3.
type WorkflowState struct {
	SessionID string
	Profile   Profile
	Config    WorkflowConfig
	Phase     Phase

	AgentResults    []AgentResult
	DebateExchanges []DebateExchange

	CurrentDebateRound int
	CurrentDebateType  DebateType

	SynthesizedReport string
	ReportHTMLURL     string
	EvidencePack      *EvidencePack
	MemorySnapshot    *MemorySnapshot

	ErrorMessage string
}

// AgentResultByName returns the result for agent `name`, if present.
func (s WorkflowState) AgentResultByName(name AgentName) (AgentResult, bool) {
	for _, r := range s.AgentResults {
		if r.AgentName == name {
			return r, true
		}
	}
	return AgentResult{}, false
}
