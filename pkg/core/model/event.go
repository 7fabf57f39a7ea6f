package model

import "time"

// EventType enumerates every SSE event this engine emits (spec.md §6). The
// transport that turns these into wire frames is out of scope; this module
// only produces typed Go values a transport can serialize.
type EventType string

const (
	EventOrchestratorStart   EventType = "orchestrator_start"
	EventOrchestratorEnd     EventType = "orchestrator_end"
	EventAgentStart          EventType = "agent_start"
	EventAgentChunk          EventType = "agent_chunk"
	EventAgentThinking       EventType = "agent_thinking"
	EventAgentEnd            EventType = "agent_end"
	EventAgentError          EventType = "agent_error"
	EventGatherComplete      EventType = "gather_complete"
	EventDebateRoundStart    EventType = "debate_round_start"
	EventDebateRoundEnd      EventType = "debate_round_end"
	EventAgentChallenge      EventType = "agent_challenge"
	EventAgentChallengeEnd   EventType = "agent_challenge_end"
	EventAgentRespond        EventType = "agent_respond"
	EventAgentRespondEnd     EventType = "agent_respond_end"
	EventAgentFollowup       EventType = "agent_followup"
	EventAgentFollowupEnd    EventType = "agent_followup_end"
	EventToolStart           EventType = "tool_start"
	EventToolEnd             EventType = "tool_end"
	EventToolError           EventType = "tool_error"
	EventRetry               EventType = "retry"
	EventAdaptiveConcurrency EventType = "adaptive_concurrency"
	EventGuardrailTriggered  EventType = "guardrail_triggered"
	EventError               EventType = "error"
)

// Event is the engine-internal representation of one emitted lifecycle
// event. Fields are a superset across all event types; a given EventType
// only populates the fields relevant to it, matching the "key fields"
// columns in spec.md §6.
type Event struct {
	Type      EventType
	Timestamp time.Time

	SessionID string

	Agent       string
	ThinkingMode string
	AdaptiveConcurrencyLimit int
	Content     string
	Status      string
	DurationMS  int64
	Attempt     int
	DegradeMode string

	CompletedAgents int
	TotalResults    int

	RoundNumber    int
	DebateType     string
	ExchangesCount int
	FromAgent      string
	ToAgent        string
	ContentPreview string
	Revised        bool

	InvocationID          string
	Tool                  string
	Context               string
	ModelName             string
	CacheHit              bool
	Input                 any
	Output                any
	Sources               []string
	SourcesCount          int
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	EstimatedCostUSD      float64
	CostMode              string
	StartedAt             time.Time
	FinishedAt            time.Time
	Error                 string

	TargetType string
	TargetID   string
	MaxAttempts int
	BackoffMS   int64

	Mode             string
	ConcurrencyLimit int
	Reason           string

	FinalReport    string
	ReportHTMLURL  string
	EvidencePack   *EvidencePack
	MemorySnapshot *MemorySnapshot

	GuardrailAction string
	GuardrailStats  any

	Agents       []string
	DebateRounds int
}
