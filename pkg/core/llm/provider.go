// Package llm is the LLM Call Facade (spec.md §4.1): a single streaming
// primitive that yields typed deltas and returns an aggregate
// {output, thinking?, sources}. Streaming-channel shape is grounded on
// hieuntg81-alfred-ai/internal/domain/provider.go and
// internal/adapter/llm/sse.go; provider selection is grounded on
// y437li-agentic_valuation/pkg/core/llm/provider.go's multi-provider
// registry idea, generalized from static per-vendor stubs into a real
// streaming interface.
package llm

import (
	"context"
	"time"
)

// DeltaType tags one streamed event a Call produces.
type DeltaType string

const (
	DeltaResponseStart    DeltaType = "response_start"
	DeltaReasoning        DeltaType = "reasoning_delta"
	DeltaOutput           DeltaType = "output_delta"
	DeltaSearchStart      DeltaType = "search_start"
	DeltaSearchProgress   DeltaType = "search_progress"
	DeltaSearchComplete   DeltaType = "search_complete"
	DeltaResponseComplete DeltaType = "response_complete"
	DeltaError            DeltaType = "error"
)

// Delta is one event in the lazy finite sequence a Call produces.
type Delta struct {
	Type          DeltaType
	Text          string // ReasoningDelta / OutputDelta text fragment
	SearchSources []any  // SearchComplete's raw "sources" metadata, pre-normalization
	Err           error  // populated when Type == DeltaError
}

// ThinkingMode selects how much of the model's reasoning trace to surface.
type ThinkingMode string

const (
	ThinkingOff      ThinkingMode = "off"
	ThinkingVisible  ThinkingMode = "visible"
	ThinkingInternal ThinkingMode = "internal"
)

// Request is one Call's parameters.
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	EnableWebsearch bool
	WebsearchLimit  int
	ThinkingMode    ThinkingMode
}

// Result is the aggregate a Call produces once its delta stream is fully
// drained.
type Result struct {
	Output   string
	Thinking string
	Sources  []string
}

// Provider is the upstream LLM client surface this facade consumes. Per
// spec.md §1 the actual upstream client is out of scope; this interface is
// the seam a real client (Gemini, DeepSeek, Qwen, ...) or a test double
// implements.
type Provider interface {
	// Name identifies the provider for logging and circuit-breaker naming.
	Name() string
	// Stream issues one call and returns a channel of Deltas. The channel is
	// closed when the stream ends (naturally, on error, or because ctx was
	// canceled). Exactly one terminal delta (ResponseComplete or Error)
	// precedes the close, matching the sse.go idiom this is grounded on.
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}

// Deadlines are the two timeouts spec.md §4.1 requires: "a total deadline
// and a separate connect deadline are supplied from configuration; the
// upstream client is configured with a retry count of zero because the
// Retry/Backoff component owns all retry semantics."
type Deadlines struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
}
