package agent

import (
	"context"
	"fmt"
	"time"

	"weaveinsight/pkg/core/llm"
	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
	"weaveinsight/pkg/core/throttle"
	"weaveinsight/pkg/core/tools"
)

// Descriptor is a worker's thin role definition (spec.md §4.5 step 1). Only
// the prompt callbacks vary per agent; prompt *content* is policy and out
// of this package's scope, so callers supply it.
type Descriptor struct {
	Name               model.AgentName
	ModelName          string
	SystemPrompt       func(profile model.Profile) string
	UserPrompt         func(profile model.Profile) string
	EnableWebsearch    bool
	WebsearchLimit     int
	ThinkingMode       llm.ThinkingMode
	PostProcess        func(content string) string // default identity
}

func (d Descriptor) postProcess(content string) string {
	if d.PostProcess == nil {
		return content
	}
	return d.PostProcess(content)
}

// EventFunc is how the Runner surfaces lifecycle events; callers plug in
// the Event Sink / SSE bridge here.
type EventFunc func(model.Event)

// Runner executes Agent Runner invocations (spec.md §4.5) against a
// resolved provider, wired through the shared Throttle and Tool Registry.
// Grounded in mechanism on y437li-agentic_valuation/pkg/core/agent/manager.go's
// ExecutePrompt (provider resolution + call), expanded with the streaming,
// throttling, retrying, and tool-wrapping behavior spec.md requires that
// the teacher's synchronous ExecutePrompt never needed.
type Runner struct {
	Providers *Registry
	Throttle  *throttle.Throttle
	Tools     *tools.Registry
	Retry     retry.Policy
	Emit      EventFunc
}

// Run executes one worker invocation end to end, returning the AgentResult
// spec.md §4.5 step 6/7 describes. workerIndex is used for fan-out startup
// stagger (spec.md §4.4); chunkEvents controls whether output/thinking
// deltas are forwarded as agent_chunk/agent_thinking (disabled for debate
// sub-calls per spec.md §4.5 step 3's parenthetical).
func (r *Runner) Run(ctx context.Context, sessionID string, d Descriptor, profile model.Profile, workerIndex int, chunkEvents bool) model.AgentResult {
	r.emit(model.Event{Type: model.EventAgentStart, SessionID: sessionID, Agent: string(d.Name), ThinkingMode: string(d.ThinkingMode), AdaptiveConcurrencyLimit: r.Throttle.CurrentLimit()})

	_ = throttle.Stagger(ctx, workerIndex)

	start := time.Now()
	var attemptCount int
	var content, thinking string
	var sources []string

	outcome, err := retry.Run(ctx, r.Retry, "agent", string(d.Name),
		func(ctx context.Context, attemptNum int) error {
			attemptCount = attemptNum
			c, th, srcs, callErr := r.callOnce(ctx, sessionID, d, profile, chunkEvents)
			if callErr != nil {
				r.Throttle.Report(callErr.Error())
				return callErr
			}
			r.Throttle.Report("")
			content, thinking, sources = c, th, srcs
			return nil
		},
		func(e retry.Event) {
			r.emit(model.Event{Type: model.EventRetry, SessionID: sessionID, TargetType: e.TargetType, TargetID: e.TargetID, Attempt: e.Attempt, MaxAttempts: e.MaxAttempts, Error: errString(e.Err), BackoffMS: e.BackoffMS})
		},
	)

	duration := time.Since(start).Milliseconds()
	content = d.postProcess(content)

	result := model.AgentResult{
		AgentName:  d.Name,
		Content:    content,
		Thinking:   thinking,
		Sources:    sources,
		DurationMS: duration,
	}

	switch outcome {
	case retry.OutcomeSuccess:
		result.Status = model.AgentStatusCompleted
		confidence := 0.6
		result.Confidence = &confidence
	case retry.OutcomeSkip:
		r.emit(model.Event{Type: model.EventAgentEnd, SessionID: sessionID, Agent: string(d.Name), Status: string(model.AgentStatusSkipped), DurationMS: duration, Attempt: attemptCount})
		result.Status = model.AgentStatusSkipped
		result.ErrorMessage = errString(err)
		return result
	case retry.OutcomePartial:
		result.Status = model.AgentStatusDegraded
		result.ErrorMessage = errString(err)
	case retry.OutcomeFail:
		result.Status = model.AgentStatusFailed
		result.ErrorMessage = errString(err)
	}

	r.emit(model.Event{Type: model.EventAgentEnd, SessionID: sessionID, Agent: string(d.Name), Status: string(result.Status), DurationMS: duration, Attempt: attemptCount})
	return result
}

// callOnce performs one LLM call attempt, wiring search deltas into
// tool_start/tool_end via the Tool Registry and forwarding chunk events if
// requested. It returns the accumulated content, thinking, and sources.
func (r *Runner) callOnce(ctx context.Context, sessionID string, d Descriptor, profile model.Profile, chunkEvents bool) (string, string, []string, error) {
	provider, err := r.Providers.Resolve(d.Name)
	if err != nil {
		return "", "", nil, err
	}

	enableWebsearch := d.EnableWebsearch && r.Tools.ShouldEnableWebsearch(sessionID, d.EnableWebsearch)

	req := llm.Request{
		Model:           d.ModelName,
		SystemPrompt:    d.SystemPrompt(profile),
		UserPrompt:      d.UserPrompt(profile),
		EnableWebsearch: enableWebsearch,
		WebsearchLimit:  d.WebsearchLimit,
		ThinkingMode:    d.ThinkingMode,
	}

	if err := r.Throttle.Acquire(ctx); err != nil {
		return "", "", nil, err
	}
	defer r.Throttle.Release()

	var toolInvocationID string
	onDelta := func(delta llm.Delta) {
		switch delta.Type {
		case llm.DeltaOutput:
			if chunkEvents {
				r.emit(model.Event{Type: model.EventAgentChunk, SessionID: sessionID, Agent: string(d.Name), Content: delta.Text})
			}
		case llm.DeltaReasoning:
			if chunkEvents {
				r.emit(model.Event{Type: model.EventAgentThinking, SessionID: sessionID, Agent: string(d.Name), Content: delta.Text})
			}
		case llm.DeltaSearchStart:
			id, evt := r.Tools.Begin(sessionID, "web_search", string(d.Name), "gather", d.ModelName, false, req.UserPrompt)
			toolInvocationID = id
			r.emit(evt)
		case llm.DeltaSearchComplete:
			if toolInvocationID == "" {
				return
			}
			collector := llm.NewSourceCollector()
			for _, raw := range delta.SearchSources {
				llm.ExtractSources(raw, collector)
			}
			res := r.Tools.End(sessionID, toolInvocationID, delta.SearchSources, collector.Sources())
			r.emit(res.Event)
			if res.ShouldEmitTrip {
				r.emit(model.Event{Type: model.EventGuardrailTriggered, SessionID: sessionID, Reason: res.GuardrailTrip.Reason, GuardrailStats: res.GuardrailTrip.Stats})
			}
		}
	}

	result, callErr := llm.Call(ctx, provider, req, onDelta)
	if callErr != nil {
		if toolInvocationID != "" {
			res := r.Tools.Error(sessionID, toolInvocationID, callErr.Error())
			r.emit(res.Event)
		}
		return "", "", nil, fmt.Errorf("agent %s: %w", d.Name, callErr)
	}
	return result.Output, result.Thinking, result.Sources, nil
}

func (r *Runner) emit(e model.Event) {
	if r.Emit != nil {
		r.Emit(e)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
