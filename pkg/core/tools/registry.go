package tools

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"weaveinsight/pkg/core/model"
)

// activeInvocation is the in-flight state captured at tool_start, carried
// forward to tool_end/tool_error, mirroring
// original_source/backend/tools/registry.py:InvocationState.
type activeInvocation struct {
	invocationID string
	tool         string
	agentName    string
	context      string
	modelName    string
	cacheHit     bool
	input        any
	startedAt    time.Time
}

// Registry wraps every outbound tool call with the three-event lifecycle
// spec.md §4.2 defines: tool_start, then exactly one of tool_end/tool_error.
type Registry struct {
	guardrail *Guardrail

	mu     sync.Mutex
	active map[string]*activeInvocation
}

// NewRegistry constructs a Registry backed by the given Guardrail.
func NewRegistry(guardrail *Guardrail) *Registry {
	return &Registry{
		guardrail: guardrail,
		active:    make(map[string]*activeInvocation),
	}
}

// ShouldEnableWebsearch reports whether a new call for sessionID is allowed
// to use web search: the caller's own flag AND-ed with the Guardrail's
// current allowance (spec.md §4.5 step 2).
func (r *Registry) ShouldEnableWebsearch(sessionID string, requested bool) bool {
	return requested && !r.guardrail.IsWebsearchDisabled(sessionID)
}

// Begin starts one invocation and returns the tool_start event to emit.
func (r *Registry) Begin(sessionID, tool, agentName, context, modelName string, cacheHit bool, input any) (invocationID string, evt model.Event) {
	invocationID = uuid.NewString()
	now := time.Now().UTC()

	r.mu.Lock()
	r.active[invocationID] = &activeInvocation{
		invocationID: invocationID,
		tool:         tool,
		agentName:    agentName,
		context:      context,
		modelName:    modelName,
		cacheHit:     cacheHit,
		input:        input,
		startedAt:    now,
	}
	r.mu.Unlock()

	evt = model.Event{
		Type:         model.EventToolStart,
		Timestamp:    now,
		SessionID:    sessionID,
		InvocationID: invocationID,
		Tool:         tool,
		Agent:        agentName,
		Context:      context,
		ModelName:    modelName,
		CacheHit:     cacheHit,
		Input:        input,
		StartedAt:    now,
	}
	return invocationID, evt
}

// EndResult bundles the end-of-invocation return value: the caller needs
// both the event to emit and the finished ToolInvocation row to persist.
type EndResult struct {
	Event          model.Event
	Invocation     model.ToolInvocation
	GuardrailTrip  EvaluateResult
	ShouldEmitTrip bool
}

// End completes a successful invocation: estimates tokens/cost, records the
// outcome against the Guardrail, and evaluates whether the session just
// tripped it.
func (r *Registry) End(sessionID string, invocationID string, output any, sources []string) EndResult {
	return r.finish(sessionID, invocationID, model.InvocationCompleted, output, sources, "")
}

// Error completes a failed invocation the same way End does, but with
// status=error and an error message populated.
func (r *Registry) Error(sessionID string, invocationID string, errMsg string) EndResult {
	return r.finish(sessionID, invocationID, model.InvocationError, nil, nil, errMsg)
}

func (r *Registry) finish(sessionID, invocationID string, status model.InvocationStatus, output any, sources []string, errMsg string) EndResult {
	r.mu.Lock()
	inv, ok := r.active[invocationID]
	delete(r.active, invocationID)
	r.mu.Unlock()
	if !ok {
		inv = &activeInvocation{invocationID: invocationID, startedAt: time.Now().UTC()}
	}

	finishedAt := time.Now().UTC()
	durationMS := finishedAt.Sub(inv.startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	metrics := EstimateInvocationMetrics(inv.input, output, inv.modelName)

	statsStatus := "completed"
	if status == model.InvocationError {
		statsStatus = "error"
	}
	r.guardrail.RecordInvocation(sessionID, statsStatus, metrics.EstimatedCostUSD)
	trip := r.guardrail.Evaluate(sessionID)

	row := model.ToolInvocation{
		SessionID:             sessionID,
		InvocationID:          invocationID,
		Tool:                  inv.tool,
		AgentName:             inv.agentName,
		Context:                inv.context,
		ModelName:             inv.modelName,
		CacheHit:               inv.cacheHit,
		InputPayload:           inv.input,
		OutputPayload:          output,
		Status:                 status,
		ErrorMessage:           errMsg,
		StartedAt:              inv.startedAt,
		FinishedAt:             finishedAt,
		DurationMS:             durationMS,
		EstimatedInputTokens:   metrics.EstimatedInputTokens,
		EstimatedOutputTokens:  metrics.EstimatedOutputTokens,
		EstimatedCostUSD:       metrics.EstimatedCostUSD,
	}

	evt := model.Event{
		Type:                  model.EventToolEnd,
		Timestamp:             finishedAt,
		SessionID:             sessionID,
		InvocationID:          invocationID,
		Tool:                  inv.tool,
		Agent:                 inv.agentName,
		Context:               inv.context,
		ModelName:             inv.modelName,
		CacheHit:              inv.cacheHit,
		Input:                 inv.input,
		Output:                output,
		Sources:               sources,
		SourcesCount:          len(sources),
		DurationMS:            durationMS,
		StartedAt:             inv.startedAt,
		FinishedAt:            finishedAt,
		EstimatedInputTokens:  metrics.EstimatedInputTokens,
		EstimatedOutputTokens: metrics.EstimatedOutputTokens,
		EstimatedCostUSD:      metrics.EstimatedCostUSD,
		CostMode:              metrics.CostMode,
	}
	if status == model.InvocationError {
		evt.Type = model.EventToolError
		evt.Error = errMsg
	}

	return EndResult{
		Event:          evt,
		Invocation:     row,
		GuardrailTrip:  trip,
		ShouldEmitTrip: trip.Tripped && r.guardrail.MarkTriggered(sessionID),
	}
}
