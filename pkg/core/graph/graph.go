// Package graph implements the Graph Engine (spec.md §4.7): a typed state
// machine over model.WorkflowState that fans out the four worker agents,
// runs the debate rounds the session's config asks for, and hands off to
// the Synthesizer. Grounded in mechanism (phase-sequenced node execution,
// barrier-then-branch routing, an in-memory checkpoint map keyed by
// session id) on y437li-agentic_valuation/pkg/core/debate/orchestrator.go's
// RunDebate loop, generalized from a single hardcoded sequence of analyst
// roles into the node/edge shape spec.md names explicitly.
package graph

import (
	"context"
	"sync"

	"weaveinsight/pkg/core/agent"
	"weaveinsight/pkg/core/debate"
	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/synth"
)

// EventFunc surfaces lifecycle events to the caller (the Event Sink/SSE
// bridge sits behind this).
type EventFunc func(model.Event)

// Checkpointer persists WorkflowState snapshots keyed by session id so an
// observer can resume watching a session mid-flight. The in-memory
// implementation below is the only one in this module; pkg/core/store
// persists events and results, not checkpoints.
type Checkpointer interface {
	Save(sessionID string, state model.WorkflowState)
	Load(sessionID string) (model.WorkflowState, bool)
}

// MemCheckpointer is a process-local Checkpointer, sufficient for a single
// process owning the session (spec.md §5: "no distributed cancellation").
type MemCheckpointer struct {
	mu    sync.Mutex
	saved map[string]model.WorkflowState
}

func NewMemCheckpointer() *MemCheckpointer {
	return &MemCheckpointer{saved: make(map[string]model.WorkflowState)}
}

func (c *MemCheckpointer) Save(sessionID string, state model.WorkflowState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[sessionID] = state.Clone()
}

func (c *MemCheckpointer) Load(sessionID string) (model.WorkflowState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.saved[sessionID]
	return s, ok
}

// Engine wires together the Agent Runner, Debate Runner, and Synthesizer
// into the node sequence spec.md §4.7 defines. Prompt content is policy
// and out of this core's scope (spec.md §1), so the Engine asks the
// caller for a worker's Descriptor rather than hardcoding prompt text.
type Engine struct {
	Agents          *agent.Runner
	Debates         *debate.Runner
	Synthesizer     *synth.Synthesizer
	Checkpointer    Checkpointer
	Emit            EventFunc
	WorkerDescriptor func(model.AgentName) agent.Descriptor
}

// Run drives one session from orchestrator_start through the complete (or
// error) terminal phase and returns the final WorkflowState.
func (e *Engine) Run(ctx context.Context, sessionID string, profile model.Profile, cfg model.WorkflowConfig) model.WorkflowState {
	state := model.WorkflowState{
		SessionID: sessionID,
		Profile:   profile,
		Config:    cfg,
		Phase:     model.PhaseInit,
	}

	agents := make([]string, len(model.WorkerAgents))
	for i, a := range model.WorkerAgents {
		agents[i] = string(a)
	}
	e.emit(model.Event{Type: model.EventOrchestratorStart, SessionID: sessionID, Agents: agents, DebateRounds: cfg.DebateRounds})

	state.Apply(phasePatch(model.PhaseGather))
	e.checkpoint(sessionID, state)

	results := e.fanOutWorkers(ctx, sessionID, profile)
	state.Apply(model.Patch{AppendAgentResults: results})
	completed := 0
	for _, r := range results {
		if r.Status == model.AgentStatusCompleted || r.Status == model.AgentStatusDegraded {
			completed++
		}
	}
	e.emit(model.Event{Type: model.EventGatherComplete, SessionID: sessionID, CompletedAgents: completed, TotalResults: len(results)})
	e.checkpoint(sessionID, state)

	if cfg.DegradeMode == model.DegradeFail {
		for _, r := range results {
			if r.Status == model.AgentStatusFailed {
				msg := (&model.GraphExecutionError{NodeID: string(r.AgentName), Message: r.ErrorMessage}).Error()
				state.Apply(model.Patch{Phase: phasePtr(model.PhaseError), ErrorMessage: &msg})
				e.checkpoint(sessionID, state)
				e.emit(model.Event{Type: model.EventError, SessionID: sessionID, Error: msg})
				return state
			}
		}
	}

	resultsByName := make(map[model.AgentName]model.AgentResult, len(results))
	for _, r := range results {
		resultsByName[r.AgentName] = r
	}

	if cfg.DebateRounds >= 1 {
		round, dtype := 1, model.DebateTypePeerReview
		state.Apply(debatePhasePatch(model.PhaseDebatePeer, round, dtype))
		e.emit(model.Event{Type: model.EventDebateRoundStart, SessionID: sessionID, RoundNumber: round, DebateType: string(dtype)})
		peerExchanges := e.Debates.PeerRound(ctx, sessionID, round, resultsByName)
		state.Apply(model.Patch{AppendDebateExchanges: peerExchanges})
		e.emit(model.Event{Type: model.EventDebateRoundEnd, SessionID: sessionID, RoundNumber: round, DebateType: string(dtype), ExchangesCount: len(peerExchanges)})
		e.checkpoint(sessionID, state)
	}

	if cfg.DebateRounds >= 2 {
		round, dtype := 2, model.DebateTypeRedTeam
		state.Apply(debatePhasePatch(model.PhaseDebateRedTeam, round, dtype))
		e.emit(model.Event{Type: model.EventDebateRoundStart, SessionID: sessionID, RoundNumber: round, DebateType: string(dtype)})
		redTeamExchanges := e.Debates.RedTeamRound(ctx, sessionID, round, resultsByName)
		state.Apply(model.Patch{AppendDebateExchanges: redTeamExchanges})
		e.emit(model.Event{Type: model.EventDebateRoundEnd, SessionID: sessionID, RoundNumber: round, DebateType: string(dtype), ExchangesCount: len(redTeamExchanges)})
		e.checkpoint(sessionID, state)
	}

	state.Apply(phasePatch(model.PhaseSynthesize))
	e.checkpoint(sessionID, state)

	synthOut := e.Synthesizer.Synthesize(ctx, synth.Input{
		SessionID:       sessionID,
		Profile:         profile,
		AgentResults:    state.AgentResults,
		DebateExchanges: state.DebateExchanges,
	})
	state.Apply(model.Patch{
		Phase:             phasePtr(model.PhaseComplete),
		SynthesizedReport: &synthOut.Report,
		ReportHTMLURL:     &synthOut.ReportHTMLURL,
		EvidencePack:      &synthOut.EvidencePack,
		MemorySnapshot:    &synthOut.MemorySnapshot,
	})
	e.checkpoint(sessionID, state)

	e.emit(model.Event{
		Type:           model.EventOrchestratorEnd,
		SessionID:      sessionID,
		FinalReport:    state.SynthesizedReport,
		ReportHTMLURL:  state.ReportHTMLURL,
		EvidencePack:   state.EvidencePack,
		MemorySnapshot: state.MemorySnapshot,
	})

	return state
}

// fanOutWorkers satisfies spec.md §4.7's fan-out invariants: branches run
// in parallel, each on its own state copy (workers don't mutate shared
// state, they only return results collected here), and a failing branch
// never blocks its siblings — only the caller's degrade_mode policy (via
// the Agent Runner's Retry Policy) decides what a failed branch yields.
func (e *Engine) fanOutWorkers(ctx context.Context, sessionID string, profile model.Profile) []model.AgentResult {
	results := make([]model.AgentResult, len(model.WorkerAgents))
	var wg sync.WaitGroup
	for i, workerName := range model.WorkerAgents {
		wg.Add(1)
		go func(i int, name model.AgentName) {
			defer wg.Done()
			d := e.WorkerDescriptor(name)
			results[i] = e.Agents.Run(ctx, sessionID, d, profile, i, true)
		}(i, workerName)
	}
	wg.Wait()

	out := make([]model.AgentResult, 0, len(results))
	for _, r := range results {
		if r.Status == model.AgentStatusSkipped {
			continue
		}
		out = append(out, r)
	}
	return out
}

// phasePatch and debatePhasePatch build the replace-semantics Patch values
// spec.md §9's "Fan-out + accumulated state" design note calls for: every
// state transition here is a typed partial-update merged through
// WorkflowState.Apply, not a direct field mutation; the concurrent
// branches of fanOutWorkers only return AgentResults, which Run merges
// into the shared state through a single Patch after the barrier.
func phasePtr(p model.Phase) *model.Phase { return &p }

func phasePatch(p model.Phase) model.Patch {
	return model.Patch{Phase: phasePtr(p)}
}

func debatePhasePatch(p model.Phase, round int, dtype model.DebateType) model.Patch {
	return model.Patch{Phase: phasePtr(p), CurrentDebateRound: &round, CurrentDebateType: &dtype}
}

func (e *Engine) checkpoint(sessionID string, state model.WorkflowState) {
	if e.Checkpointer != nil {
		e.Checkpointer.Save(sessionID, state)
	}
}

func (e *Engine) emit(evt model.Event) {
	if e.Emit != nil {
		e.Emit(evt)
	}
}
