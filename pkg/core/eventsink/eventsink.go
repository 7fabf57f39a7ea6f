// Package eventsink implements the Event Sink write-behind pipeline
// (spec.md §4.11): a bounded non-blocking queue drained by a single
// background consumer, so persistence never blocks the event stream.
// Chunk events are buffered in memory and only committed on their
// terminating _end event. Ported in structure from
// original_source/backend/database/event_sink.py's DbWriteWorker +
// SessionEventSink (queue/worker/sentinel shape, exchange-key flip rule,
// tool-invocation assembly), adapted to this module's typed model.Event
// instead of that file's raw dict-shaped SSE payloads.
package eventsink

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"weaveinsight/pkg/core/model"
)

const queueCapacity = 2000

var chunkEventTypes = map[model.EventType]bool{
	model.EventAgentChunk:    true,
	model.EventAgentThinking: true,
}

// Store is the persistence surface the Writer dispatches to. Its
// implementation (pkg/core/store, over pgx) is out of this package's
// concern; Store failures are logged and swallowed, matching spec.md §7's
// "Event Sink never propagates its own errors back to the stream."
type Store interface {
	CreateSession(sessionID string, profile model.Profile, cfg model.WorkflowConfig) error
	UpdateSessionFields(sessionID string, fields map[string]any) error
	UpsertAgentResult(sessionID string, agentName string, fields map[string]any) error
	InsertDebateExchange(sessionID string, exchange model.DebateExchange) error
	InsertWorkflowEvent(sessionID string, eventType model.EventType, agentName string, payload model.Event) error
	InsertToolInvocation(invocation model.ToolInvocation) error
}

type writeOp struct {
	kind string
	run  func() error
}

// Writer owns the bounded queue and its single consuming goroutine.
// Grounded directly on DbWriteWorker: a stop sentinel drains the queue to
// empty before the goroutine exits, rather than bailing out early.
type Writer struct {
	store Store
	queue chan writeOp
	done  chan struct{}
}

func NewWriter(store Store) *Writer {
	w := &Writer{store: store, queue: make(chan writeOp, queueCapacity), done: make(chan struct{})}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for op := range w.queue {
		if op.kind == "__stop__" {
			return
		}
		if err := op.run(); err != nil {
			slog.Warn("event sink write failed", "kind", op.kind, "error", err)
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// enqueue is non-blocking: a full queue drops the write with a warning
// rather than ever blocking the producing stream.
func (w *Writer) enqueue(kind string, run func() error) {
	select {
	case w.queue <- writeOp{kind: kind, run: run}:
	default:
		slog.Warn("event sink queue full, dropping write", "kind", kind)
	}
}

// Close sends the stop sentinel and waits up to 3s for the drain to
// finish, per spec.md §4.11's bounded-join shutdown contract.
func (w *Writer) Close() {
	select {
	case w.queue <- writeOp{kind: "__stop__"}:
	default:
	}
	select {
	case <-w.done:
	case <-time.After(3 * time.Second):
	}
}

type agentBuf struct {
	content  strings.Builder
	thinking strings.Builder
}

type exchangeKey struct {
	round      int
	challenger string
	responder  string
}

type exchangeBuf struct {
	debateType string
	challenge  strings.Builder
	response   strings.Builder
	followup   strings.Builder
	revised    bool
}

type toolStartBuf struct {
	tool      string
	agentName string
	context   string
	modelName string
	cacheHit  bool
	input     any
	startedAt time.Time
}

// SessionSink aggregates one session's event stream and dispatches
// assembled rows to the Writer. Its internal maps are owned exclusively by
// the goroutine calling OnEvent, per spec.md §5's single-owner discipline.
type SessionSink struct {
	sessionID string
	profile   model.Profile
	config    model.WorkflowConfig
	writer    *Writer

	mu            sync.Mutex // guards nothing external; OnEvent is expected single-threaded, kept for defensive reuse
	agentBufs     map[string]*agentBuf
	exchangeParts map[exchangeKey]*exchangeBuf
	toolStarts    map[string]toolStartBuf
	currentRound  int
	currentType   string
}

func NewSessionSink(sessionID string, profile model.Profile, config model.WorkflowConfig, writer *Writer) *SessionSink {
	s := &SessionSink{
		sessionID:     sessionID,
		profile:       profile,
		config:        config,
		writer:        writer,
		agentBufs:     make(map[string]*agentBuf),
		exchangeParts: make(map[exchangeKey]*exchangeBuf),
		toolStarts:    make(map[string]toolStartBuf),
	}
	writer.enqueue("create_session", func() error {
		return writer.store.CreateSession(sessionID, profile, config)
	})
	return s
}

// OnEvent is the single entry point; callers forward every emitted
// model.Event here in order.
func (s *SessionSink) OnEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !chunkEventTypes[e.Type] {
		s.logWorkflowEvent(e)
	}

	switch e.Type {
	case model.EventOrchestratorStart:
		s.writer.enqueue("update_session", func() error {
			return s.writer.store.UpdateSessionFields(s.sessionID, map[string]any{
				"status": "running", "phase": "gather", "current_debate_round": 0,
			})
		})
	case model.EventOrchestratorEnd:
		fields := map[string]any{"status": "completed", "phase": "complete", "synthesized_report": e.FinalReport}
		if e.EvidencePack != nil {
			fields["evidence_pack"] = e.EvidencePack
		}
		if e.MemorySnapshot != nil {
			fields["memory_snapshot"] = e.MemorySnapshot
		}
		s.writer.enqueue("update_session", func() error { return s.writer.store.UpdateSessionFields(s.sessionID, fields) })
	case model.EventError:
		s.writer.enqueue("update_session", func() error {
			return s.writer.store.UpdateSessionFields(s.sessionID, map[string]any{"status": "failed", "phase": "error", "error_message": e.Error})
		})
	case model.EventGuardrailTriggered:
		s.writer.enqueue("update_session", func() error {
			return s.writer.store.UpdateSessionFields(s.sessionID, map[string]any{"enable_websearch": false})
		})

	case model.EventAgentStart:
		if e.Agent == "" {
			return
		}
		s.agentBufs[e.Agent] = &agentBuf{}
		s.writer.enqueue("upsert_agent_result", func() error {
			return s.writer.store.UpsertAgentResult(s.sessionID, e.Agent, map[string]any{"status": "running"})
		})
	case model.EventAgentChunk:
		if e.Agent == "" {
			return
		}
		s.bufFor(e.Agent).content.WriteString(e.Content)
	case model.EventAgentThinking:
		if e.Agent == "" {
			return
		}
		s.bufFor(e.Agent).thinking.WriteString(e.Content)
	case model.EventAgentEnd:
		if e.Agent == "" {
			return
		}
		buf := s.agentBufs[e.Agent]
		fields := map[string]any{"status": e.Status, "duration_ms": e.DurationMS}
		if buf != nil {
			fields["content"] = buf.content.String()
			if buf.thinking.Len() > 0 {
				fields["thinking"] = buf.thinking.String()
			}
		}
		s.writer.enqueue("upsert_agent_result", func() error {
			return s.writer.store.UpsertAgentResult(s.sessionID, e.Agent, fields)
		})
	case model.EventAgentError:
		if e.Agent == "" {
			return
		}
		s.writer.enqueue("upsert_agent_result", func() error {
			return s.writer.store.UpsertAgentResult(s.sessionID, e.Agent, map[string]any{"status": "failed", "error_message": e.Error})
		})

	case model.EventDebateRoundStart:
		s.currentRound = e.RoundNumber
		s.currentType = e.DebateType
		phase := "debate"
		switch e.DebateType {
		case string(model.DebateTypePeerReview):
			phase = "debate_peer"
		case string(model.DebateTypeRedTeam):
			phase = "debate_redteam"
		}
		s.writer.enqueue("update_session", func() error {
			return s.writer.store.UpdateSessionFields(s.sessionID, map[string]any{"phase": phase, "current_debate_round": e.RoundNumber})
		})

	case model.EventAgentChallenge, model.EventAgentChallengeEnd:
		s.exchangeFor(e.RoundNumber, e.FromAgent, e.ToAgent).challenge.WriteString(e.Content)
	case model.EventAgentRespond, model.EventAgentRespondEnd:
		// respond is responder->challenger; flip back to (challenger, responder).
		ex := s.exchangeFor(e.RoundNumber, e.ToAgent, e.FromAgent)
		ex.response.WriteString(e.Content)
		if e.Type == model.EventAgentRespondEnd {
			ex.revised = ex.revised || e.Revised
			if !s.config.EnableFollowup {
				s.flushExchange(exchangeKey{round: e.RoundNumber, challenger: e.ToAgent, responder: e.FromAgent})
			}
		}
	case model.EventAgentFollowup, model.EventAgentFollowupEnd:
		s.exchangeFor(e.RoundNumber, e.FromAgent, e.ToAgent).followup.WriteString(e.Content)
		if e.Type == model.EventAgentFollowupEnd {
			s.flushExchange(exchangeKey{round: e.RoundNumber, challenger: e.FromAgent, responder: e.ToAgent})
		}

	case model.EventToolStart:
		s.toolStarts[e.InvocationID] = toolStartBuf{
			tool: e.Tool, agentName: e.Agent, context: e.Context, modelName: e.ModelName,
			cacheHit: e.CacheHit, input: e.Input, startedAt: e.StartedAt,
		}
	case model.EventToolEnd, model.EventToolError:
		s.flushToolInvocation(e)
	}
}

func (s *SessionSink) bufFor(agent string) *agentBuf {
	b, ok := s.agentBufs[agent]
	if !ok {
		b = &agentBuf{}
		s.agentBufs[agent] = b
	}
	return b
}

func (s *SessionSink) exchangeFor(round int, challenger, responder string) *exchangeBuf {
	key := exchangeKey{round: round, challenger: challenger, responder: responder}
	ex, ok := s.exchangeParts[key]
	if !ok {
		ex = &exchangeBuf{debateType: s.currentType}
		s.exchangeParts[key] = ex
	}
	return ex
}

func (s *SessionSink) flushExchange(key exchangeKey) {
	ex, ok := s.exchangeParts[key]
	if !ok {
		return
	}
	delete(s.exchangeParts, key)

	response := ex.response.String()
	revised := ex.revised || strings.Contains(response, "修订") || strings.Contains(response, "修改")

	exchange := model.DebateExchange{
		RoundNumber:      key.round,
		DebateType:       model.DebateType(ex.debateType),
		Challenger:       model.AgentName(key.challenger),
		Responder:        model.AgentName(key.responder),
		ChallengeContent: ex.challenge.String(),
		ResponseContent:  response,
		FollowupContent:  ex.followup.String(),
		Revised:          revised,
	}
	s.writer.enqueue("insert_debate", func() error { return s.writer.store.InsertDebateExchange(s.sessionID, exchange) })
}

func (s *SessionSink) flushToolInvocation(e model.Event) {
	start, had := s.toolStarts[e.InvocationID]
	delete(s.toolStarts, e.InvocationID)

	startedAt := e.StartedAt
	if startedAt.IsZero() && had {
		startedAt = start.startedAt
	}
	finishedAt := e.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	status := model.InvocationCompleted
	if e.Type == model.EventToolError {
		status = model.InvocationError
	}

	agentName := e.Agent
	if agentName == "" && had {
		agentName = start.agentName
	}
	tool := e.Tool
	if tool == "" && had {
		tool = start.tool
	}

	invocation := model.ToolInvocation{
		SessionID:             s.sessionID,
		InvocationID:          e.InvocationID,
		Tool:                  tool,
		AgentName:             agentName,
		Context:               e.Context,
		ModelName:             e.ModelName,
		CacheHit:              e.CacheHit,
		InputPayload:          e.Input,
		OutputPayload:         e.Output,
		Status:                status,
		ErrorMessage:          e.Error,
		StartedAt:             startedAt,
		FinishedAt:            finishedAt,
		DurationMS:            e.DurationMS,
		EstimatedInputTokens:  e.EstimatedInputTokens,
		EstimatedOutputTokens: e.EstimatedOutputTokens,
		EstimatedCostUSD:      e.EstimatedCostUSD,
	}
	s.writer.enqueue("insert_tool_invocation", func() error { return s.writer.store.InsertToolInvocation(invocation) })
}

func (s *SessionSink) logWorkflowEvent(e model.Event) {
	agent := e.Agent
	if agent == "" {
		agent = e.FromAgent
	}
	s.writer.enqueue("workflow_event", func() error {
		return s.writer.store.InsertWorkflowEvent(s.sessionID, e.Type, agent, e)
	})
}
