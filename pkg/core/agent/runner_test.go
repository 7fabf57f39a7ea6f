package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"weaveinsight/pkg/core/llm"
	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
	"weaveinsight/pkg/core/throttle"
	"weaveinsight/pkg/core/tools"
)

func testDescriptor(name model.AgentName) Descriptor {
	return Descriptor{
		Name:      name,
		ModelName: "mock-model",
		SystemPrompt: func(p model.Profile) string {
			return "you are a " + string(name)
		},
		UserPrompt: func(p model.Profile) string {
			return "analyze this profile"
		},
	}
}

func newTestRunner(provider llm.Provider) (*Runner, []model.Event) {
	registry := NewRegistry(Config{ActiveProvider: "mock"}, map[string]llm.Provider{"mock": provider})
	th := throttle.New(4, nil)
	guardrail := tools.NewGuardrail(tools.GuardrailConfig{MaxEstimatedCostUSD: 1000, MaxErrorRate: 1, MinCallsForErrorRate: 1})
	reg := tools.NewRegistry(guardrail)

	var events []model.Event
	r := &Runner{
		Providers: registry,
		Throttle:  th,
		Tools:     reg,
		Retry:     retry.Policy{MaxAttempts: 1, BaseMS: 1, DegradeMode: model.DegradePartial},
		Emit:      func(e model.Event) { events = append(events, e) },
	}
	return r, events
}

func TestRun_SuccessfulCallCompletes(t *testing.T) {
	provider := &llm.MockProvider{Reply: "trend is up", Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	var events []model.Event
	r.Emit = func(e model.Event) { events = append(events, e) }

	result := r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)

	if result.Status != model.AgentStatusCompleted {
		t.Fatalf("expected completed status, got %v", result.Status)
	}
	if result.Content != "trend is up" {
		t.Fatalf("expected provider reply as content, got %q", result.Content)
	}
	if result.AgentName != model.AgentTrendScout {
		t.Fatalf("expected AgentName carried through, got %v", result.AgentName)
	}

	if len(events) < 2 {
		t.Fatalf("expected at least agent_start and agent_end events, got %d", len(events))
	}
	if events[0].Type != model.EventAgentStart {
		t.Fatalf("expected first event to be agent_start, got %v", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != model.EventAgentEnd || last.Status != string(model.AgentStatusCompleted) {
		t.Fatalf("expected last event to be agent_end/completed, got %+v", last)
	}
}

func TestRun_ChunkEventsEmittedWhenEnabled(t *testing.T) {
	provider := &llm.MockProvider{Reply: "growth ahead", Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	var events []model.Event
	r.Emit = func(e model.Event) { events = append(events, e) }

	r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)

	found := false
	for _, e := range events {
		if e.Type == model.EventAgentChunk {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an agent_chunk event when chunkEvents=true")
	}
}

func TestRun_ChunkEventsSuppressedWhenDisabled(t *testing.T) {
	provider := &llm.MockProvider{Reply: "growth ahead", Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	var events []model.Event
	r.Emit = func(e model.Event) { events = append(events, e) }

	r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, false)

	for _, e := range events {
		if e.Type == model.EventAgentChunk {
			t.Fatalf("expected no agent_chunk events when chunkEvents=false")
		}
	}
}

func TestRun_RetryThenDegradePartial(t *testing.T) {
	provider := &llm.MockProvider{Fail: errors.New("connection reset by peer"), Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	r.Retry = retry.Policy{MaxAttempts: 2, BaseMS: 1, DegradeMode: model.DegradePartial}
	var events []model.Event
	r.Emit = func(e model.Event) { events = append(events, e) }

	result := r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)

	if result.Status != model.AgentStatusDegraded {
		t.Fatalf("expected degraded status after retries exhaust, got %v", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Fatalf("expected an error message carried into the degraded result")
	}

	retrySeen := false
	for _, e := range events {
		if e.Type == model.EventRetry {
			retrySeen = true
		}
	}
	if !retrySeen {
		t.Fatalf("expected a retry event to have been emitted")
	}
}

func TestRun_DegradeSkipReturnsSkippedWithoutContent(t *testing.T) {
	provider := &llm.MockProvider{Fail: errors.New("boom"), Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	r.Retry = retry.Policy{MaxAttempts: 1, BaseMS: 1, DegradeMode: model.DegradeSkip}

	result := r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)

	if result.Status != model.AgentStatusSkipped {
		t.Fatalf("expected skipped status, got %v", result.Status)
	}
	if result.Content != "" {
		t.Fatalf("expected no content on a skipped agent, got %q", result.Content)
	}
}

func TestRun_DegradeFailReturnsFailedStatus(t *testing.T) {
	provider := &llm.MockProvider{Fail: errors.New("boom"), Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	r.Retry = retry.Policy{MaxAttempts: 1, BaseMS: 1, DegradeMode: model.DegradeFail}

	result := r.Run(context.Background(), "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)

	if result.Status != model.AgentStatusFailed {
		t.Fatalf("expected failed status, got %v", result.Status)
	}
}

func TestRun_PostProcessAppliedToContent(t *testing.T) {
	provider := &llm.MockProvider{Reply: "raw content", Latency: time.Millisecond}
	r, _ := newTestRunner(provider)

	d := testDescriptor(model.AgentTrendScout)
	d.PostProcess = func(content string) string { return "[processed] " + content }

	result := r.Run(context.Background(), "sess-1", d, model.Profile{}, 0, true)
	if result.Content != "[processed] raw content" {
		t.Fatalf("expected postProcess applied to final content, got %q", result.Content)
	}
}

func TestRun_WebsearchWiresToolInvocationEvents(t *testing.T) {
	provider := &llm.MockProvider{Reply: "with sources", Sources: []string{"https://example.com/a"}, Latency: time.Millisecond}
	r, _ := newTestRunner(provider)
	var events []model.Event
	r.Emit = func(e model.Event) { events = append(events, e) }

	d := testDescriptor(model.AgentTrendScout)
	d.EnableWebsearch = true

	result := r.Run(context.Background(), "sess-1", d, model.Profile{}, 0, true)

	if len(result.Sources) != 1 || result.Sources[0] != "https://example.com/a" {
		t.Fatalf("expected normalized source carried into the result, got %v", result.Sources)
	}

	sawStart, sawEnd := false, false
	for _, e := range events {
		if e.Type == model.EventToolStart && e.Tool == "web_search" {
			sawStart = true
		}
		if e.Type == model.EventToolEnd && e.Tool == "web_search" {
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("expected tool_start and tool_end events for the websearch call, got %+v", events)
	}
}

func TestRun_WebsearchSkippedWhenGuardrailDisabled(t *testing.T) {
	provider := &llm.MockProvider{Reply: "no search here", Sources: []string{"https://example.com/a"}, Latency: time.Millisecond}
	registry := NewRegistry(Config{ActiveProvider: "mock"}, map[string]llm.Provider{"mock": provider})
	th := throttle.New(4, nil)
	guardrail := tools.NewGuardrail(tools.GuardrailConfig{MaxEstimatedCostUSD: 1000, MaxErrorRate: 1, MinCallsForErrorRate: 1})
	reg := tools.NewRegistry(guardrail)
	// Force the session into the disabled set the way a prior guardrail trip would.
	guardrail.RecordInvocation("sess-1", "error", 10000)
	guardrail.Evaluate("sess-1")

	var events []model.Event
	r := &Runner{
		Providers: registry,
		Throttle:  th,
		Tools:     reg,
		Retry:     retry.Policy{MaxAttempts: 1, BaseMS: 1, DegradeMode: model.DegradePartial},
		Emit:      func(e model.Event) { events = append(events, e) },
	}

	d := testDescriptor(model.AgentTrendScout)
	d.EnableWebsearch = true

	r.Run(context.Background(), "sess-1", d, model.Profile{}, 0, true)

	for _, e := range events {
		if e.Type == model.EventToolStart {
			t.Fatalf("expected no tool_start event once the guardrail has disabled websearch for the session")
		}
	}
}

func TestRun_ContextCancellationDuringThrottleAcquire(t *testing.T) {
	provider := &llm.MockProvider{Reply: "irrelevant", Latency: time.Millisecond}
	registry := NewRegistry(Config{ActiveProvider: "mock"}, map[string]llm.Provider{"mock": provider})
	th := throttle.New(1, nil)
	guardrail := tools.NewGuardrail(tools.GuardrailConfig{MaxEstimatedCostUSD: 1000, MaxErrorRate: 1, MinCallsForErrorRate: 1})
	reg := tools.NewRegistry(guardrail)

	// Saturate the single slot so Acquire can only resolve via ctx.Done().
	if err := th.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error saturating the throttle: %v", err)
	}
	defer th.Release()

	r := &Runner{
		Providers: registry,
		Throttle:  th,
		Tools:     reg,
		Retry:     retry.Policy{MaxAttempts: 1, BaseMS: 1, DegradeMode: model.DegradeFail},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := r.Run(ctx, "sess-1", testDescriptor(model.AgentTrendScout), model.Profile{}, 0, true)
	if result.Status != model.AgentStatusFailed {
		t.Fatalf("expected failed status when the throttle slot is unavailable and context is cancelled, got %v", result.Status)
	}
}
