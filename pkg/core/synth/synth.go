// Package synth implements the Synthesizer (spec.md §4.8): it either runs
// an LLM synthesis pass over every worker's output plus the full debate
// transcript, or falls back to a deterministic composed report when no
// agent factory is configured or every worker came back empty. Either way
// it computes the EvidencePack and MemorySnapshot and hands back a
// complete Output. Prompt assembly is grounded on the structure (not the
// prompt text, which is policy) of
// original_source/backend/agents/market/synthesizer.py's get_user_prompt;
// the H1-heading guarantee in postProcess mirrors that file's
// post_process.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weaveinsight/pkg/core/evidence"
	"weaveinsight/pkg/core/llm"
	"weaveinsight/pkg/core/memory"
	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
)

// Input is everything the Synthesizer needs from the completed session.
type Input struct {
	SessionID       string
	Profile         model.Profile
	AgentResults    []model.AgentResult
	DebateExchanges []model.DebateExchange
}

// Output is what Synthesize hands back to the Graph Engine.
type Output struct {
	Report         string
	ReportHTMLURL  string
	EvidencePack   model.EvidencePack
	MemorySnapshot model.MemorySnapshot
	Status         model.AgentStatus
}

// HTMLRenderer writes the rendered report somewhere durable and returns its
// URL. Out of this core's scope per spec.md §1 ("report rendering/export");
// a nil Renderer makes Synthesize skip the write.
type HTMLRenderer func(ctx context.Context, sessionID, markdownReport string) (url string, err error)

// EventFunc surfaces lifecycle events.
type EventFunc func(model.Event)

// Synthesizer runs the synthesis node.
type Synthesizer struct {
	Provider     llm.Provider // nil means "no agent factory configured" (spec.md §4.8)
	ModelName    string
	Retry        retry.Policy
	Renderer     HTMLRenderer
	Emit         EventFunc
	Now          func() time.Time // overridable for deterministic tests
}

func (s *Synthesizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Synthesize implements spec.md §4.8's full logic.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) Output {
	s.emit(model.Event{Type: model.EventAgentStart, SessionID: in.SessionID, Agent: string(model.AgentSynthesizer)})

	anyContent := false
	for _, r := range in.AgentResults {
		if strings.TrimSpace(r.Content) != "" {
			anyContent = true
			break
		}
	}

	var report string
	status := model.AgentStatusCompleted
	if s.Provider != nil && anyContent {
		generated, err := s.runLLM(ctx, in)
		if err != nil {
			report = s.fallback(in)
			status = model.AgentStatusDegraded
		} else {
			report = postProcess(generated)
		}
	} else {
		report = s.fallback(in)
		if !anyContent {
			status = model.AgentStatusDegraded
		}
	}

	generatedAt := s.now()
	pack := evidence.Build(in.SessionID, in.Profile, in.AgentResults, in.DebateExchanges, report, generatedAt)
	snapshot := memory.Build(in.SessionID, in.Profile, in.AgentResults, in.DebateExchanges, report, generatedAt)

	var htmlURL string
	if s.Renderer != nil {
		if url, err := s.Renderer(ctx, in.SessionID, report); err == nil {
			htmlURL = url
		}
	}

	s.emit(model.Event{Type: model.EventAgentEnd, SessionID: in.SessionID, Agent: string(model.AgentSynthesizer), Status: string(status)})

	return Output{
		Report:         report,
		ReportHTMLURL:  htmlURL,
		EvidencePack:   pack,
		MemorySnapshot: snapshot,
		Status:         status,
	}
}

func (s *Synthesizer) runLLM(ctx context.Context, in Input) (string, error) {
	req := llm.Request{
		Model:        s.ModelName,
		SystemPrompt: synthesizerSystemPrompt,
		UserPrompt:   buildSynthesisPrompt(in),
	}

	var output string
	outcome, err := retry.Run(ctx, s.Retry, "agent", string(model.AgentSynthesizer),
		func(ctx context.Context, attempt int) error {
			result, callErr := llm.Call(ctx, s.Provider, req, nil)
			if callErr != nil {
				return callErr
			}
			output = result.Output
			return nil
		},
		func(e retry.Event) {
			s.emit(model.Event{Type: model.EventRetry, SessionID: in.SessionID, TargetType: e.TargetType, TargetID: e.TargetID, Attempt: e.Attempt, MaxAttempts: e.MaxAttempts, Error: errStr(e.Err), BackoffMS: e.BackoffMS})
		},
	)
	if outcome != retry.OutcomeSuccess {
		return "", err
	}
	return output, nil
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

const synthesizerSystemPrompt = "You are the synthesis analyst. Integrate every worker's findings into one coherent market-insight report, calling out agreement and disagreement across them."

func buildSynthesisPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Business context\n")
	fmt.Fprintf(&b, "- target_market: %v\n- supply_chain: %v\n- seller_type: %v\n- price_range: %v-%v\n\n",
		in.Profile["target_market"], in.Profile["supply_chain"], in.Profile["seller_type"], in.Profile["min_price"], in.Profile["max_price"])

	b.WriteString("## Worker findings\n")
	for _, r := range in.AgentResults {
		fmt.Fprintf(&b, "\n### %s\n%s\n", r.AgentName, r.Content)
	}

	if len(in.DebateExchanges) > 0 {
		b.WriteString("\n## Debate transcript\n")
		for _, ex := range in.DebateExchanges {
			fmt.Fprintf(&b, "\n**%s -> %s** (round %d, %s)\nChallenge: %s\nResponse: %s\n",
				ex.Challenger, ex.Responder, ex.RoundNumber, ex.DebateType, clip(ex.ChallengeContent, 200), clip(ex.ResponseContent, 200))
			if ex.FollowupContent != "" {
				fmt.Fprintf(&b, "Follow-up: %s\n", clip(ex.FollowupContent, 200))
			}
			if ex.Revised {
				b.WriteString("(responder indicated a revision)\n")
			}
		}
	}

	b.WriteString("\nIntegrate the above into one report, resolve conflicts explicitly, and give actionable recommendations.\n")
	return b.String()
}

func postProcess(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "# Market Insight Report\n\nReport generation failed; please retry."
	}
	if !strings.HasPrefix(trimmed, "# ") {
		trimmed = "# Market Insight Report\n\n" + trimmed
	}
	return trimmed
}

// fallback builds the deterministic report spec.md §4.8 requires when no
// LLM synthesis is available or usable.
func (s *Synthesizer) fallback(in Input) string {
	var b strings.Builder
	b.WriteString("# Market Insight Report\n\n")

	anySucceeded := false
	var failed []string
	for _, r := range in.AgentResults {
		if strings.TrimSpace(r.Content) != "" {
			anySucceeded = true
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", r.AgentName, r.Content)
		}
		if r.Status == model.AgentStatusFailed || r.Status == model.AgentStatusDegraded {
			failed = append(failed, string(r.AgentName))
		}
	}

	if !anySucceeded {
		b.WriteString("No upstream output available.\n\n")
	}

	if len(failed) > 0 {
		b.WriteString("## Collection Errors\n\n")
		for _, name := range failed {
			fmt.Fprintf(&b, "- %s did not complete successfully\n", name)
		}
		b.WriteString("\n")
	}

	if len(in.DebateExchanges) > 0 {
		b.WriteString("## Debate Summary\n\n")
		for _, ex := range in.DebateExchanges {
			revised := ""
			if ex.Revised {
				revised = " (revised)"
			}
			fmt.Fprintf(&b, "- r%d %s: %s -> %s%s\n", ex.RoundNumber, ex.DebateType, ex.Challenger, ex.Responder, revised)
		}
	}

	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (s *Synthesizer) emit(e model.Event) {
	if s.Emit != nil {
		s.Emit(e)
	}
}
