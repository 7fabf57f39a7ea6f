package debate

import (
	"context"
	"errors"
	"testing"

	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
)

func sampleAgentResults() map[model.AgentName]model.AgentResult {
	return map[model.AgentName]model.AgentResult{
		model.AgentTrendScout:        {AgentName: model.AgentTrendScout, Content: "growth is strong"},
		model.AgentCompetitorAnalyst: {AgentName: model.AgentCompetitorAnalyst, Content: "margins are thin"},
		model.AgentRegulationChecker: {AgentName: model.AgentRegulationChecker, Content: "compliance is manageable"},
		model.AgentSocialSentinel:    {AgentName: model.AgentSocialSentinel, Content: "sentiment is positive"},
	}
}

func TestPeerRound_RunsBothDirectionsOfEveryPairing(t *testing.T) {
	r := &Runner{
		Call:  func(ctx context.Context, turn Turn) (string, error) { return "ack from " + string(turn.From), nil },
		Retry: retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
	}
	exchanges := r.PeerRound(context.Background(), "sess-1", 1, sampleAgentResults())
	if len(exchanges) != 4 {
		t.Fatalf("expected 4 exchanges (2 pairings x 2 directions), got %d", len(exchanges))
	}
	if exchanges[0].Challenger != model.AgentTrendScout || exchanges[0].Responder != model.AgentCompetitorAnalyst {
		t.Fatalf("expected first exchange trend_scout->competitor_analyst, got %+v", exchanges[0])
	}
	if exchanges[1].Challenger != model.AgentCompetitorAnalyst || exchanges[1].Responder != model.AgentTrendScout {
		t.Fatalf("expected second exchange reversed, got %+v", exchanges[1])
	}
}

func TestRedTeamRound_RunsChallengerAgainstEveryWorker(t *testing.T) {
	r := &Runner{
		Call:  func(ctx context.Context, turn Turn) (string, error) { return "reviewed", nil },
		Retry: retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
	}
	exchanges := r.RedTeamRound(context.Background(), "sess-1", 2, sampleAgentResults())
	if len(exchanges) != len(model.WorkerAgents) {
		t.Fatalf("expected one exchange per worker agent, got %d", len(exchanges))
	}
	for _, ex := range exchanges {
		if ex.Challenger != model.AgentDebateChallenger {
			t.Fatalf("expected every red-team exchange challenged by debate_challenger, got %+v", ex)
		}
	}
}

func TestRunExchange_DetectsRevisionMarker(t *testing.T) {
	r := &Runner{
		Call: func(ctx context.Context, turn Turn) (string, error) {
			if turn.From == model.AgentCompetitorAnalyst {
				return "修订: added a citation", nil
			}
			return "a challenge", nil
		},
		Retry: retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
	}
	ex := r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())
	if !ex.Revised {
		t.Fatalf("expected Revised=true when response contains 修订, got %+v", ex)
	}
}

func TestRunExchange_NoRevisionMarker(t *testing.T) {
	r := &Runner{
		Call:  func(ctx context.Context, turn Turn) (string, error) { return "looks solid, no changes needed", nil },
		Retry: retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
	}
	ex := r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())
	if ex.Revised {
		t.Fatalf("expected Revised=false without a revision marker, got %+v", ex)
	}
}

func TestRunExchange_SkipsFollowupWhenDisabled(t *testing.T) {
	calls := 0
	r := &Runner{
		Call: func(ctx context.Context, turn Turn) (string, error) {
			calls++
			return "response", nil
		},
		Retry:          retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
		EnableFollowup: false,
	}
	ex := r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())
	if ex.FollowupContent != "" {
		t.Fatalf("expected no followup content when EnableFollowup=false, got %q", ex.FollowupContent)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls (challenge, respond) without followup, got %d", calls)
	}
}

func TestRunExchange_RunsFollowupWhenEnabled(t *testing.T) {
	calls := 0
	r := &Runner{
		Call: func(ctx context.Context, turn Turn) (string, error) {
			calls++
			return "text", nil
		},
		Retry:          retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
		EnableFollowup: true,
	}
	ex := r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())
	if ex.FollowupContent == "" {
		t.Fatalf("expected followup content when EnableFollowup=true")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls (challenge, respond, followup), got %d", calls)
	}
}

func TestRunExchange_DegradePartialOnPersistentFailure(t *testing.T) {
	wantErr := errors.New("provider down")
	r := &Runner{
		Call:  func(ctx context.Context, turn Turn) (string, error) { return "", wantErr },
		Retry: retry.Policy{MaxAttempts: 1, BaseMS: 0, DegradeMode: model.DegradePartial},
	}
	ex := r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())
	if ex.Challenger != model.AgentTrendScout || ex.Responder != model.AgentCompetitorAnalyst {
		t.Fatalf("expected degrade-partial exchange to still carry challenger/responder, got %+v", ex)
	}
	if ex.FollowupContent == "" {
		t.Fatalf("expected FollowupContent to carry the degrade error message")
	}
}

func TestRunExchange_EmitsEventsInOrder(t *testing.T) {
	var eventTypes []model.EventType
	r := &Runner{
		Call: func(ctx context.Context, turn Turn) (string, error) { return "ok", nil },
		Emit: func(e model.Event) { eventTypes = append(eventTypes, e.Type) },
		Retry: retry.Policy{MaxAttempts: 1, DegradeMode: model.DegradePartial},
		EnableFollowup: true,
	}
	r.runExchange(context.Background(), "sess-1", 1, model.DebateTypePeerReview, model.AgentTrendScout, model.AgentCompetitorAnalyst, sampleAgentResults())

	want := []model.EventType{
		model.EventAgentChallenge, model.EventAgentChallengeEnd,
		model.EventAgentRespond, model.EventAgentRespondEnd,
		model.EventAgentFollowup, model.EventAgentFollowupEnd,
	}
	if len(eventTypes) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(eventTypes), eventTypes)
	}
	for i, w := range want {
		if eventTypes[i] != w {
			t.Fatalf("event[%d] = %v, want %v (full: %v)", i, eventTypes[i], w, eventTypes)
		}
	}
}

func TestClip_TruncatesToRuneLimit(t *testing.T) {
	if got := clip("hello world", 5); got != "hello" {
		t.Fatalf("expected clip to truncate to 5 runes, got %q", got)
	}
	if got := clip("hi", 5); got != "hi" {
		t.Fatalf("expected short string unchanged, got %q", got)
	}
}
