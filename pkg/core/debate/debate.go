// Package debate implements the Debate Runner (spec.md §4.6): for each
// (challenger, responder) pair in a round, it runs challenge → respond →
// optional follow-up as one retriable unit and produces a DebateExchange.
// Mechanism (phase sequencing, broadcast-style event emission around each
// LLM turn, one-retry-unit-per-exchange) is grounded on the now-superseded
// y437li-agentic_valuation/pkg/core/debate/orchestrator.go's round loop;
// the financial-analyst roster and transcript format it used for a
// different domain have been replaced entirely.
package debate

import (
	"context"
	"fmt"
	"strings"

	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
)

// PeerPairings are the fixed peer-review pairs spec.md §4.6 names, run
// bidirectionally.
var PeerPairings = [][2]model.AgentName{
	{model.AgentTrendScout, model.AgentCompetitorAnalyst},
	{model.AgentRegulationChecker, model.AgentSocialSentinel},
}

const (
	clipOriginal  = 1000
	clipChallenge = 500
)

// Turn is one LLM call the Runner needs to make: challenger, responder,
// round type, and prompt. Callers (the Graph Engine) supply a Caller that
// actually executes it against the Agent Runner / LLM facade.
type Turn struct {
	Round      int
	DebateType model.DebateType
	From       model.AgentName
	To         model.AgentName
	Prompt     string
}

// Caller executes one debate turn and returns the responder's text.
type Caller func(ctx context.Context, turn Turn) (string, error)

// EventFunc surfaces lifecycle events.
type EventFunc func(model.Event)

// Runner drives the challenge/respond/follow-up sequence.
type Runner struct {
	Call          Caller
	Emit          EventFunc
	Retry         retry.Policy
	EnableFollowup bool
}

// PeerRound runs both directions of every PeerPairings entry and returns
// the resulting exchanges in pairing order.
func (r *Runner) PeerRound(ctx context.Context, sessionID string, round int, results map[model.AgentName]model.AgentResult) []model.DebateExchange {
	var exchanges []model.DebateExchange
	for _, pair := range PeerPairings {
		for _, ex := range []model.DebateExchange{
			r.runExchange(ctx, sessionID, round, model.DebateTypePeerReview, pair[0], pair[1], results),
			r.runExchange(ctx, sessionID, round, model.DebateTypePeerReview, pair[1], pair[0], results),
		} {
			if ex.Challenger != "" {
				exchanges = append(exchanges, ex)
			}
		}
	}
	return exchanges
}

// RedTeamRound runs the challenger agent against every worker.
func (r *Runner) RedTeamRound(ctx context.Context, sessionID string, round int, results map[model.AgentName]model.AgentResult) []model.DebateExchange {
	var exchanges []model.DebateExchange
	for _, worker := range model.WorkerAgents {
		if ex := r.runExchange(ctx, sessionID, round, model.DebateTypeRedTeam, model.AgentDebateChallenger, worker, results); ex.Challenger != "" {
			exchanges = append(exchanges, ex)
		}
	}
	return exchanges
}

func (r *Runner) runExchange(ctx context.Context, sessionID string, round int, debateType model.DebateType, challenger, responder model.AgentName, results map[model.AgentName]model.AgentResult) model.DebateExchange {
	targetID := fmt.Sprintf("r%d:%s->%s", round, challenger, responder)

	var exchange model.DebateExchange
	outcome, err := retry.Run(ctx, r.Retry, "debate_exchange", targetID,
		func(ctx context.Context, attempt int) error {
			ex, runErr := r.runOnce(ctx, sessionID, round, debateType, challenger, responder, results, attempt)
			if runErr != nil {
				return runErr
			}
			exchange = ex
			return nil
		},
		func(e retry.Event) {
			r.emit(model.Event{Type: model.EventRetry, SessionID: sessionID, TargetType: e.TargetType, TargetID: e.TargetID, Attempt: e.Attempt, MaxAttempts: e.MaxAttempts, Error: errString(e.Err), BackoffMS: e.BackoffMS})
		},
	)

	switch outcome {
	case retry.OutcomeSuccess:
		return exchange
	case retry.OutcomePartial:
		return model.DebateExchange{
			RoundNumber:      round,
			DebateType:       debateType,
			Challenger:       challenger,
			Responder:        responder,
			ChallengeContent: exchange.ChallengeContent,
			ResponseContent:  exchange.ResponseContent,
			FollowupContent:  "error: " + errString(err),
		}
	default: // skip, fail: a zero-value exchange, which PeerRound/
		// RedTeamRound drop because its Challenger is empty. A fail outcome
		// is not reported past this point: the round carries on without
		// the exchange and the session does not abort.
		return model.DebateExchange{}
	}
}

func (r *Runner) runOnce(ctx context.Context, sessionID string, round int, debateType model.DebateType, challenger, responder model.AgentName, results map[model.AgentName]model.AgentResult, attempt int) (model.DebateExchange, error) {
	responderOriginal := results[responder].Content

	r.emit(model.Event{Type: model.EventAgentChallenge, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(challenger), ToAgent: string(responder), Attempt: attempt})
	challengeText, err := r.Call(ctx, Turn{Round: round, DebateType: debateType, From: challenger, To: responder, Prompt: challengePrompt(debateType, challenger, responder, responderOriginal)})
	if err != nil {
		return model.DebateExchange{}, fmt.Errorf("challenge %s->%s: %w", challenger, responder, err)
	}
	r.emit(model.Event{Type: model.EventAgentChallengeEnd, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(challenger), ToAgent: string(responder), Content: challengeText, ContentPreview: clip(challengeText, 200), Attempt: attempt})

	r.emit(model.Event{Type: model.EventAgentRespond, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(responder), ToAgent: string(challenger), Attempt: attempt})
	responseText, err := r.Call(ctx, Turn{Round: round, DebateType: debateType, From: responder, To: challenger, Prompt: respondPrompt(clip(responderOriginal, clipOriginal), challengeText)})
	if err != nil {
		return model.DebateExchange{}, fmt.Errorf("respond %s->%s: %w", responder, challenger, err)
	}
	revised := strings.Contains(responseText, "修订") || strings.Contains(responseText, "修改")
	r.emit(model.Event{Type: model.EventAgentRespondEnd, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(responder), ToAgent: string(challenger), Content: responseText, ContentPreview: clip(responseText, 200), Revised: revised, Attempt: attempt})

	exchange := model.DebateExchange{
		RoundNumber:      round,
		DebateType:       debateType,
		Challenger:       challenger,
		Responder:        responder,
		ChallengeContent: challengeText,
		ResponseContent:  responseText,
		Revised:          revised,
	}

	if !r.EnableFollowup {
		return exchange, nil
	}

	r.emit(model.Event{Type: model.EventAgentFollowup, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(challenger), ToAgent: string(responder), Attempt: attempt})
	followupText, err := r.Call(ctx, Turn{Round: round, DebateType: debateType, From: challenger, To: responder, Prompt: followupPrompt(clip(challengeText, clipChallenge), responseText)})
	if err != nil {
		return model.DebateExchange{}, fmt.Errorf("followup %s->%s: %w", challenger, responder, err)
	}
	r.emit(model.Event{Type: model.EventAgentFollowupEnd, SessionID: sessionID, RoundNumber: round, DebateType: string(debateType), FromAgent: string(challenger), ToAgent: string(responder), Content: followupText, ContentPreview: clip(followupText, 200), Attempt: attempt})
	exchange.FollowupContent = followupText

	return exchange, nil
}

func challengePrompt(debateType model.DebateType, challenger, responder model.AgentName, responderContent string) string {
	if debateType == model.DebateTypeRedTeam {
		return fmt.Sprintf("As the red-team reviewer, challenge %s's findings:\n%s", responder, responderContent)
	}
	return fmt.Sprintf("As %s, peer-review %s's findings:\n%s", challenger, responder, responderContent)
}

func respondPrompt(originalClip, challenge string) string {
	return fmt.Sprintf("Your original analysis:\n%s\n\nChallenge raised:\n%s\n\nRespond, revising your analysis if warranted.", originalClip, challenge)
}

func followupPrompt(challengeClip, response string) string {
	return fmt.Sprintf("Your original challenge:\n%s\n\nResponse received:\n%s\n\nAny remaining concerns?", challengeClip, response)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
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
