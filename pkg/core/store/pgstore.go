package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"weaveinsight/pkg/core/model"
)

// PGStore implements pkg/core/eventsink.Store against the Schema in schema.go,
// grounded on the same pool-wrapping repo shape as
// y437li-agentic_valuation/pkg/core/store/notes_repo.go (JSON-marshal
// structured fields into JSONB, ON CONFLICT upserts), but collapsed into
// one Store instead of one repo per table since the Event Sink only ever
// needs these five operations.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-open pool. Use Connect to open one.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CreateSession(sessionID string, profile model.Profile, cfg model.WorkflowConfig) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("store: marshal profile: %w", err)
	}
	_, err = s.pool.Exec(context.Background(), `
		INSERT INTO sessions (
			id, profile, target_market, supply_chain, seller_type, min_price, max_price,
			debate_rounds, enable_followup, enable_websearch, status, phase, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'pending','init', now())
		ON CONFLICT (id) DO NOTHING`,
		sessionID, profileJSON,
		stringField(profile, "target_market"), stringField(profile, "supply_chain"), stringField(profile, "seller_type"),
		numberField(profile, "min_price"), numberField(profile, "max_price"),
		cfg.DebateRounds, cfg.EnableFollowup, cfg.EnableWebsearch,
	)
	if err != nil {
		return fmt.Errorf("store: create session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateSessionFields applies a partial update to the sessions row.
// fields keys must match spec.md §6's column names exactly; unknown keys
// are rejected rather than silently ignored so a caller typo surfaces
// immediately instead of being a silent no-op.
func (s *PGStore) UpdateSessionFields(sessionID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	for key := range fields {
		known := false
		for _, col := range sessionUpdatableColumns {
			if key == col {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("store: update session %s: unknown column %q", sessionID, key)
		}
	}
	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	i := 1
	for _, col := range sessionUpdatableColumns {
		v, ok := fields[col]
		if !ok {
			continue
		}
		if col == "evidence_pack" || col == "memory_snapshot" {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("store: marshal %s: %w", col, err)
			}
			v = b
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, v)
		i++
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, sessionID)
	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = $%d", join(set, ", "), i)
	if _, err := s.pool.Exec(context.Background(), query, args...); err != nil {
		return fmt.Errorf("store: update session %s: %w", sessionID, err)
	}
	return nil
}

var sessionUpdatableColumns = []string{
	"status", "phase", "current_debate_round", "synthesized_report",
	"evidence_pack", "memory_snapshot", "evidence_generated_at",
	"memory_snapshot_generated_at", "error_message", "enable_websearch",
	"completed_at",
}

func (s *PGStore) UpsertAgentResult(sessionID string, agentName string, fields map[string]any) error {
	status, _ := fields["status"].(string)
	content, _ := fields["content"].(string)
	thinking, _ := fields["thinking"].(string)
	errMsg, _ := fields["error_message"].(string)
	durationMS, _ := fields["duration_ms"].(int64)

	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO agent_results (session_id, agent_name, status, content, thinking, error_message, duration_ms, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		ON CONFLICT (session_id, agent_name) DO UPDATE SET
			status        = COALESCE(NULLIF(EXCLUDED.status, ''), agent_results.status),
			content       = CASE WHEN EXCLUDED.content <> '' THEN EXCLUDED.content ELSE agent_results.content END,
			thinking      = CASE WHEN EXCLUDED.thinking <> '' THEN EXCLUDED.thinking ELSE agent_results.thinking END,
			error_message = CASE WHEN EXCLUDED.error_message <> '' THEN EXCLUDED.error_message ELSE agent_results.error_message END,
			duration_ms   = CASE WHEN EXCLUDED.duration_ms <> 0 THEN EXCLUDED.duration_ms ELSE agent_results.duration_ms END,
			completed_at  = now()`,
		sessionID, agentName, status, content, thinking, errMsg, durationMS,
	)
	if err != nil {
		return fmt.Errorf("store: upsert agent result %s/%s: %w", sessionID, agentName, err)
	}
	return nil
}

func (s *PGStore) InsertDebateExchange(sessionID string, exchange model.DebateExchange) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO debate_exchanges (
			session_id, round_number, debate_type, challenger, responder,
			challenge_content, response_content, followup_content, revised
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sessionID, exchange.RoundNumber, string(exchange.DebateType),
		string(exchange.Challenger), string(exchange.Responder),
		exchange.ChallengeContent, exchange.ResponseContent, exchange.FollowupContent, exchange.Revised,
	)
	if err != nil {
		return fmt.Errorf("store: insert debate exchange %s: %w", sessionID, err)
	}
	return nil
}

func (s *PGStore) InsertWorkflowEvent(sessionID string, eventType model.EventType, agentName string, payload model.Event) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal workflow event payload: %w", err)
	}
	_, err = s.pool.Exec(context.Background(), `
		INSERT INTO workflow_events (session_id, event_type, agent_name, tool_name, payload)
		VALUES ($1,$2,$3,$4,$5)`,
		sessionID, string(eventType), nullIfEmpty(agentName), nullIfEmpty(payload.Tool), payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("store: insert workflow event %s/%s: %w", sessionID, eventType, err)
	}
	return nil
}

func (s *PGStore) InsertToolInvocation(invocation model.ToolInvocation) error {
	inputJSON, err := json.Marshal(invocation.InputPayload)
	if err != nil {
		return fmt.Errorf("store: marshal tool invocation input: %w", err)
	}
	outputJSON, err := json.Marshal(invocation.OutputPayload)
	if err != nil {
		return fmt.Errorf("store: marshal tool invocation output: %w", err)
	}
	_, err = s.pool.Exec(context.Background(), `
		INSERT INTO tool_invocations (
			session_id, invocation_id, agent_name, tool_name, status, duration_ms,
			input, output, error_message, context, model_name, cache_hit,
			estimated_input_tokens, estimated_output_tokens, estimated_cost_usd,
			started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (invocation_id) DO UPDATE SET
			status         = EXCLUDED.status,
			duration_ms    = EXCLUDED.duration_ms,
			output         = EXCLUDED.output,
			error_message  = EXCLUDED.error_message,
			finished_at    = EXCLUDED.finished_at`,
		invocation.SessionID, invocation.InvocationID, invocation.AgentName, invocation.Tool, string(invocation.Status), invocation.DurationMS,
		inputJSON, outputJSON, invocation.ErrorMessage, invocation.Context, invocation.ModelName, invocation.CacheHit,
		invocation.EstimatedInputTokens, invocation.EstimatedOutputTokens, invocation.EstimatedCostUSD,
		invocation.StartedAt, invocation.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert tool invocation %s: %w", invocation.InvocationID, err)
	}
	return nil
}

func stringField(p model.Profile, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func numberField(p model.Profile, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
