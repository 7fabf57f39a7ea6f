// Package store implements the relational persistence surface spec.md §6
// names: idempotent upsert/insert primitives over a fixed five-table
// schema (sessions, agent_results, debate_exchanges, workflow_events,
// tool_invocations). Grounded on y437li-agentic_valuation/pkg/core/store's
// repo-over-pgxpool.Pool shape (NotesRepo, AnalysisRepo), generalized from
// that package's collection of narrow single-table repos into one Store
// covering the session-orchestration schema and satisfying
// pkg/core/eventsink.Store.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgxpool against dbURL (e.g. the DATABASE_URL env var),
// the same config surface y437li-agentic_valuation/pkg/core/store/db.go
// uses, but returned to the caller instead of stashed in a package global —
// this module's components take their dependencies through constructors.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("store: DATABASE_URL not set")
	}
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("store: failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open pool: %w", err)
	}
	return pool, nil
}
