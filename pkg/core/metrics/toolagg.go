package metrics

import "weaveinsight/pkg/core/tools"

// ToolInvocationRollup is one group's (session-wide or per-agent) tool-call
// rollup, re-exported from pkg/core/tools so callers of this package never
// need to import tools directly just to read an aggregation result.
type ToolInvocationRollup = tools.AggregatedMetrics

// ToolInvocationRow is the minimal per-invocation shape AggregateToolInvocations
// groups over.
type ToolInvocationRow = tools.InvocationRow

// AggregateToolInvocations groups a session's tool invocations by agent name
// and returns both the session-wide rollup and the per-agent breakdown,
// restoring a feature original_source/backend/tools/metrics.py computes
// that spec.md's Session Metrics Aggregator (§4.12) doesn't itself name
// (see SPEC_FULL.md's "Features supplemented from original_source/"). The
// actual computation lives in pkg/core/tools, which already owns the
// token/cost estimation this rollup reuses; this is a thin re-export so the
// Session Metrics Aggregator's package is the one callers reach for.
func AggregateToolInvocations(rows []ToolInvocationRow) (session ToolInvocationRollup, byAgent map[string]ToolInvocationRollup) {
	return tools.AggregateToolMetrics(rows)
}
