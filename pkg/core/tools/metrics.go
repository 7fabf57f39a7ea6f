// Package tools implements the Tool Invocation Registry and the per-session
// Guardrail (spec.md §4.2), grounded line-for-line on
// original_source/backend/tools/{registry,metrics,guardrail}.py — the Go
// teacher repo has no equivalent, so this package follows the Python
// reference directly, reimplemented as idiomatic Go rather than translated.
package tools

import (
	"encoding/json"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	asciiWordRE = regexp.MustCompile(`[A-Za-z0-9_]+`)
	cjkCharRE   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	punctCharRE = regexp.MustCompile(`[^\w\s\x{4e00}-\x{9fff}]`)
)

// toText converts an invocation payload to text the way the original's
// _to_text does: strings pass through, everything else is marshaled with
// sorted keys, falling back to fmt-style stringification on marshal error.
func toText(payload any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload.(string); ok {
		return s
	}
	if b, err := marshalSorted(payload); err == nil {
		return string(b)
	}
	return toStringFallback(payload)
}

// marshalSorted mimics Python's json.dumps(..., sort_keys=True): Go's
// encoding/json already sorts map keys when marshaling map[string]any, so a
// plain Marshal suffices for the maps this engine actually produces.
func marshalSorted(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func toStringFallback(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}

// EstimateTokens implements the exact heuristic from
// original_source/backend/tools/metrics.py:estimate_tokens —
// 1.3·ascii_words + 1.5·cjk_chars + 0.3·punct_chars, rounded to nearest
// int, floored at 1 for any non-empty payload.
func EstimateTokens(payload any) int {
	text := toText(payload)
	if text == "" {
		return 0
	}

	asciiWords := len(asciiWordRE.FindAllString(text, -1))
	cjkChars := len(cjkCharRE.FindAllString(text, -1))
	punctChars := len(punctCharRE.FindAllString(text, -1))

	estimate := float64(asciiWords)*1.3 + float64(cjkChars)*1.5 + float64(punctChars)*0.3
	if tokens := int(math.Round(estimate)); tokens > 1 {
		return tokens
	}
	return 1
}

func safeFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func normalizeModelEnvKey(modelName string) string {
	var b strings.Builder
	for _, r := range modelName {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.ToUpper(b.String())
}

// getPricing reads per-1k-token USD pricing, model-specific env override
// falling back to the global default, matching
// original_source/backend/tools/metrics.py:_get_pricing.
func getPricing(modelName string) (inputPrice, outputPrice float64) {
	defaultInput := safeFloat(os.Getenv("TOOL_ESTIMATED_INPUT_PRICE_USD_PER_1K"), 0.0005)
	defaultOutput := safeFloat(os.Getenv("TOOL_ESTIMATED_OUTPUT_PRICE_USD_PER_1K"), 0.0020)

	normalized := normalizeModelEnvKey(modelName)
	inputPrice = safeFloat(os.Getenv("TOOL_ESTIMATED_PRICE_"+normalized+"_INPUT_USD_PER_1K"), defaultInput)
	outputPrice = safeFloat(os.Getenv("TOOL_ESTIMATED_PRICE_"+normalized+"_OUTPUT_USD_PER_1K"), defaultOutput)
	return
}

// EstimateCostUSD computes cost rounded half-up to 6 decimals, matching
// Python's Decimal(...).quantize(Decimal("0.000001"), ROUND_HALF_UP) —
// Go's default float rounding is round-half-to-even, so this must round
// explicitly.
func EstimateCostUSD(modelName string, estimatedInputTokens, estimatedOutputTokens int) float64 {
	inputPrice, outputPrice := getPricing(modelName)
	cost := (float64(estimatedInputTokens)/1000.0)*inputPrice + (float64(estimatedOutputTokens)/1000.0)*outputPrice
	return roundHalfUp(cost, 6)
}

func roundHalfUp(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	scaled := v * scale
	if scaled >= 0 {
		return math.Floor(scaled+0.5) / scale
	}
	return math.Ceil(scaled-0.5) / scale
}

// InvocationMetrics is the {estimated_input_tokens, estimated_output_tokens,
// estimated_cost_usd, cost_mode} tuple attached to every tool_end/tool_error
// event.
type InvocationMetrics struct {
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	EstimatedCostUSD      float64
	CostMode              string
}

// EstimateInvocationMetrics computes the full metrics tuple for one
// invocation, per original_source/backend/tools/metrics.py:estimate_invocation_metrics.
func EstimateInvocationMetrics(inputPayload, outputPayload any, modelName string) InvocationMetrics {
	inTokens := EstimateTokens(inputPayload)
	outTokens := EstimateTokens(outputPayload)
	return InvocationMetrics{
		EstimatedInputTokens:  inTokens,
		EstimatedOutputTokens: outTokens,
		EstimatedCostUSD:      EstimateCostUSD(modelName, inTokens, outTokens),
		CostMode:              "estimate",
	}
}

// InvocationRow is the minimal per-invocation shape AggregateToolMetrics
// groups over; it mirrors the dict rows original_source's
// aggregate_tool_metrics consumes.
type InvocationRow struct {
	AgentName        string
	Status           string
	DurationMS       int64
	EstimatedCostUSD float64
	CacheHit         bool
}

// AggregatedMetrics is one group's (session-wide or per-agent) rollup.
type AggregatedMetrics struct {
	TotalCalls             int
	ErrorCount             int
	ErrorRate              float64
	AvgDurationMS          float64
	TotalEstimatedCostUSD  float64
	CacheHitCount          int
	CacheHitRate           float64
	CostMode               string
}

// AggregateToolMetrics groups invocations by agent name and computes both
// the per-agent and the session-wide rollup, per
// original_source/backend/tools/metrics.py:aggregate_tool_metrics — a
// feature spec.md's Session Metrics Aggregator (§4.12) doesn't itself name
// but which the original computes from the same data this engine already
// collects (see SPEC_FULL.md).
func AggregateToolMetrics(rows []InvocationRow) (session AggregatedMetrics, byAgent map[string]AggregatedMetrics) {
	session = calcGroup(rows)

	grouped := map[string][]InvocationRow{}
	for _, r := range rows {
		name := r.AgentName
		if name == "" {
			name = "unknown"
		}
		grouped[name] = append(grouped[name], r)
	}

	byAgent = make(map[string]AggregatedMetrics, len(grouped))
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		byAgent[name] = calcGroup(grouped[name])
	}
	return session, byAgent
}

func calcGroup(rows []InvocationRow) AggregatedMetrics {
	total := len(rows)
	var errorCount int
	var totalDuration int64
	var totalCost float64
	var cacheHits int

	for _, r := range rows {
		status := strings.ToLower(r.Status)
		if status == "error" || status == "failed" {
			errorCount++
		}
		totalDuration += r.DurationMS
		totalCost += r.EstimatedCostUSD
		if r.CacheHit {
			cacheHits++
		}
	}

	var avgDuration, errorRate, cacheHitRate float64
	if total > 0 {
		avgDuration = float64(totalDuration) / float64(total)
		errorRate = float64(errorCount) / float64(total)
		cacheHitRate = float64(cacheHits) / float64(total)
	}

	return AggregatedMetrics{
		TotalCalls:            total,
		ErrorCount:            errorCount,
		ErrorRate:             roundHalfUp(errorRate, 4),
		AvgDurationMS:         roundHalfUp(avgDuration, 2),
		TotalEstimatedCostUSD: roundHalfUp(totalCost, 6),
		CacheHitCount:         cacheHits,
		CacheHitRate:          roundHalfUp(cacheHitRate, 4),
		CostMode:              "estimate",
	}
}
