package llm

import (
	"context"
	"fmt"
)

// OnDelta is invoked once per streamed Delta, in arrival order, before Call
// aggregates it. The Agent Runner uses this hook to forward reasoning/output
// deltas as agent_chunk/agent_thinking events and to wrap search_start/
// search_complete into tool_start/tool_end via the Tool Registry (spec.md
// §4.5 step 3).
type OnDelta func(Delta)

// Call drains one Provider.Stream call to completion, normalizing every
// source URL it encounters and aggregating output/thinking text. It returns
// an error wrapping the DeltaError's Err (fmt.Errorf with %w) if the
// provider reports DeltaError instead of completing.
func Call(ctx context.Context, provider Provider, req Request, onDelta OnDelta) (Result, error) {
	deltas, err := provider.Stream(ctx, req)
	if err != nil {
		return Result{}, err
	}

	var output, thinking string
	sources := NewSourceCollector()
	var streamErr error

	for delta := range deltas {
		if onDelta != nil {
			onDelta(delta)
		}
		switch delta.Type {
		case DeltaOutput:
			output += delta.Text
		case DeltaReasoning:
			thinking += delta.Text
		case DeltaSearchComplete:
			for _, raw := range delta.SearchSources {
				ExtractSources(raw, sources)
			}
		case DeltaError:
			streamErr = delta.Err
		}
	}

	if streamErr != nil {
		return Result{}, fmt.Errorf("llm call failed for model %s: %w", req.Model, streamErr)
	}

	return Result{Output: output, Thinking: thinking, Sources: sources.Sources()}, nil
}
