package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider against Google's Gemini models via the
// official genai SDK, adapted from
// y437li-agentic_valuation/pkg/core/llm/gemini.go's client setup and
// Google Search grounding handling — generalized from a single
// GenerateResponse call into the streaming Provider this facade requires.
type GeminiProvider struct {
	Model  string // e.g. "gemini-2.0-flash-exp"
	APIKey string // falls back to GEMINI_API_KEY if empty
}

var _ Provider = (*GeminiProvider)(nil)

func (p *GeminiProvider) Name() string { return "gemini:" + p.modelOrDefault() }

func (p *GeminiProvider) modelOrDefault() string {
	if p.Model != "" {
		return p.Model
	}
	return "gemini-2.0-flash-exp"
}

func (p *GeminiProvider) apiKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv("GEMINI_API_KEY")
}

// Stream issues a streaming GenerateContent call and translates the SDK's
// response chunks into this facade's typed Delta sequence: a response_start,
// one output_delta per text chunk, a search_start/search_complete pair if
// grounding metadata is present, and a terminal response_complete or error.
func (p *GeminiProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.EnableWebsearch {
		config.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}
	}

	ch := make(chan Delta, 16)
	go func() {
		defer close(ch)

		ch <- Delta{Type: DeltaResponseStart}

		searchOpened := false
		for resp, streamErr := range client.Models.GenerateContentStream(ctx, p.modelOrDefault(), genai.Text(req.UserPrompt), config) {
			if ctx.Err() != nil {
				ch <- Delta{Type: DeltaError, Err: ctx.Err()}
				return
			}
			if streamErr != nil {
				ch <- Delta{Type: DeltaError, Err: streamErr}
				return
			}
			if resp == nil {
				continue
			}
			if text := resp.Text(); text != "" {
				ch <- Delta{Type: DeltaOutput, Text: text}
			}
			if len(resp.Candidates) > 0 {
				cand := resp.Candidates[0]
				if cand.GroundingMetadata != nil && len(cand.GroundingMetadata.GroundingChunks) > 0 {
					if !searchOpened {
						ch <- Delta{Type: DeltaSearchStart}
						searchOpened = true
					}
					sources := make([]any, 0, len(cand.GroundingMetadata.GroundingChunks))
					for _, chunk := range cand.GroundingMetadata.GroundingChunks {
						if chunk.Web != nil {
							sources = append(sources, map[string]any{"url": chunk.Web.URI, "title": chunk.Web.Title})
						}
					}
					if len(sources) > 0 {
						ch <- Delta{Type: DeltaSearchComplete, SearchSources: sources}
					}
				}
			}
		}
		ch <- Delta{Type: DeltaResponseComplete}
	}()

	return ch, nil
}
