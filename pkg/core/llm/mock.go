package llm

import (
	"context"
	"fmt"
	"time"
)

// MockProvider is a deterministic test double, grounded on
// y437li-agentic_valuation/pkg/core/debate/mock_agents.go's MockAgent: a
// canned reply after a configurable latency, used by cmd/orchestrator's
// simulation mode and by this package's own tests so neither needs a live
// API key.
type MockProvider struct {
	ProviderName string
	Reply        string
	Sources      []string
	Latency      time.Duration
	Fail         error // if set, Stream emits DeltaError instead of succeeding
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	latency := m.Latency
	if latency == 0 {
		latency = 50 * time.Millisecond
	}

	ch := make(chan Delta, 8)
	go func() {
		defer close(ch)

		select {
		case <-time.After(latency):
		case <-ctx.Done():
			ch <- Delta{Type: DeltaError, Err: ctx.Err()}
			return
		}

		if m.Fail != nil {
			ch <- Delta{Type: DeltaError, Err: m.Fail}
			return
		}

		ch <- Delta{Type: DeltaResponseStart}
		reply := m.Reply
		if reply == "" {
			reply = fmt.Sprintf("mock response for model %s", req.Model)
		}
		ch <- Delta{Type: DeltaOutput, Text: reply}

		if req.EnableWebsearch && len(m.Sources) > 0 {
			ch <- Delta{Type: DeltaSearchStart}
			sources := make([]any, len(m.Sources))
			for i, s := range m.Sources {
				sources[i] = s
			}
			ch <- Delta{Type: DeltaSearchComplete, SearchSources: sources}
		}

		ch <- Delta{Type: DeltaResponseComplete}
	}()

	return ch, nil
}
