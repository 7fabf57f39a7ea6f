// Command orchestrator runs one market-insight session end to end against
// either the mock provider or (with GEMINI_API_KEY set) Gemini, printing
// every lifecycle event as it streams. It is a demonstration entrypoint,
// not the HTTP/SSE transport spec.md §1 places out of scope — wiring a
// real transport in front of graph.Engine.Run is left to the caller.
// Progress narration here follows y437li-agentic_valuation/cmd/pipeline's
// plain fmt.Println style, since this is a human-facing demo runner, not a
// long-lived service; the few setup notices (no .env file, no provider
// override config, database connect failure) go through package-level
// log/slog calls.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"weaveinsight/pkg/core/agent"
	"weaveinsight/pkg/core/debate"
	"weaveinsight/pkg/core/eventsink"
	"weaveinsight/pkg/core/graph"
	"weaveinsight/pkg/core/llm"
	"weaveinsight/pkg/core/model"
	"weaveinsight/pkg/core/retry"
	"weaveinsight/pkg/core/store"
	"weaveinsight/pkg/core/synth"
	"weaveinsight/pkg/core/throttle"
	"weaveinsight/pkg/core/tools"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, assuming environment variables are set")
	}

	providerName, llmProvider := resolveProvider()
	fmt.Printf("weaveinsight orchestrator starting (provider=%s)\n", providerName)

	cfg := model.DefaultWorkflowConfig()

	guardrail := tools.NewGuardrail(tools.GuardrailConfig{
		MaxEstimatedCostUSD:  5.0,
		MaxErrorRate:         0.5,
		MinCallsForErrorRate: 3,
	})
	toolRegistry := tools.NewRegistry(guardrail)

	var sink *eventsink.SessionSink
	emit := func(e model.Event) {
		e.Timestamp = time.Now().UTC()
		printEvent(e)
		if sink != nil {
			sink.OnEvent(e)
		}
	}

	thr := throttle.New(0, func(e throttle.Event) {
		fmt.Printf("  [throttle] %s limit=%d reason=%s\n", e.Mode, e.ConcurrencyLimit, e.Reason)
		emit(model.Event{
			Type:             model.EventAdaptiveConcurrency,
			Mode:             e.Mode,
			Reason:           e.Reason,
			ConcurrencyLimit: e.ConcurrencyLimit,
		})
	})

	providers := map[string]llm.Provider{providerName: llmProvider}
	registry := agent.NewRegistry(loadProviderConfig(providerName), providers)

	retryPolicy := retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, BaseMS: cfg.RetryBackoffMS, DegradeMode: cfg.DegradeMode}

	runner := &agent.Runner{Providers: registry, Throttle: thr, Tools: toolRegistry, Retry: retryPolicy, Emit: emit}

	debateCaller := func(ctx context.Context, turn debate.Turn) (string, error) {
		provider, err := registry.Resolve(turn.From)
		if err != nil {
			return "", err
		}
		if err := thr.Acquire(ctx); err != nil {
			return "", err
		}
		defer thr.Release()
		result, callErr := llm.Call(ctx, provider, llm.Request{Model: providerName, UserPrompt: turn.Prompt}, nil)
		thr.Report(errStringOrEmpty(callErr))
		if callErr != nil {
			return "", callErr
		}
		return result.Output, nil
	}
	debateRunner := &debate.Runner{Call: debateCaller, Emit: emit, Retry: retryPolicy, EnableFollowup: cfg.EnableFollowup}

	synthesizer := &synth.Synthesizer{Provider: llmProvider, ModelName: providerName, Retry: retryPolicy, Emit: emit}

	workerDescriptor := func(name model.AgentName) agent.Descriptor {
		return agent.Descriptor{
			Name:            name,
			ModelName:       providerName,
			SystemPrompt:    func(model.Profile) string { return fmt.Sprintf("You are the %s analyst.", name) },
			UserPrompt:      func(p model.Profile) string { return fmt.Sprintf("Analyze the opportunity for %v in %v.", p["target_market"], p["category"]) },
			EnableWebsearch: cfg.EnableWebsearch,
			WebsearchLimit:  5,
			ThinkingMode:    llm.ThinkingOff,
		}
	}

	engine := &graph.Engine{
		Agents:           runner,
		Debates:          debateRunner,
		Synthesizer:      synthesizer,
		Checkpointer:     graph.NewMemCheckpointer(),
		Emit:             emit,
		WorkerDescriptor: workerDescriptor,
	}

	profile := model.Profile{
		"target_market": "Southeast Asia",
		"category":      "consumer electronics accessories",
		"seller_type":   "cross-border D2C",
		"min_price":     15.0,
		"max_price":     60.0,
	}
	sessionID := uuid.NewString()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := store.Connect(context.Background(), dbURL)
		if err != nil {
			slog.Warn("database connect failed, running without persistence", "error", err)
		} else {
			defer pool.Close()
			writer := eventsink.NewWriter(store.NewPGStore(pool))
			defer writer.Close()
			sink = eventsink.NewSessionSink(sessionID, profile, cfg, writer)
		}
	}

	fmt.Printf("session %s starting\n", sessionID)
	final := engine.Run(context.Background(), sessionID, profile, cfg)

	fmt.Println("\n--- final report ---")
	fmt.Println(final.SynthesizedReport)
	fmt.Printf("\nphase=%s agent_results=%d debate_exchanges=%d\n", final.Phase, len(final.AgentResults), len(final.DebateExchanges))
}

// loadProviderConfig reads config/models.yaml for per-agent provider
// overrides (spec.md §6's agents config block), falling back to a bare
// active-provider config if the file is absent — this is a demo runner, not
// a deployed service, so a missing override file is not fatal.
func loadProviderConfig(providerName string) agent.Config {
	cfg, err := agent.LoadConfig("config/models.yaml")
	if err != nil {
		slog.Info("no provider override config found, using active provider for every agent", "error", err)
		return agent.Config{ActiveProvider: providerName}
	}
	if cfg.ActiveProvider == "" {
		cfg.ActiveProvider = providerName
	}
	return cfg
}

func resolveProvider() (string, llm.Provider) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			model = "gemini-2.0-flash-exp"
		}
		provider := llm.NewCircuitBreakerProvider(&llm.GeminiProvider{Model: model, APIKey: key}, llm.CircuitBreakerConfig{})
		return "gemini:" + model, provider
	}
	return "mock", &llm.MockProvider{
		Reply:   "Strong growth signal with moderate regulatory exposure.",
		Sources: []string{"https://example.com/market-report"},
	}
}

func printEvent(e model.Event) {
	switch e.Type {
	case model.EventAgentChunk, model.EventAgentThinking:
		return
	}
	fmt.Printf("  [event] %-24s agent=%-20s round=%d status=%s\n", e.Type, firstNonEmpty(e.Agent, e.FromAgent), e.RoundNumber, e.Status)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func errStringOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
