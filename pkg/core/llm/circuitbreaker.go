package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings, matching
// hieuntg81-alfred-ai/internal/adapter/llm/circuitbreaker.go's defaults.
const (
	defaultMaxFailures uint32        = 5
	defaultCBTimeout   time.Duration = 30 * time.Second
	defaultCBInterval  time.Duration = 60 * time.Second
)

// CircuitBreakerConfig configures CircuitBreakerProvider.
type CircuitBreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// CircuitBreakerProvider wraps a Provider with a circuit breaker that opens
// after a run of consecutive failures, failing fast without reaching the
// upstream provider — a faster, provider-local complement to the process-
// wide Adaptive Throttle (spec.md §4.4), which reacts only to connection-
// like failures across the whole process. Grounded directly on
// hieuntg81-alfred-ai/internal/adapter/llm/circuitbreaker.go, generalized
// from domain.LLMProvider's request/response Chat to this facade's
// streaming Provider.
type CircuitBreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreakerProvider wraps inner with a circuit breaker using cfg,
// or sensible defaults for any zero-valued field.
func NewCircuitBreakerProvider(inner Provider, cfg CircuitBreakerConfig) *CircuitBreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings[struct{}]{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})

	return &CircuitBreakerProvider{inner: inner, breaker: cb}
}

func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

// Stream gates stream *initiation* through the breaker — once a stream
// starts, in-stream errors surface through the channel rather than
// re-tripping the breaker per delta, matching the alfred-ai precedent.
func (p *CircuitBreakerProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	var ch <-chan Delta
	_, err := p.breaker.Execute(func() (struct{}, error) {
		var streamErr error
		ch, streamErr = p.inner.Stream(ctx, req)
		return struct{}{}, streamErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q circuit open: %w", p.inner.Name(), err)
		}
		return nil, err
	}
	return ch, nil
}
