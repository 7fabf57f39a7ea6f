// Package retry implements the Retry/Backoff Policy (spec.md §4.3): every
// node wraps its work in up to retry_max_attempts attempts with jittered
// exponential backoff, then applies a degrade mode on exhaustion. Grounded
// on y437li-agentic_valuation/pkg/core/debate/orchestrator.go's
// executeAgentTurn retry-and-continue shape, generalized from "log and move
// on" into the three explicit degrade modes spec.md names.
package retry

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"weaveinsight/pkg/core/model"
)

// Policy is one session's retry configuration.
type Policy struct {
	MaxAttempts int // ≥1
	BaseMS      int64
	DegradeMode model.DegradeMode
}

// BackoffMS computes the jittered exponential backoff for targetID on the
// given attempt (1-based), per spec.md §4.3/§8 invariant 9:
// base · 2^(attempt-1) · (1 + 0.01·(hash(target+":"+attempt) mod 41)).
func BackoffMS(baseMS int64, targetID string, attempt int) int64 {
	exp := int64(1) << uint(attempt-1)
	delay := baseMS * exp

	h := fnv.New32a()
	_, _ = h.Write([]byte(targetID + ":" + strconv.Itoa(attempt)))
	jitterPct := int64(h.Sum32() % 41)

	return delay + (delay*jitterPct)/100
}

// Event is the {retry} event spec.md §6 defines, emitted once per exhausted
// attempt while attempts remain.
type Event struct {
	TargetType  string
	TargetID    string
	Attempt     int
	MaxAttempts int
	Err         error
	BackoffMS   int64
}

// Outcome is what Run decided to do after its attempts concluded.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkip
	OutcomePartial
	OutcomeFail
)

// Run executes attempt, retrying on error up to p.MaxAttempts times with
// jittered backoff. onRetry is called once per exhausted-but-retriable
// attempt (the `retry` event). Between attempts it waits out the backoff
// unless ctx is done first; a zero backoff (BaseMS=0) does not wait.
func Run(
	ctx context.Context,
	p Policy,
	targetType, targetID string,
	attempt func(ctx context.Context, attemptNum int) error,
	onRetry func(Event),
) (Outcome, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		lastErr = attempt(ctx, n)
		if lastErr == nil {
			return OutcomeSuccess, nil
		}
		if n == maxAttempts {
			break
		}

		backoff := BackoffMS(p.BaseMS, targetID, n)
		if onRetry != nil {
			onRetry(Event{
				TargetType:  targetType,
				TargetID:    targetID,
				Attempt:     n,
				MaxAttempts: maxAttempts,
				Err:         lastErr,
				BackoffMS:   backoff,
			})
		}
		sleep(ctx, time.Duration(backoff)*time.Millisecond)
	}

	switch p.DegradeMode {
	case model.DegradeSkip:
		return OutcomeSkip, lastErr
	case model.DegradeFail:
		return OutcomeFail, lastErr
	default:
		return OutcomePartial, lastErr
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
