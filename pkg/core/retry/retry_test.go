package retry

import (
	"context"
	"errors"
	"testing"

	"weaveinsight/pkg/core/model"
)

func TestBackoffMS_Deterministic(t *testing.T) {
	a := BackoffMS(500, "r1:trend_scout->competitor_analyst", 1)
	b := BackoffMS(500, "r1:trend_scout->competitor_analyst", 1)
	if a != b {
		t.Fatalf("BackoffMS should be deterministic for the same inputs, got %d and %d", a, b)
	}
	if a < 500 || a >= 1000 {
		t.Fatalf("attempt 1 backoff should be base*(1+jitter in [0,0.4]), got %d", a)
	}
}

// TestBackoffMS_GrowsExponentially relies on the jitter term being bounded
// to [0%, 40%] of the base delay: attempt 1's maximum possible value
// (500*1.40=700) is always below attempt 2's minimum possible value
// (1000*1.00=1000), so attempt2 > attempt1 holds regardless of hash output
// for any targetID.
func TestBackoffMS_GrowsExponentially(t *testing.T) {
	attempt1 := BackoffMS(500, "same-target", 1)
	attempt2 := BackoffMS(500, "same-target", 2)
	if attempt1 < 500 || attempt1 > 700 {
		t.Fatalf("attempt 1 backoff out of expected [500,700] range, got %d", attempt1)
	}
	if attempt2 < 1000 || attempt2 > 1400 {
		t.Fatalf("attempt 2 backoff out of expected [1000,1400] range, got %d", attempt2)
	}
	if attempt2 <= attempt1 {
		t.Fatalf("attempt 2 backoff should exceed attempt 1, got %d vs %d", attempt2, attempt1)
	}
}

func TestRun_SucceedsFirstTry(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseMS: 0, DegradeMode: model.DegradePartial}
	calls := 0
	outcome, err := Run(context.Background(), p, "agent", "trend_scout",
		func(ctx context.Context, attempt int) error { calls++; return nil },
		nil,
	)
	if outcome != OutcomeSuccess || err != nil {
		t.Fatalf("expected success, got outcome=%v err=%v", outcome, err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestRun_ExhaustsThenDegradesPartial(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseMS: 0, DegradeMode: model.DegradePartial}
	wantErr := errors.New("boom")
	var retryEvents []Event

	outcome, err := Run(context.Background(), p, "agent", "trend_scout",
		func(ctx context.Context, attempt int) error { return wantErr },
		func(e Event) { retryEvents = append(retryEvents, e) },
	)
	if outcome != OutcomePartial {
		t.Fatalf("expected OutcomePartial, got %v", outcome)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped wantErr, got %v", err)
	}
	if len(retryEvents) != 1 {
		t.Fatalf("expected exactly one retry event (attempts-1), got %d", len(retryEvents))
	}
	if retryEvents[0].Attempt != 1 || retryEvents[0].MaxAttempts != 2 {
		t.Fatalf("unexpected retry event: %+v", retryEvents[0])
	}
}

func TestRun_DegradeSkipAndFail(t *testing.T) {
	always := func(ctx context.Context, attempt int) error { return errors.New("x") }

	skipOutcome, _ := Run(context.Background(), Policy{MaxAttempts: 1, DegradeMode: model.DegradeSkip}, "agent", "t", always, nil)
	if skipOutcome != OutcomeSkip {
		t.Fatalf("expected OutcomeSkip, got %v", skipOutcome)
	}

	failOutcome, _ := Run(context.Background(), Policy{MaxAttempts: 1, DegradeMode: model.DegradeFail}, "agent", "t", always, nil)
	if failOutcome != OutcomeFail {
		t.Fatalf("expected OutcomeFail, got %v", failOutcome)
	}
}

func TestRun_MaxAttemptsClampedToOne(t *testing.T) {
	p := Policy{MaxAttempts: 0, DegradeMode: model.DegradePartial}
	calls := 0
	Run(context.Background(), p, "agent", "t", func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("always fails")
	}, nil)
	if calls != 1 {
		t.Fatalf("MaxAttempts<1 should still run exactly once, got %d calls", calls)
	}
}
