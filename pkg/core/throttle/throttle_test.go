package throttle

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNew_DefaultsWidthWhenNonPositive(t *testing.T) {
	th := New(0, nil)
	if th.CurrentLimit() != defaultWidth {
		t.Fatalf("expected default width %d, got %d", defaultWidth, th.CurrentLimit())
	}
	th2 := New(-3, nil)
	if th2.CurrentLimit() != defaultWidth {
		t.Fatalf("expected default width for negative input, got %d", th2.CurrentLimit())
	}
	th3 := New(7, nil)
	if th3.CurrentLimit() != 7 {
		t.Fatalf("expected explicit width 7, got %d", th3.CurrentLimit())
	}
}

func TestAcquireRelease_RespectsWidth(t *testing.T) {
	th := New(2, nil)
	ctx := context.Background()

	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = th.Acquire(context.Background())
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third Acquire should have blocked while width=2 slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	th.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third Acquire should have unblocked after a Release")
	}
	th.Release()
	th.Release()
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	th := New(1, nil)
	ctx := context.Background()
	if err := th.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Acquire(cctx); err == nil {
		t.Fatal("expected context deadline error while slot is held")
	}
}

func TestReport_DoesNotShrinkBelowThreshold(t *testing.T) {
	var events []Event
	th := New(defaultWidth, func(e Event) { events = append(events, e) })

	for i := 0; i < shrinkThreshold-1; i++ {
		th.Report("dial tcp: connection error")
	}

	if th.CurrentLimit() != defaultWidth {
		t.Fatalf("width should stay at default below the shrink threshold, got %d", th.CurrentLimit())
	}
	if len(events) != 0 {
		t.Fatalf("expected no degrade event below threshold, got %+v", events)
	}
}

func TestReport_ShrinksOnConnectionLikeFailure(t *testing.T) {
	var events []Event
	var mu sync.Mutex
	th := New(defaultWidth, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	for i := 0; i < shrinkThreshold; i++ {
		th.Report("dial tcp: connection error")
	}

	if th.CurrentLimit() != shrunkWidth {
		t.Fatalf("expected width to shrink to %d, got %d", shrunkWidth, th.CurrentLimit())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Mode != "degraded" {
		t.Fatalf("expected exactly one degraded event, got %+v", events)
	}
}

func TestReport_IgnoresNonConnectionLikeFailure(t *testing.T) {
	th := New(defaultWidth, nil)
	th.Report("invalid json response")
	if th.CurrentLimit() != defaultWidth {
		t.Fatalf("width should stay at default for a non-connection-like error, got %d", th.CurrentLimit())
	}
}

func TestReport_DoesNotRecoverBeforeCooldownElapses(t *testing.T) {
	var events []Event
	th := New(defaultWidth, func(e Event) { events = append(events, e) })

	for i := 0; i < shrinkThreshold; i++ {
		th.Report("connection error: refused")
	}
	if th.CurrentLimit() != shrunkWidth {
		t.Fatalf("expected shrink, got width %d", th.CurrentLimit())
	}

	for i := 0; i < recoverAfterStreak; i++ {
		th.Report("")
	}

	if th.CurrentLimit() != shrunkWidth {
		t.Fatalf("width should stay shrunk when the success streak completes before the cooldown elapses, got %d", th.CurrentLimit())
	}
	if len(events) != 1 {
		t.Fatalf("expected only the degraded event, no premature recovered event, got %+v", events)
	}
}

func TestReport_RecoversAfterCooldownAndSuccessStreak(t *testing.T) {
	var events []Event
	th := New(defaultWidth, func(e Event) { events = append(events, e) })

	for i := 0; i < shrinkThreshold; i++ {
		th.Report("connection error: refused")
	}
	if th.CurrentLimit() != shrunkWidth {
		t.Fatalf("expected shrink, got width %d", th.CurrentLimit())
	}

	th.mu.Lock()
	th.shrunkAt = time.Now().Add(-shrinkCooldown - time.Second)
	th.mu.Unlock()

	for i := 0; i < recoverAfterStreak; i++ {
		th.Report("")
	}

	if th.CurrentLimit() != defaultWidth {
		t.Fatalf("expected recovery to default width %d once cooldown has elapsed, got %d", defaultWidth, th.CurrentLimit())
	}
	if len(events) != 2 || events[1].Mode != "recovered" {
		t.Fatalf("expected a degraded event followed by a recovered event, got %+v", events)
	}
}

func TestReport_SuccessResetsConsecutiveFailures(t *testing.T) {
	th := New(defaultWidth, nil)
	th.Report("network unreachable")
	th.Report("")
	if th.consecutiveConnFailures != 0 {
		t.Fatalf("a success should reset consecutiveConnFailures, got %d", th.consecutiveConnFailures)
	}
}

func TestStagger_AdmitsSequentialCallers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Stagger(ctx, 0); err != nil {
		t.Fatalf("unexpected error from Stagger: %v", err)
	}
}
