// Package throttle implements the process-wide Adaptive Concurrency Throttle
// (spec.md §4.4): a bounded semaphore that shrinks when upstream calls start
// failing in a connection-like way, and recovers once calls succeed again.
// Grounded on the shrink/cooldown/recover shape of
// y437li-agentic_valuation/pkg/core/debate/orchestrator.go's per-round
// concurrency gating, generalized into a standalone, reusable limiter since
// the teacher inlined the behavior directly in its orchestrator loop.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"weaveinsight/pkg/core/model"
)

const (
	defaultWidth       = 4
	shrunkWidth        = 2
	shrinkThreshold    = 4
	shrinkCooldown     = 120 * time.Second
	recoverAfterStreak = 6
	staggerPerWorker   = 120 * time.Millisecond
)

// staggerLimiter is a single process-wide burst-1 rate.Limiter spacing
// fan-out worker starts staggerPerWorker apart (spec.md §4.4's "per-index
// startup stagger"), rather than a hand-rolled time.Sleep(index*120ms)
// ladder: each caller just waits its turn on the shared limiter, so the
// spacing stays correct no matter how many workers fan out concurrently.
var staggerLimiter = rate.NewLimiter(rate.Every(staggerPerWorker), 1)

// Event is the {adaptive_concurrency} event spec.md §6 defines.
type Event struct {
	Mode             string // "degraded" | "recovered"
	Reason           string
	ConcurrencyLimit int
}

// Throttle is a single process-wide limiter shared by every agent/debate
// call in a session's run. The zero value is not usable; use New.
type Throttle struct {
	mu sync.Mutex

	width    int
	sem      chan struct{}
	shrunkAt time.Time

	consecutiveConnFailures int
	consecutiveSuccesses    int

	onEvent func(Event)
}

// New creates a Throttle at defaultWidth (or width if positive).
func New(width int, onEvent func(Event)) *Throttle {
	if width <= 0 {
		width = defaultWidth
	}
	t := &Throttle{width: width, onEvent: onEvent}
	t.sem = make(chan struct{}, width)
	return t
}

// Stagger blocks the caller until the shared stagger limiter admits it, so
// the initial burst of fan-out worker calls doesn't all land on the
// upstream provider in the same instant. workerIndex is accepted for
// logging/event parity with spec.md's "stagger_ms = worker_index · 120"
// description but no longer drives the wait directly.
func Stagger(ctx context.Context, workerIndex int) error {
	return staggerLimiter.Wait(ctx)
}

// Acquire blocks until a slot is free or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	select {
	case t.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot acquired by Acquire.
func (t *Throttle) Release() {
	<-t.sem
}

// Report tells the throttle the outcome of a call, so it can track
// consecutive connection-like failures and successes. errMsg is empty on
// success.
func (t *Throttle) Report(errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if errMsg == "" {
		t.consecutiveConnFailures = 0
		t.consecutiveSuccesses++
		if t.width == shrunkWidth && !t.shrunkAt.IsZero() &&
			time.Since(t.shrunkAt) >= shrinkCooldown &&
			t.consecutiveSuccesses >= recoverAfterStreak {
			t.resizeLocked(defaultWidth)
			t.consecutiveSuccesses = 0
			t.shrunkAt = time.Time{}
			t.emit(Event{Mode: "recovered", Reason: "success_streak", ConcurrencyLimit: defaultWidth})
		}
		return
	}

	t.consecutiveSuccesses = 0
	if !model.IsConnectionLike(errMsg) {
		return
	}
	t.consecutiveConnFailures++
	if t.width == defaultWidth && t.consecutiveConnFailures >= shrinkThreshold {
		t.resizeLocked(shrunkWidth)
		t.shrunkAt = time.Now()
		t.emit(Event{Mode: "degraded", Reason: "connection_like_failures", ConcurrencyLimit: shrunkWidth})
	}
}

// resizeLocked rebuilds the semaphore channel at newWidth. Must hold t.mu.
// In-flight holders of the old channel's slots simply release into a
// channel nobody drains further; since Release only ever needs to unblock
// a slot, this is safe as long as callers always pair Acquire/Release on
// the same Throttle value across a resize (they do; resize only changes
// total capacity going forward, old slots drain naturally as calls finish).
func (t *Throttle) resizeLocked(newWidth int) {
	old := t.sem
	inFlight := len(old)
	t.width = newWidth
	t.sem = make(chan struct{}, newWidth)
	for i := 0; i < inFlight && i < newWidth; i++ {
		t.sem <- struct{}{}
	}
}

func (t *Throttle) emit(e Event) {
	if t.onEvent != nil {
		t.onEvent(e)
	}
}

// CurrentLimit reports the throttle's current width, for metrics/events.
func (t *Throttle) CurrentLimit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}
