package ai

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle spaces outgoing calls at least one minute / limit apart.
// The state lives in the process only.
type throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	clock   Clock
}

func newThrottle(clock Clock) *throttle {
	return &throttle{
		limiter: rate.NewLimiter(rate.Every(time.Minute), 1),
		clock:   clock,
	}
}

// interval returns the minimum spacing for a daily request limit
func interval(limit int) time.Duration {
	if limit < 1 {
		limit = 1
	}
	return time.Minute / time.Duration(limit)
}

// Wait blocks until the next call may go out and returns the time spent waiting.
func (t *throttle) Wait(ctx context.Context, limit int) (time.Duration, error) {
	t.mu.Lock()
	now := t.clock.Now()
	t.limiter.SetLimitAt(now, rate.Every(interval(limit)))
	reservation := t.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	t.mu.Unlock()

	if delay <= 0 {
		return 0, nil
	}

	if err := t.clock.Sleep(ctx, delay); err != nil {
		t.mu.Lock()
		reservation.CancelAt(t.clock.Now())
		t.mu.Unlock()
		return 0, err
	}
	return delay, nil
}
