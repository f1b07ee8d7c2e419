package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle hands out a token-bucket limiter per key.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clock    Clock
	limiters map[string]*rate.Limiter
}

// NewThrottle allows perMinute events per key, with a burst of the same size.
func NewThrottle(perMinute int, clock Clock) *Throttle {
	if perMinute <= 0 {
		perMinute = 1
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Throttle{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		clock:    clock,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token for key and returns how long to wait if none is left.
func (t *Throttle) Allow(key string) LimitResult {
	t.mu.Lock()
	limiter, ok := t.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = limiter
	}
	t.mu.Unlock()

	now := t.clock.Now()
	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return LimitResult{Allowed: true}
	}
	reservation.CancelAt(now)
	return LimitResult{Allowed: false, RetryAfter: delay, Reason: "throttled"}
}
