package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// NewPerMinuteLimiter returns a limiter that allows maxPerMinute requests spread evenly over a minute.
// A non-positive value disables limiting.
func NewPerMinuteLimiter(maxPerMinute int) *rate.Limiter {
	if maxPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	secondsPerRequest := time.Minute / time.Duration(maxPerMinute)
	return rate.NewLimiter(rate.Every(secondsPerRequest), 1)
}

// Throttle bounds both the number of in-flight calls and their rate.
type Throttle struct {
	slots   chan struct{}
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle allowing maxConcurrent simultaneous calls and maxPerMinute calls per minute.
func NewThrottle(maxConcurrent, maxPerMinute int) *Throttle {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Throttle{
		slots:   make(chan struct{}, maxConcurrent),
		limiter: NewPerMinuteLimiter(maxPerMinute),
	}
}

// Acquire blocks until a slot is free and the rate budget allows another call.
// The returned release func must be called once the call is done.
func (t *Throttle) Acquire(ctx context.Context) (func(), error) {
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := t.limiter.Wait(ctx); err != nil {
		<-t.slots
		return nil, err
	}

	return func() { <-t.slots }, nil
}

// InFlight reports how many slots are currently taken.
func (t *Throttle) InFlight() int {
	return len(t.slots)
}

// Capacity reports the maximum number of concurrent calls.
func (t *Throttle) Capacity() int {
	return cap(t.slots)
}
