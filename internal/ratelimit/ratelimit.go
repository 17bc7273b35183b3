// Package ratelimit provides the shared limiters placed in front of the LLM and embedding services.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Waiter blocks until the caller may proceed or ctx is done. *rate.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// WaiterFunc adapts a function to Waiter.
type WaiterFunc func(ctx context.Context) error

// Wait calls f.
func (f WaiterFunc) Wait(ctx context.Context) error {
	return f(ctx)
}

// NewTokenBucket returns a token bucket allowing perSecond requests per second with the given burst.
// A non-positive perSecond disables limiting.
func NewTokenBucket(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// NewFixedInterval returns a limiter that lets one caller through per interval.
// The first Wait returns immediately; later calls are spaced at least interval apart.
// A non-positive interval disables limiting.
func NewFixedInterval(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Every(interval), 1)
}

// Unlimited never blocks. Use it when a component is built without a limiter.
var Unlimited Waiter = rate.NewLimiter(rate.Inf, 0)
