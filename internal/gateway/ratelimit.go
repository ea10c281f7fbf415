// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package gateway

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// # Per-Source Rate Limiting

// RateLimiterRegistry hands out token-bucket limiters keyed by source name.
//
// The bucket is local to this process and independent of the circuit
// breaker: failing to obtain a token within the bounded wait is "not
// granted", never an upstream error.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	maxWait  time.Duration
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry constructs a registry with shared per-source tuning.
func NewRateLimiterRegistry(rps float64, burst int, maxWait time.Duration) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		rps:      rate.Limit(rps),
		burst:    burst,
		maxWait:  maxWait,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Acquire blocks up to the bounded wait for permission to call the source.
// It fails closed: a timeout or cancelled context reports false.
func (registry *RateLimiterRegistry) Acquire(ctx context.Context, source string) bool {
	limiter := registry.limiterFor(source)

	waitCtx, cancel := context.WithTimeout(ctx, registry.maxWait)
	defer cancel()

	return limiter.Wait(waitCtx) == nil
}

// Reset discards the source's bucket so the next acquisition starts fresh.
func (registry *RateLimiterRegistry) Reset(source string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.limiters, source)
}

// limiterFor returns the limiter for a source, creating it on first use.
func (registry *RateLimiterRegistry) limiterFor(source string) *rate.Limiter {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	limiter, found := registry.limiters[source]
	if !found {
		limiter = rate.NewLimiter(registry.rps, registry.burst)
		registry.limiters[source] = limiter
	}
	return limiter
}
