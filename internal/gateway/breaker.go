// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package gateway

import (
	"sync"
	"time"
)

// # Circuit Breaker Registry

// breakerState tracks failure accounting for one upstream source.
type breakerState struct {
	failures int
	open     bool
	openedAt time.Time
}

// BreakerRegistry holds per-source circuit breaker state.
//
// # Concurrency
//
// All methods are safe for concurrent use; state for a given source is
// shared across every poll attempt against that source.
//
// # Recovery
//
// An open breaker transitions back to closed after the recovery interval
// elapses, or immediately via [BreakerRegistry.Reset] / [BreakerRegistry.ResetAll].
// There is no half-open probe state: the first failure after recovery starts
// a fresh count.
type BreakerRegistry struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	states    map[string]*breakerState
}

// NewBreakerRegistry constructs a registry with the given failure threshold
// and open-state recovery interval. A non-positive recovery disables
// time-based recovery (manual reset only).
func NewBreakerRegistry(threshold int, recovery time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		threshold: threshold,
		recovery:  recovery,
		states:    make(map[string]*breakerState),
	}
}

// IsOpen reports whether the source's breaker currently blocks calls.
// An expired open state is cleared as a side effect.
func (registry *BreakerRegistry) IsOpen(source string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	state, found := registry.states[source]
	if !found || !state.open {
		return false
	}

	// Time-based recovery back to closed.
	if registry.recovery > 0 && time.Since(state.openedAt) >= registry.recovery {
		delete(registry.states, source)
		return false
	}

	return true
}

// RecordFailure increments the source's failure counter and reports whether
// this failure tripped the breaker open.
//
// Callers must pre-classify: rate-limit and breaker-open errors never reach
// this method (see [Gateway.RecordFailure]).
func (registry *BreakerRegistry) RecordFailure(source string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	state, found := registry.states[source]
	if !found {
		state = &breakerState{}
		registry.states[source] = state
	}

	state.failures++
	if !state.open && state.failures >= registry.threshold {
		state.open = true
		state.openedAt = time.Now()
		return true
	}

	return false
}

// RecordSuccess resets the source's failure counter to zero and closes the breaker.
func (registry *BreakerRegistry) RecordSuccess(source string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.states, source)
}

// Failures returns the current consecutive failure count for a source.
func (registry *BreakerRegistry) Failures(source string) int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if state, found := registry.states[source]; found {
		return state.failures
	}
	return 0
}

// Reset clears breaker state for one source (operational recovery).
func (registry *BreakerRegistry) Reset(source string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.states, source)
}

// ResetAll clears every breaker back to closed (operational recovery / test isolation).
func (registry *BreakerRegistry) ResetAll() {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.states = make(map[string]*breakerState)
}
