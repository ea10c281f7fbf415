// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package gateway_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owarin/serina/internal/gateway"
)

func newTestGateway(t *testing.T, options gateway.Options) *gateway.Gateway {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	if options.RateRPS == 0 {
		options.RateRPS = 100
		options.RateBurst = 100
		options.TokenWait = time.Second
	}
	return gateway.New(options, logger)
}

/*
TestBreaker_OpensAtThreshold verifies that five recorded failures open a
source's breaker while four do not.
*/
func TestBreaker_OpensAtThreshold(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})
	retryable := gateway.NewScraperError("kyoshiro", "upstream 500", true)

	// 1. Four failures: still closed
	for i := 0; i < 4; i++ {
		g.RecordFailure("kyoshiro", retryable)
	}
	assert.False(t, g.IsOpen("kyoshiro"))
	assert.NoError(t, g.Guard("kyoshiro"))

	// 2. Fifth failure trips it
	g.RecordFailure("kyoshiro", retryable)
	assert.True(t, g.IsOpen("kyoshiro"))

	// 3. While open, Guard raises CIRCUIT_OPEN without any upstream call
	err := g.Guard("kyoshiro")
	require.Error(t, err)
	assert.True(t, gateway.IsCircuitOpen(err))
	assert.False(t, gateway.IsRetryable(err))

	var openErr *gateway.CircuitBreakerOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, gateway.CodeCircuitOpen, openErr.ErrorCode())
	assert.Equal(t, "kyoshiro", openErr.SourceName())
}

/*
TestBreaker_SuccessResetsCounter verifies that a recorded success resets the
failure counter to zero.
*/
func TestBreaker_SuccessResetsCounter(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})
	retryable := gateway.NewScraperError("kyoshiro", "upstream 500", true)

	for i := 0; i < 4; i++ {
		g.RecordFailure("kyoshiro", retryable)
	}
	g.RecordSuccess("kyoshiro")

	// 4 more failures after the reset must not open the breaker.
	for i := 0; i < 4; i++ {
		g.RecordFailure("kyoshiro", retryable)
	}
	assert.False(t, g.IsOpen("kyoshiro"))
}

/*
TestBreaker_RateLimitErrorNeverCounts verifies that upstream throttling is
excluded from breaker accounting.
*/
func TestBreaker_RateLimitErrorNeverCounts(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})

	for i := 0; i < 20; i++ {
		g.RecordFailure("kyoshiro", gateway.NewRateLimitError("kyoshiro"))
	}
	assert.False(t, g.IsOpen("kyoshiro"))
}

/*
TestBreaker_NonRetryableErrorNeverCounts verifies that definitive failures
(e.g. upstream "not found") do not count as outage signals.
*/
func TestBreaker_NonRetryableErrorNeverCounts(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})

	for i := 0; i < 20; i++ {
		g.RecordFailure("kyoshiro", gateway.NewNotFoundError("kyoshiro", "series-1"))
	}
	assert.False(t, g.IsOpen("kyoshiro"))
}

/*
TestBreaker_ResetAll verifies that ResetAll returns every breaker to closed.
*/
func TestBreaker_ResetAll(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})
	retryable := func(source string) error { return gateway.NewScraperError(source, "boom", true) }

	for i := 0; i < 5; i++ {
		g.RecordFailure("source-a", retryable("source-a"))
		g.RecordFailure("source-b", retryable("source-b"))
	}
	require.True(t, g.IsOpen("source-a"))
	require.True(t, g.IsOpen("source-b"))

	g.ResetAll()
	assert.False(t, g.IsOpen("source-a"))
	assert.False(t, g.IsOpen("source-b"))
}

/*
TestBreaker_TimeBasedRecovery verifies that an open breaker closes again
after the recovery interval elapses.
*/
func TestBreaker_TimeBasedRecovery(t *testing.T) {
	g := newTestGateway(t, gateway.Options{RecoveryInterval: 20 * time.Millisecond})
	retryable := gateway.NewScraperError("kyoshiro", "upstream 500", true)

	for i := 0; i < 5; i++ {
		g.RecordFailure("kyoshiro", retryable)
	}
	require.True(t, g.IsOpen("kyoshiro"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, g.IsOpen("kyoshiro"))
}

/*
TestRateLimiter_FailsClosedOnTimeout verifies the bounded token wait: once
the burst is exhausted, acquisition times out and reports "not granted".
*/
func TestRateLimiter_FailsClosedOnTimeout(t *testing.T) {
	g := newTestGateway(t, gateway.Options{
		RateRPS:   0.1,
		RateBurst: 1,
		TokenWait: 10 * time.Millisecond,
	})

	ctx := context.Background()

	// First token is granted from the burst.
	assert.True(t, g.AcquireToken(ctx, "kyoshiro"))

	// Bucket is empty and refills far slower than the bounded wait.
	assert.False(t, g.AcquireToken(ctx, "kyoshiro"))

	// An independent source has its own bucket.
	assert.True(t, g.AcquireToken(ctx, "other"))
}

/*
TestValidateSourceName covers the anti-abuse identifier rules.
*/
func TestValidateSourceName(t *testing.T) {
	g := newTestGateway(t, gateway.Options{})

	assert.NoError(t, g.ValidateSourceName("kyoshiro"))
	assert.NoError(t, g.ValidateSourceName("source_2-beta"))

	assert.Error(t, g.ValidateSourceName(""))
	assert.Error(t, g.ValidateSourceName("has space"))
	assert.Error(t, g.ValidateSourceName("path/../traversal"))

	tooLong := make([]byte, 501)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	assert.Error(t, g.ValidateSourceName(string(tooLong)))
}

/*
TestValidateSourceURL verifies exact host matching against the allow-list:
spoofed domains that merely contain an allowed name are rejected.
*/
func TestValidateSourceURL(t *testing.T) {
	g := newTestGateway(t, gateway.Options{
		AllowedHosts: []string{"kyoshiro.example.org", "mirror.example.net"},
	})

	assert.NoError(t, g.ValidateSourceURL("https://kyoshiro.example.org/series/123"))
	assert.NoError(t, g.ValidateSourceURL("https://mirror.example.net/"))

	// Suffix and prefix spoofing
	assert.Error(t, g.ValidateSourceURL("https://fake-kyoshiro.example.org/series/123"))
	assert.Error(t, g.ValidateSourceURL("https://kyoshiro.example.org.evil.io/series/123"))

	// Garbage input
	assert.Error(t, g.ValidateSourceURL("not a url"))
	assert.Error(t, g.ValidateSourceURL(""))
}
