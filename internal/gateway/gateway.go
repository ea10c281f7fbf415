// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package gateway is the resilience layer protecting every call to an upstream
chapter source.

It combines three concerns behind one façade:

  - Circuit breaking: per-source failure counting with a fixed threshold;
    open breakers suppress calls locally before any network attempt.
  - Rate limiting: per-source token buckets with a bounded, fail-closed wait.
  - Error taxonomy: retryability-classified errors ([ScraperError],
    [RateLimitError], [CircuitBreakerOpenError]) consumed by the queue's
    retry policy.

The gateway also validates source identifiers and URLs so a compromised
source configuration cannot turn the poller into an open proxy.

# Design

All state lives in an explicit registry object owned by the [Gateway]
instance — no package-level globals — so tests construct isolated gateways.
*/
package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/internal/platform/validate"
)

// DefaultFailureThreshold is the number of recorded failures that opens a breaker.
const DefaultFailureThreshold = 5

// Options tunes a [Gateway] instance.
type Options struct {
	// FailureThreshold opens the breaker once reached. Zero means the default of 5.
	FailureThreshold int

	// RecoveryInterval closes an open breaker after it elapses. Zero disables
	// time-based recovery (manual reset only).
	RecoveryInterval time.Duration

	// RateRPS and RateBurst tune the per-source token bucket.
	RateRPS   float64
	RateBurst int

	// TokenWait bounds how long an Acquire call may block.
	TokenWait time.Duration

	// AllowedHosts is the exhaustive set of upstream hostnames the gateway
	// permits. Matching is exact: "fake-allowed.org" never matches "allowed.org".
	AllowedHosts []string
}

// Gateway protects upstream calls for every source in the system.
type Gateway struct {
	breakers     *BreakerRegistry
	limiters     *RateLimiterRegistry
	allowedHosts map[string]struct{}
	logger       *slog.Logger
}

// New constructs a [Gateway] with isolated breaker and limiter registries.
func New(options Options, logger *slog.Logger) *Gateway {
	threshold := options.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	allowed := make(map[string]struct{}, len(options.AllowedHosts))
	for _, host := range options.AllowedHosts {
		allowed[host] = struct{}{}
	}

	return &Gateway{
		breakers:     NewBreakerRegistry(threshold, options.RecoveryInterval),
		limiters:     NewRateLimiterRegistry(options.RateRPS, options.RateBurst, options.TokenWait),
		allowedHosts: allowed,
		logger:       logger,
	}
}

// # Call Protection

/*
AcquireToken blocks up to the configured bounded wait for permission to call
the source.

Description: This is a local throttling concern, fully independent of the
circuit breaker. A timeout fails closed and reports false — it is "not
granted", not an error to retry immediately.

Parameters:
  - ctx: context.Context bounding the wait alongside the configured timeout.
  - source: string (Source name)

Returns:
  - bool: Whether the call may proceed.
*/
func (gateway *Gateway) AcquireToken(ctx context.Context, source string) bool {
	granted := gateway.limiters.Acquire(ctx, source)
	if !granted {
		gateway.logger.Warn("rate_limit_token_denied", slog.String("source", source))
	}
	return granted
}

// IsOpen reports whether the source's breaker currently suppresses calls.
func (gateway *Gateway) IsOpen(source string) bool {
	return gateway.breakers.IsOpen(source)
}

/*
Guard checks the breaker before an upstream call is attempted.

Description: If the breaker is open, the call must be skipped entirely and a
[CircuitBreakerOpenError] is returned — no network attempt is made while open.

Parameters:
  - source: string (Source name)

Returns:
  - error: *CircuitBreakerOpenError when open, nil when the call may proceed.
*/
func (gateway *Gateway) Guard(source string) error {
	if gateway.breakers.IsOpen(source) {
		gateway.logger.Warn("circuit_open_call_skipped", slog.String("source", source))
		return NewCircuitBreakerOpenError(source)
	}
	return nil
}

// # Failure Accounting

/*
RecordFailure classifies an upstream error and updates breaker state.

Description: Only retryable failures that are not rate-limit errors count
against the breaker. A [RateLimitError] never increments the counter, since
throttling is an expected, self-correcting condition rather than an outage
signal. Non-retryable errors (definitive "not found", local breaker
suppression) carry no outage information either.

Parameters:
  - source: string (Source name)
  - err: error (Classified upstream failure)
*/
func (gateway *Gateway) RecordFailure(source string, err error) {
	if err == nil {
		return
	}
	if !IsRetryable(err) || IsRateLimit(err) {
		return
	}

	if opened := gateway.breakers.RecordFailure(source); opened {
		gateway.logger.Error("circuit_breaker_opened",
			slog.String("source", source),
			slog.Int("failures", gateway.breakers.Failures(source)),
		)
	}
}

// RecordSuccess resets the source's failure counter to zero.
func (gateway *Gateway) RecordSuccess(source string) {
	gateway.breakers.RecordSuccess(source)
}

// Reset clears breaker and limiter state for one source.
func (gateway *Gateway) Reset(source string) {
	gateway.breakers.Reset(source)
	gateway.limiters.Reset(source)
}

// ResetAll reopens every breaker to closed. Intended for operational
// recovery and test isolation.
func (gateway *Gateway) ResetAll() {
	gateway.breakers.ResetAll()
}

// # Input Validation

/*
ValidateSourceName rejects identifiers that could abuse the gateway.

Description: A source name must be non-empty, at most 500 characters, and
restricted to letters, digits, dash, and underscore.

Parameters:
  - name: string (Scraper capability identifier)

Returns:
  - error: VALIDATION_ERROR with field details, or nil.
*/
func (gateway *Gateway) ValidateSourceName(name string) error {
	validator := &validate.Validator{}
	validator.Required("source", name)
	validator.MaxLen("source", name, constants.MaxSourceNameLength)
	if name != "" {
		validator.SourceName("source", name)
	}
	return validator.Err()
}

/*
ValidateSourceURL accepts a URL only if its host exactly matches the
configured allow-list.

Description: Exact matching, not suffix matching — a spoofed domain such as
"fake-allowed.org" is rejected even though it ends with an allowed name.

Parameters:
  - rawURL: string (Candidate upstream URL)

Returns:
  - error: VALIDATION_ERROR when the URL is malformed or its host is not allowed.
*/
func (gateway *Gateway) ValidateSourceURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return apperr.ValidationError("Malformed source URL",
			apperr.FieldError{Field: "source_url", Message: "Must be a valid absolute URL"})
	}

	if _, allowed := gateway.allowedHosts[parsed.Hostname()]; !allowed {
		gateway.logger.Warn("source_url_host_rejected", slog.String("host", parsed.Hostname()))
		return apperr.ValidationError("Source URL host is not allowed",
			apperr.FieldError{Field: "source_url", Message: "Host is not on the allow-list"})
	}

	return nil
}
