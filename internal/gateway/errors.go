// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package gateway

import (
	"errors"
	"fmt"
)

// # Error Codes

const (
	// CodeScraper is the generic machine-readable code for upstream failures.
	CodeScraper = "SCRAPER_ERROR"

	// CodeNotFound marks a definitive upstream "does not exist" answer.
	CodeNotFound = "SOURCE_NOT_FOUND"

	// CodeRateLimit marks an upstream throttling response.
	CodeRateLimit = "RATE_LIMIT"

	// CodeCircuitOpen marks a call suppressed locally by an open breaker.
	CodeCircuitOpen = "CIRCUIT_OPEN"
)

// SourceError is implemented by every error in the upstream taxonomy.
//
// The queue's retry policy depends only on this interface: retryable errors
// are re-delivered, non-retryable ones go straight to the dead-letter path.
type SourceError interface {
	error

	// SourceName identifies the upstream source that produced the failure.
	SourceName() string

	// ErrorCode is the machine-readable classification code.
	ErrorCode() string

	// IsRetryable reports whether re-delivering the triggering job can help.
	IsRetryable() bool
}

// # Scraper Errors

// ScraperError is a generic upstream failure with per-cause retryability.
//
// A "not found" response is final and non-retryable; a server error or a
// network failure is transient and retryable.
type ScraperError struct {
	Source    string
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

// NewScraperError creates a retryability-classified upstream failure.
func NewScraperError(source, message string, retryable bool) *ScraperError {
	return &ScraperError{
		Source:    source,
		Code:      CodeScraper,
		Message:   message,
		Retryable: retryable,
	}
}

// NewNotFoundError creates the non-retryable "upstream says no such series" error.
func NewNotFoundError(source, externalID string) *ScraperError {
	return &ScraperError{
		Source:    source,
		Code:      CodeNotFound,
		Message:   fmt.Sprintf("series %q not found on %s", externalID, source),
		Retryable: false,
	}
}

// Error implements the error interface.
func (e *ScraperError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *ScraperError) Unwrap() error { return e.Cause }

// SourceName implements [SourceError].
func (e *ScraperError) SourceName() string { return e.Source }

// ErrorCode implements [SourceError].
func (e *ScraperError) ErrorCode() string { return e.Code }

// IsRetryable implements [SourceError].
func (e *ScraperError) IsRetryable() bool { return e.Retryable }

// # Rate Limit Errors

// RateLimitError reports upstream throttling.
//
// Always retryable, and deliberately excluded from circuit-breaker
// accounting: throttling is an expected, self-correcting condition, not a
// source outage signal.
type RateLimitError struct {
	Source  string
	Message string
}

// NewRateLimitError creates an upstream throttling error.
func NewRateLimitError(source string) *RateLimitError {
	return &RateLimitError{
		Source:  source,
		Message: "upstream rate limit hit",
	}
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// SourceName implements [SourceError].
func (e *RateLimitError) SourceName() string { return e.Source }

// ErrorCode implements [SourceError].
func (e *RateLimitError) ErrorCode() string { return CodeRateLimit }

// IsRetryable implements [SourceError].
func (e *RateLimitError) IsRetryable() bool { return true }

// # Circuit Breaker Errors

// CircuitBreakerOpenError reports a call suppressed because the source's
// breaker is open. It is raised locally: no network attempt was made.
type CircuitBreakerOpenError struct {
	Source string
}

// NewCircuitBreakerOpenError creates the local breaker-open error.
func NewCircuitBreakerOpenError(source string) *CircuitBreakerOpenError {
	return &CircuitBreakerOpenError{Source: source}
}

// Error implements the error interface.
func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("%s: circuit breaker is open, call skipped", e.Source)
}

// SourceName implements [SourceError].
func (e *CircuitBreakerOpenError) SourceName() string { return e.Source }

// ErrorCode implements [SourceError].
func (e *CircuitBreakerOpenError) ErrorCode() string { return CodeCircuitOpen }

// IsRetryable implements [SourceError].
func (e *CircuitBreakerOpenError) IsRetryable() bool { return false }

// # Classification Helpers

// IsRetryable reports whether err carries a retryable classification.
// Errors outside the taxonomy are treated as non-retryable.
func IsRetryable(err error) bool {
	var sourceErr SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr.IsRetryable()
	}
	return false
}

// IsRateLimit reports whether err is an upstream throttling error.
func IsRateLimit(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsCircuitOpen reports whether err is a local breaker-open suppression.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitBreakerOpenError
	return errors.As(err, &openErr)
}
