// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package source owns the per-(series, source) polling configurations.

A [Config] names the scraping capability to use, the upstream's own
identifier for the series, and the trust score that breaks metadata ties
between disagreeing sources. Configs are never deleted, only deactivated:
the poller flips IsActive off after too many consecutive failures so a dead
mirror stops consuming rate-limit tokens.
*/
package source

import "time"

// Config is one (series, source) pairing.
type Config struct {
	ID       string `json:"id"`
	SeriesID string `json:"series_id"`

	// Name identifies which scraping capability handles this config.
	Name string `json:"name"`

	// SourceIDExt is the upstream's own identifier for the series.
	SourceIDExt string `json:"source_id_ext"`

	// SourceURL is the canonical URL on the upstream, validated against the
	// gateway allow-list before every poll.
	SourceURL string `json:"source_url"`

	// TrustScore ranks sources on conflicting metadata; higher is preferred.
	TrustScore float64 `json:"trust_score"`

	// ConsecutiveFails counts poll failures since the last success.
	ConsecutiveFails int `json:"consecutive_fails"`

	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}
