// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, queue names, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the operational HTTP server.
  - Queues: Canonical queue names for the ingestion pipeline.
  - Redis Prefixes: Key taxonomy for locks and queues.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "serina-worker"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight work to drain during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Queues

const (
	// QueueIngest holds one job per (series, source, chapter) observation.
	QueueIngest = "ingest"

	// QueueNotify holds downstream notification jobs; delivery is an
	// external collaborator's concern.
	QueueNotify = "notify"
)

// # Upstream Limits

const (
	// MaxSourceNameLength bounds scraper capability identifiers.
	MaxSourceNameLength = 500

	// ScrapeRequestTimeout caps a single upstream HTTP call.
	ScrapeRequestTimeout = 30 * time.Second

	// MaxSourceChapterIDLength bounds source-native chapter identifiers.
	// Some upstreams use long content hashes, so this is generous.
	MaxSourceChapterIDLength = 4096
)

// # Redis Prefixes (Key Taxonomy)

const (
	RedisPrefixQueue = "serina:queue:"
	RedisPrefixDead  = "serina:dead:"
	RedisPrefixLock  = "serina:lock:chapter:"
)

// # Database Schemas

const (
	SchemaIngest = "ingest"
)
