// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package scraper defines the scrape capability contract and its registry.

Every supported upstream registers one [Scraper] implementation under its
source name; the poller resolves capabilities polymorphically, so adding a
source means registering a new implementation, never modifying the poller.
*/
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// # Raw Upstream Data

// RawChapter is one chapter as reported by an upstream, before ingestion.
//
// Pointer fields distinguish "absent" from "empty": a source that predates
// chapter identifiers reports SourceChapterID as nil, and the poller must
// preserve that nil end-to-end.
type RawChapter struct {
	ChapterNumber   *string
	ChapterSlug     *string
	ChapterTitle    *string
	ChapterURL      string
	SourceChapterID *string
	PublishedAt     time.Time
}

// SeriesData is the result of scraping one series on one source.
type SeriesData struct {
	SourceID string
	Title    string
	Chapters []RawChapter
}

// # Capability Contract

// Scraper retrieves the current chapter list for a series on one upstream.
//
// Implementations classify their failures into the gateway taxonomy so the
// poller and the queue retry policy can act on retryability.
type Scraper interface {

	// Name is the capability identifier matched against source config names.
	Name() string

	// ScrapeSeries fetches and parses the chapter list for the upstream's
	// own series identifier.
	ScrapeSeries(ctx context.Context, sourceID string) (*SeriesData, error)
}

// # Capability Registry

// Registry maps source names to scrape capabilities.
//
// It is an explicit instance owned by the caller — no package-level global —
// so tests can construct isolated registries.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

// NewRegistry constructs an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register adds a capability under its own name, replacing any previous one.
func (registry *Registry) Register(s Scraper) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.scrapers[s.Name()] = s
}

// Resolve returns the capability registered under name.
//
// An unknown name is a configuration defect, not an upstream outage: the
// returned error is plain and non-retryable.
func (registry *Registry) Resolve(name string) (Scraper, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	s, found := registry.scrapers[name]
	if !found {
		return nil, fmt.Errorf("scraper: no capability registered for source %q", name)
	}
	return s, nil
}

// Names returns the registered capability names, for diagnostics.
func (registry *Registry) Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.scrapers))
	for name := range registry.scrapers {
		names = append(names, name)
	}
	return names
}
