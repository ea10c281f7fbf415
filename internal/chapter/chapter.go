// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package chapter owns the canonical chapter records produced by reconciliation.

A [LogicalChapter] is the single deduplicated record for one chapter of a
series; each upstream source's report of it is a [SourceObservation]; a
[FeedEntry] is the derived record that drives downstream notifications.

Identity rules live in [Key]: numeric chapter keys are exact decimal strings
(never floats), slug keys identify specials/extras, and the two occupy
disjoint identity spaces within a series.
*/
package chapter

import "time"

// # Domain Entities

// LogicalChapter is the canonical, deduplicated chapter record for a series.
//
// Exactly one of ChapterNumber or ChapterSlug is set.
type LogicalChapter struct {
	ID            string     `json:"id"`
	SeriesID      string     `json:"series_id"`
	ChapterNumber *string    `json:"chapter_number,omitempty"`
	ChapterSlug   *string    `json:"chapter_slug,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"-"`
}

// SourceObservation is one source's report of a logical chapter.
//
// SourceChapterID is the source-native identifier: nullable (older sources
// predate it) and unbounded in practice — some upstreams use multi-kilobyte
// hashes. Natural key: (ChapterID, SourceChapterID) when the identifier is
// non-null, else (ChapterID, SourceID).
type SourceObservation struct {
	ID              string     `json:"id"`
	ChapterID       string     `json:"chapter_id"`
	SourceID        string     `json:"source_id"`
	SourceChapterID *string    `json:"source_chapter_id"`
	SourceURL       string     `json:"source_url"`
	Title           *string    `json:"title,omitempty"`
	PublishedAt     time.Time  `json:"published_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// FeedEntry is the derived, deduplicated record driving notifications.
// It is written only when an observation is newly created, never on
// re-observation.
type FeedEntry struct {
	ID          string     `json:"id"`
	ChapterID   string     `json:"chapter_id"`
	SeriesID    string     `json:"series_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}
