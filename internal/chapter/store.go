// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package chapter

import "context"

// # Canonical Chapter Data Access

// Repository defines the data access contract for logical chapters, their
// source observations, and the derived feed entries.
//
// All read methods exclude soft-deleted rows unless the method name says
// otherwise; upserts restore a matching soft-deleted row instead of failing
// on the unique constraint or duplicating it.
type Repository interface {

	/*
		UpsertChapter creates or reuses the logical chapter for (seriesID, key).

		Description: Never creates a second chapter for the same key. A
		soft-deleted chapter matching the key is restored in place, preserving
		its identity. Callers must hold the key-scoped reconciliation lock.

		Parameters:
		  - ctx: context.Context
		  - seriesID: string (UUID)
		  - key: Key (Canonical chapter identity)

		Returns:
		  - *LogicalChapter: The canonical record, freshly created or reused
		  - error: Storage failures
	*/
	UpsertChapter(ctx context.Context, seriesID string, key Key) (*LogicalChapter, error)

	/*
		FindChapter returns the logical chapter for (seriesID, key), excluding
		soft-deleted rows.

		Returns:
		  - *LogicalChapter: Hydrated record
		  - error: NOT_FOUND if absent or soft-deleted
	*/
	FindChapter(ctx context.Context, seriesID string, key Key) (*LogicalChapter, error)

	/*
		ListChapters returns all live chapters of a series.

		Returns:
		  - []*LogicalChapter: Numeric chapters and slugs alike
		  - error: Storage failures
	*/
	ListChapters(ctx context.Context, seriesID string) ([]*LogicalChapter, error)

	/*
		CountChapters returns the number of live chapters of a series.
	*/
	CountChapters(ctx context.Context, seriesID string) (int, error)

	/*
		SoftDeleteChapter hides a chapter without physical row removal.

		Returns:
		  - error: NOT_FOUND if already absent or deleted
	*/
	SoftDeleteChapter(ctx context.Context, id string) error

	/*
		FindObservationAny resolves an observation by its natural key,
		including soft-deleted rows.

		Description: The natural key is (chapterID, sourceChapterID) when the
		source-native identifier is non-null, else (chapterID, sourceID). This
		is the raw access path the reconciler uses to decide between create
		and idempotent update.

		Parameters:
		  - ctx: context.Context
		  - chapterID: string (UUID)
		  - sourceID: string (UUID)
		  - sourceChapterID: *string (Source-native identifier, possibly nil)

		Returns:
		  - *SourceObservation: The matching row, or nil when none exists
		  - error: Storage failures
	*/
	FindObservationAny(ctx context.Context, chapterID, sourceID string, sourceChapterID *string) (*SourceObservation, error)

	/*
		CreateObservation persists a brand-new observation.
	*/
	CreateObservation(ctx context.Context, observation *SourceObservation) error

	/*
		UpdateObservation idempotently refreshes mutable metadata (title, URL,
		published timestamp) and clears any soft-deletion mark.

		Returns:
		  - error: NOT_FOUND if the row vanished
	*/
	UpdateObservation(ctx context.Context, observation *SourceObservation) error

	/*
		CountObservations returns the number of live observations of a chapter.
	*/
	CountObservations(ctx context.Context, chapterID string) (int, error)

	/*
		UpsertFeedEntry creates or refreshes the feed entry for a chapter.

		Description: One feed entry per chapter; a soft-deleted entry is
		restored with the new payload rather than duplicated.
	*/
	UpsertFeedEntry(ctx context.Context, entry *FeedEntry) error
}
