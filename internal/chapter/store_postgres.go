// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
PostgreSQL implementation of the chapter data access layer.

It leans on Postgres upsert machinery to express the reconciliation
invariants directly in SQL:

  - Partial unique indexes keep numeric and slug identity spaces disjoint
    while letting each be unique per series.
  - 'ON CONFLICT ... DO UPDATE SET deletedat = NULL' restores soft-deleted
    rows in place instead of erroring or duplicating them.
  - All default reads filter 'deletedat IS NULL'.
*/
package chapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/database/schema"
	"github.com/owarin/serina/internal/platform/dberr"
	"github.com/owarin/serina/pkg/uuid"
)

// # PostgreSQL Repository

// chapterRepository implements the [Repository] interface using pgx.
type chapterRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed chapter store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &chapterRepository{pool: pool}
}

/*
UpsertChapter creates or reuses the logical chapter for (seriesID, key).

Description: The conflict target is the per-series partial unique index for
the key's identity space, so a concurrent or repeated upsert always lands on
the same row. Restoring a soft-deleted chapter clears its deletion mark and
preserves its identity.

Parameters:
  - ctx: context.Context
  - seriesID: string (UUID)
  - key: Key

Returns:
  - *LogicalChapter: The canonical record
  - error: Storage failures
*/
func (repository *chapterRepository) UpsertChapter(ctx context.Context, seriesID string, key Key) (*LogicalChapter, error) {

	// Column and conflict target depend on the identity space.
	keyColumn := schema.IngestChapter.ChapterNumber
	keyValue := key.Number
	if !key.IsNumeric() {
		keyColumn = schema.IngestChapter.ChapterSlug
		keyValue = key.Slug
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s)
		VALUES ($1, $2, $3)
		ON CONFLICT (%s, %s) WHERE %s IS NOT NULL
		DO UPDATE SET %s = NULL
		RETURNING %s, %s, %s, %s, %s
	`,
		schema.IngestChapter.Table,
		schema.IngestChapter.ID, schema.IngestChapter.SeriesID, keyColumn,
		schema.IngestChapter.SeriesID, keyColumn, keyColumn,
		schema.IngestChapter.DeletedAt,
		schema.IngestChapter.ID, schema.IngestChapter.SeriesID,
		schema.IngestChapter.ChapterNumber, schema.IngestChapter.ChapterSlug,
		schema.IngestChapter.CreatedAt,
	)

	var logical LogicalChapter
	err := repository.pool.QueryRow(ctx, query, uuid.New(), seriesID, keyValue).Scan(
		&logical.ID,
		&logical.SeriesID,
		&logical.ChapterNumber,
		&logical.ChapterSlug,
		&logical.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "chapter")
	}

	return &logical, nil
}

/*
FindChapter returns the live logical chapter for (seriesID, key).
*/
func (repository *chapterRepository) FindChapter(ctx context.Context, seriesID string, key Key) (*LogicalChapter, error) {

	keyColumn := schema.IngestChapter.ChapterNumber
	keyValue := key.Number
	if !key.IsNumeric() {
		keyColumn = schema.IngestChapter.ChapterSlug
		keyValue = key.Slug
	}

	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2 AND %s IS NULL
	`,
		schema.IngestChapter.ID, schema.IngestChapter.SeriesID,
		schema.IngestChapter.ChapterNumber, schema.IngestChapter.ChapterSlug,
		schema.IngestChapter.CreatedAt,
		schema.IngestChapter.Table,
		schema.IngestChapter.SeriesID, keyColumn, schema.IngestChapter.DeletedAt,
	)

	var logical LogicalChapter
	err := repository.pool.QueryRow(ctx, query, seriesID, keyValue).Scan(
		&logical.ID,
		&logical.SeriesID,
		&logical.ChapterNumber,
		&logical.ChapterSlug,
		&logical.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Chapter")
		}
		return nil, fmt.Errorf("postgres: failed to find chapter: %w", err)
	}

	return &logical, nil
}

/*
ListChapters returns all live chapters of a series, oldest first.
*/
func (repository *chapterRepository) ListChapters(ctx context.Context, seriesID string) ([]*LogicalChapter, error) {

	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
		ORDER BY %s ASC
	`,
		schema.IngestChapter.ID, schema.IngestChapter.SeriesID,
		schema.IngestChapter.ChapterNumber, schema.IngestChapter.ChapterSlug,
		schema.IngestChapter.CreatedAt,
		schema.IngestChapter.Table,
		schema.IngestChapter.SeriesID, schema.IngestChapter.DeletedAt,
		schema.IngestChapter.CreatedAt,
	)

	rows, err := repository.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*LogicalChapter
	for rows.Next() {
		var logical LogicalChapter
		err := rows.Scan(
			&logical.ID,
			&logical.SeriesID,
			&logical.ChapterNumber,
			&logical.ChapterSlug,
			&logical.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan chapter: %w", err)
		}
		chapters = append(chapters, &logical)
	}

	return chapters, rows.Err()
}

/*
CountChapters returns the number of live chapters of a series.
*/
func (repository *chapterRepository) CountChapters(ctx context.Context, seriesID string) (int, error) {

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s IS NULL`,
		schema.IngestChapter.Table, schema.IngestChapter.SeriesID, schema.IngestChapter.DeletedAt)

	var count int
	if err := repository.pool.QueryRow(ctx, query, seriesID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: failed to count chapters: %w", err)
	}
	return count, nil
}

/*
SoftDeleteChapter hides a chapter record without physical removal.
*/
func (repository *chapterRepository) SoftDeleteChapter(ctx context.Context, id string) error {

	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.IngestChapter.Table,
		schema.IngestChapter.DeletedAt, schema.IngestChapter.ID, schema.IngestChapter.DeletedAt)

	result, err := repository.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete chapter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound("Chapter")
	}
	return nil
}

// # Observation Management

/*
FindObservationAny resolves an observation by its natural key, including
soft-deleted rows.

Description: This is the maintenance-grade raw path — the reconciler needs
to see soft-deleted rows so an idempotent update can restore them instead of
colliding with the unique constraint on insert.
*/
func (repository *chapterRepository) FindObservationAny(ctx context.Context, chapterID, sourceID string, sourceChapterID *string) (*SourceObservation, error) {

	// Natural key branch: source-native identifier when present, else source config.
	condition := fmt.Sprintf("%s = $2", schema.IngestChapterSource.SourceID)
	argument := any(sourceID)
	if sourceChapterID != nil {
		condition = fmt.Sprintf("%s = $2", schema.IngestChapterSource.SourceChapterID)
		argument = *sourceChapterID
	}

	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s
	`,
		schema.IngestChapterSource.ID, schema.IngestChapterSource.ChapterID,
		schema.IngestChapterSource.SourceID, schema.IngestChapterSource.SourceChapterID,
		schema.IngestChapterSource.SourceURL, schema.IngestChapterSource.Title,
		schema.IngestChapterSource.PublishedAt, schema.IngestChapterSource.CreatedAt,
		schema.IngestChapterSource.UpdatedAt, schema.IngestChapterSource.DeletedAt,
		schema.IngestChapterSource.Table,
		schema.IngestChapterSource.ChapterID, condition,
	)

	var observation SourceObservation
	err := repository.pool.QueryRow(ctx, query, chapterID, argument).Scan(
		&observation.ID,
		&observation.ChapterID,
		&observation.SourceID,
		&observation.SourceChapterID,
		&observation.SourceURL,
		&observation.Title,
		&observation.PublishedAt,
		&observation.CreatedAt,
		&observation.UpdatedAt,
		&observation.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to find observation: %w", err)
	}

	return &observation, nil
}

/*
CreateObservation persists a brand-new observation row.
*/
func (repository *chapterRepository) CreateObservation(ctx context.Context, observation *SourceObservation) error {

	if observation.ID == "" {
		observation.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		schema.IngestChapterSource.Table,
		schema.IngestChapterSource.ID, schema.IngestChapterSource.ChapterID,
		schema.IngestChapterSource.SourceID, schema.IngestChapterSource.SourceChapterID,
		schema.IngestChapterSource.SourceURL, schema.IngestChapterSource.Title,
		schema.IngestChapterSource.PublishedAt,
	)

	_, err := repository.pool.Exec(ctx, query,
		observation.ID,
		observation.ChapterID,
		observation.SourceID,
		observation.SourceChapterID,
		observation.SourceURL,
		observation.Title,
		observation.PublishedAt,
	)
	if err != nil {
		// A unique violation here means two reconcilers raced outside the
		// lock; it surfaces as CONFLICT rather than a bare internal error.
		return dberr.Wrap(err, "observation")
	}
	return nil
}

/*
UpdateObservation idempotently refreshes mutable metadata and clears any
soft-deletion mark, preserving row identity.
*/
func (repository *chapterRepository) UpdateObservation(ctx context.Context, observation *SourceObservation) error {

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $1, %s = $2, %s = $3, %s = NOW(), %s = NULL
		WHERE %s = $4
	`,
		schema.IngestChapterSource.Table,
		schema.IngestChapterSource.Title, schema.IngestChapterSource.SourceURL,
		schema.IngestChapterSource.PublishedAt, schema.IngestChapterSource.UpdatedAt,
		schema.IngestChapterSource.DeletedAt,
		schema.IngestChapterSource.ID,
	)

	result, err := repository.pool.Exec(ctx, query,
		observation.Title,
		observation.SourceURL,
		observation.PublishedAt,
		observation.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update observation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound("Observation")
	}
	return nil
}

/*
CountObservations returns the number of live observations of a chapter.
*/
func (repository *chapterRepository) CountObservations(ctx context.Context, chapterID string) (int, error) {

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s IS NULL`,
		schema.IngestChapterSource.Table,
		schema.IngestChapterSource.ChapterID, schema.IngestChapterSource.DeletedAt)

	var count int
	if err := repository.pool.QueryRow(ctx, query, chapterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: failed to count observations: %w", err)
	}
	return count, nil
}

// # Feed Entries

/*
UpsertFeedEntry creates or refreshes the single feed entry of a chapter.

Description: Conflicts on the chapter's unique index restore a soft-deleted
entry with the fresh payload rather than duplicating it.
*/
func (repository *chapterRepository) UpsertFeedEntry(ctx context.Context, entry *FeedEntry) error {

	if entry.ID == "" {
		entry.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (%s)
		DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
			%s = NOW(), %s = NULL
	`,
		schema.IngestFeedEntry.Table,
		schema.IngestFeedEntry.ID, schema.IngestFeedEntry.ChapterID,
		schema.IngestFeedEntry.SeriesID, schema.IngestFeedEntry.Title,
		schema.IngestFeedEntry.URL, schema.IngestFeedEntry.PublishedAt,
		schema.IngestFeedEntry.ChapterID,
		schema.IngestFeedEntry.Title, schema.IngestFeedEntry.Title,
		schema.IngestFeedEntry.URL, schema.IngestFeedEntry.URL,
		schema.IngestFeedEntry.PublishedAt, schema.IngestFeedEntry.PublishedAt,
		schema.IngestFeedEntry.UpdatedAt, schema.IngestFeedEntry.DeletedAt,
	)

	_, err := repository.pool.Exec(ctx, query,
		entry.ID,
		entry.ChapterID,
		entry.SeriesID,
		entry.Title,
		entry.URL,
		entry.PublishedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "feed entry")
	}
	return nil
}
