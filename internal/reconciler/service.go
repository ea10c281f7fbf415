// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package reconciler merges per-source chapter observations into canonical
chapter records.

The queue delivers at least once, so reconciliation is idempotent by
construction: re-processing any ingest job converges on the same logical
chapter and the same observation row, and only a genuinely new observation
produces a feed entry and a notification.

Concurrency is handled with a key-scoped lease lock — two workers racing on
the same (series, chapter key) serialize; workers on different keys never
contend.
*/
package reconciler

import (
	"context"
	"log/slog"

	"github.com/owarin/serina/internal/chapter"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/internal/platform/lock"
	"github.com/owarin/serina/internal/queue"
	"github.com/owarin/serina/pkg/uuid"
)

// Result reports what one reconciliation pass did.
type Result struct {
	ChapterID     string
	ObservationID string

	// New is true only when the observation was created for the first time.
	// A re-observation, including the restore of a soft-deleted row, is not new.
	New bool
}

// Service reconciles ingest jobs into canonical chapter state.
type Service struct {
	chapters chapter.Repository
	locker   lock.Locker
	producer queue.Producer
	logger   *slog.Logger
}

// NewService constructs the reconciler with explicit collaborators.
func NewService(chapters chapter.Repository, locker lock.Locker, producer queue.Producer, logger *slog.Logger) *Service {
	return &Service{
		chapters: chapters,
		locker:   locker,
		producer: producer,
		logger:   logger,
	}
}

/*
Reconcile merges one ingest job into canonical chapter state.

Description: Computes the chapter key, serializes on it, upserts the logical
chapter, then resolves the observation by its natural key — present means an
idempotent metadata refresh, absent means a genuinely new observation, which
is the only case that writes a feed entry and enqueues a notification.

Parameters:
  - ctx: context.Context
  - job: *queue.IngestJob (One normalized upstream observation)

Returns:
  - *Result: What the pass did, for logging and tests.
  - error: UNPROCESSABLE for unkeyable payloads, LOCK_TIMEOUT under
    contention, storage failures otherwise.
*/
func (service *Service) Reconcile(ctx context.Context, job *queue.IngestJob) (*Result, error) {

	// 1. Compute the canonical chapter key
	key, err := chapter.NewKey(job.ChapterNumber, job.ChapterSlug)
	if err != nil {
		return nil, err
	}

	// 2. Serialize on (series, key); the release runs on every exit path
	release, err := service.locker.Acquire(ctx, job.SeriesID+":"+key.String())
	if err != nil {
		return nil, err
	}
	defer release()

	// 3. Create or reuse the logical chapter
	logical, err := service.chapters.UpsertChapter(ctx, job.SeriesID, key)
	if err != nil {
		return nil, err
	}

	// 4. Resolve the observation by natural key, soft-deleted rows included
	existing, err := service.chapters.FindObservationAny(ctx, logical.ID, job.SeriesSourceID, job.SourceChapterID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return service.refreshObservation(ctx, logical, existing, job, key)
	}
	return service.createObservation(ctx, logical, job, key)
}

// refreshObservation is the idempotent path: metadata is brought up to date,
// a soft-deleted row is restored, and nothing downstream is triggered.
func (service *Service) refreshObservation(
	ctx context.Context,
	logical *chapter.LogicalChapter,
	existing *chapter.SourceObservation,
	job *queue.IngestJob,
	key chapter.Key,
) (*Result, error) {
	existing.SourceURL = job.ChapterURL
	existing.Title = job.ChapterTitle
	existing.PublishedAt = job.PublishedAt

	if err := service.chapters.UpdateObservation(ctx, existing); err != nil {
		return nil, err
	}

	service.logger.Info("chapter_reobserved",
		slog.String("series_id", job.SeriesID),
		slog.String("chapter_key", key.String()),
		slog.String("observation_id", existing.ID),
	)

	return &Result{ChapterID: logical.ID, ObservationID: existing.ID, New: false}, nil
}

// createObservation is the first-sighting path: the observation row is
// created, the feed entry derived, and a notification enqueued.
func (service *Service) createObservation(
	ctx context.Context,
	logical *chapter.LogicalChapter,
	job *queue.IngestJob,
	key chapter.Key,
) (*Result, error) {
	observation := &chapter.SourceObservation{
		ID:              uuid.New(),
		ChapterID:       logical.ID,
		SourceID:        job.SeriesSourceID,
		SourceChapterID: job.SourceChapterID,
		SourceURL:       job.ChapterURL,
		Title:           job.ChapterTitle,
		PublishedAt:     job.PublishedAt,
	}

	if err := service.chapters.CreateObservation(ctx, observation); err != nil {
		return nil, err
	}

	service.logger.Info("chapter_observed",
		slog.String("series_id", job.SeriesID),
		slog.String("chapter_key", key.String()),
		slog.String("chapter_id", logical.ID),
		slog.String("observation_id", observation.ID),
	)

	service.publishNewChapter(ctx, logical, job, key)

	return &Result{ChapterID: logical.ID, ObservationID: observation.ID, New: true}, nil
}

// publishNewChapter writes the feed entry and requests the notification.
//
// Both are best-effort: the observation is already durable, and failing the
// job here would re-deliver it onto the idempotent path, where the feed
// entry would never be retried anyway.
func (service *Service) publishNewChapter(ctx context.Context, logical *chapter.LogicalChapter, job *queue.IngestJob, key chapter.Key) {
	title := key.String()
	if job.ChapterTitle != nil && *job.ChapterTitle != "" {
		title = *job.ChapterTitle
	}

	entry := &chapter.FeedEntry{
		ID:          uuid.New(),
		ChapterID:   logical.ID,
		SeriesID:    job.SeriesID,
		Title:       title,
		URL:         job.ChapterURL,
		PublishedAt: job.PublishedAt,
	}
	if err := service.chapters.UpsertFeedEntry(ctx, entry); err != nil {
		service.logger.Error("feed_entry_write_failed",
			slog.String("chapter_id", logical.ID), slog.String("error", err.Error()))
		return
	}

	notify := queue.NotifyJob{
		ChapterID: logical.ID,
		SeriesID:  job.SeriesID,
		Title:     title,
		URL:       job.ChapterURL,
	}
	if err := service.producer.Enqueue(ctx, constants.QueueNotify, notify); err != nil {
		service.logger.Error("notify_enqueue_failed",
			slog.String("chapter_id", logical.ID), slog.String("error", err.Error()))
	}
}
