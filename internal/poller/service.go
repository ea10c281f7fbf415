// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package poller drives the periodic scrape cycle.

Each cycle walks every active source configuration, calls the upstream
through the resilience gateway, normalizes whatever came back, and enqueues
one ingestion job per observed chapter. The poller never touches chapter
state itself: reconciliation happens downstream, behind the queue.
*/
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/internal/queue"
	"github.com/owarin/serina/internal/scraper"
	"github.com/owarin/serina/internal/source"
)

// Options tunes a polling [Service].
type Options struct {
	// Interval between full polling cycles when running via [Service.Run].
	Interval time.Duration

	// DisableThreshold deactivates a source once its consecutive failure
	// count reaches it. Zero disables automatic deactivation.
	DisableThreshold int
}

// Service owns the poll cycle for all configured sources.
type Service struct {
	sources  source.Repository
	scrapers *scraper.Registry
	gateway  *gateway.Gateway
	producer queue.Producer
	options  Options
	logger   *slog.Logger
}

// NewService constructs the poller with explicit collaborators.
func NewService(
	sources source.Repository,
	scrapers *scraper.Registry,
	gw *gateway.Gateway,
	producer queue.Producer,
	options Options,
	logger *slog.Logger,
) *Service {
	return &Service{
		sources:  sources,
		scrapers: scrapers,
		gateway:  gw,
		producer: producer,
		options:  options,
		logger:   logger,
	}
}

// Run executes polling cycles until ctx is cancelled.
func (service *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(service.options.Interval)
	defer ticker.Stop()

	service.logger.Info("poller_started",
		slog.Duration("interval", service.options.Interval))

	for {
		service.PollAll(ctx)

		select {
		case <-ctx.Done():
			service.logger.Info("poller_stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollAll runs one full cycle over every active source.
//
// A failing source never aborts the cycle: its failure is accounted and the
// walk continues with the next source.
func (service *Service) PollAll(ctx context.Context) {
	configs, err := service.sources.ListActive(ctx)
	if err != nil {
		service.logger.Error("poll_cycle_list_failed", slog.String("error", err.Error()))
		return
	}

	for _, config := range configs {
		if ctx.Err() != nil {
			return
		}

		if err := service.PollSource(ctx, config); err != nil {
			service.logger.Warn("poll_source_failed",
				slog.String("source", config.Name),
				slog.String("series_id", config.SeriesID),
				slog.String("error", err.Error()),
			)
		}
	}
}

/*
PollByID polls one source by its configuration reference.

Description: An unknown configuration and a deactivated one are both
definitive answers, not transient conditions — the returned error is
non-retryable so a scheduled job for a dead source goes straight to the
dead-letter path.

Parameters:
  - ctx: context.Context
  - id: string (Source configuration UUID)

Returns:
  - error: UNPROCESSABLE for a deactivated source, NOT_FOUND for an unknown
    one, or whatever the poll itself produced.
*/
func (service *Service) PollByID(ctx context.Context, id string) error {
	config, err := service.sources.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !config.IsActive {
		return apperr.Unprocessable("Source " + id + " is deactivated")
	}
	return service.PollSource(ctx, config)
}

/*
PollSource scrapes one configured source and enqueues its chapters.

Description: The call runs the full resilience sequence — URL validation,
breaker guard, bounded token wait, capability resolution — before any
network attempt, then records the outcome on both the gateway and the
source's failure counter. Reaching the disable threshold deactivates the
configuration.

Parameters:
  - ctx: context.Context for the scrape and all persistence.
  - config: *source.Config (The configuration to poll)

Returns:
  - error: The classified failure, nil when the scrape was ingested.
*/
func (service *Service) PollSource(ctx context.Context, config *source.Config) error {

	// 1. Validate the configured endpoint before anything touches the network
	if err := service.gateway.ValidateSourceName(config.Name); err != nil {
		return err
	}
	if err := service.gateway.ValidateSourceURL(config.SourceURL); err != nil {
		return err
	}

	// 2. Check the breaker, then wait for a rate-limit token
	if err := service.gateway.Guard(config.Name); err != nil {
		return err
	}
	if !service.gateway.AcquireToken(ctx, config.Name) {
		return gateway.NewRateLimitError(config.Name)
	}

	// 3. Resolve the scrape capability
	capability, err := service.scrapers.Resolve(config.Name)
	if err != nil {
		return err
	}

	// 4. Scrape and account the outcome
	data, err := capability.ScrapeSeries(ctx, config.SourceIDExt)
	if err != nil {
		service.gateway.RecordFailure(config.Name, err)
		service.recordSourceFailure(ctx, config)
		return err
	}

	service.gateway.RecordSuccess(config.Name)
	if err := service.sources.RecordSuccess(ctx, config.ID); err != nil {
		service.logger.Warn("source_success_record_failed",
			slog.String("source_id", config.ID), slog.String("error", err.Error()))
	}

	// 5. Normalize and enqueue
	return service.enqueueChapters(ctx, config, data)
}

// enqueueChapters converts raw upstream chapters into ingestion jobs.
func (service *Service) enqueueChapters(ctx context.Context, config *source.Config, data *scraper.SeriesData) error {
	if len(data.Chapters) == 0 {
		service.logger.Info("poll_source_empty",
			slog.String("source", config.Name), slog.String("series_id", config.SeriesID))
		return nil
	}

	jobs := make([]any, 0, len(data.Chapters))
	for _, raw := range data.Chapters {
		jobs = append(jobs, queue.IngestJob{
			SeriesID:        config.SeriesID,
			SeriesSourceID:  config.ID,
			ChapterNumber:   raw.ChapterNumber,
			ChapterSlug:     raw.ChapterSlug,
			ChapterTitle:    raw.ChapterTitle,
			ChapterURL:      raw.ChapterURL,
			SourceChapterID: raw.SourceChapterID,
			PublishedAt:     raw.PublishedAt,
		})
	}

	if err := service.producer.EnqueueBulk(ctx, constants.QueueIngest, jobs); err != nil {
		return fmt.Errorf("enqueue %d chapters for source %s: %w", len(jobs), config.ID, err)
	}

	service.logger.Info("poll_source_enqueued",
		slog.String("source", config.Name),
		slog.String("series_id", config.SeriesID),
		slog.Int("chapters", len(jobs)),
	)
	return nil
}

// recordSourceFailure bumps the persistent counter and deactivates the
// source when it crosses the disable threshold.
func (service *Service) recordSourceFailure(ctx context.Context, config *source.Config) {
	count, err := service.sources.RecordFailure(ctx, config.ID)
	if err != nil {
		service.logger.Warn("source_failure_record_failed",
			slog.String("source_id", config.ID), slog.String("error", err.Error()))
		return
	}

	if service.options.DisableThreshold > 0 && count >= service.options.DisableThreshold {
		if err := service.sources.Deactivate(ctx, config.ID); err != nil {
			service.logger.Error("source_deactivate_failed",
				slog.String("source_id", config.ID), slog.String("error", err.Error()))
			return
		}
		service.logger.Error("source_deactivated",
			slog.String("source", config.Name),
			slog.String("source_id", config.ID),
			slog.Int("consecutive_fails", count),
		)
	}
}
