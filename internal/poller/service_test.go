// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package poller_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/poller"
	"github.com/owarin/serina/internal/queue"
	"github.com/owarin/serina/internal/scraper"
	"github.com/owarin/serina/internal/source"
)

// # Fakes

type fakeSourceRepo struct {
	configs     []*source.Config
	fails       map[string]int
	deactivated map[string]bool
	successIDs  []string
}

func newFakeSourceRepo(configs ...*source.Config) *fakeSourceRepo {
	return &fakeSourceRepo{
		configs:     configs,
		fails:       make(map[string]int),
		deactivated: make(map[string]bool),
	}
}

func (r *fakeSourceRepo) FindByID(_ context.Context, id string) (*source.Config, error) {
	for _, c := range r.configs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperr.NotFound("Source")
}

func (r *fakeSourceRepo) ListActive(context.Context) ([]*source.Config, error) {
	active := make([]*source.Config, 0, len(r.configs))
	for _, c := range r.configs {
		if !r.deactivated[c.ID] {
			active = append(active, c)
		}
	}
	return active, nil
}

func (r *fakeSourceRepo) Upsert(context.Context, *source.Config) error { return nil }

func (r *fakeSourceRepo) RecordSuccess(_ context.Context, id string) error {
	r.fails[id] = 0
	r.successIDs = append(r.successIDs, id)
	return nil
}

func (r *fakeSourceRepo) RecordFailure(_ context.Context, id string) (int, error) {
	r.fails[id]++
	return r.fails[id], nil
}

func (r *fakeSourceRepo) Deactivate(_ context.Context, id string) error {
	r.deactivated[id] = true
	return nil
}

func (r *fakeSourceRepo) SoftDelete(context.Context, string) error { return nil }

type fakeProducer struct {
	enqueued map[string][]any
	failNext bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{enqueued: make(map[string][]any)}
}

func (p *fakeProducer) Enqueue(_ context.Context, name string, payload any) error {
	p.enqueued[name] = append(p.enqueued[name], payload)
	return nil
}

func (p *fakeProducer) EnqueueBulk(_ context.Context, name string, payloads []any) error {
	if p.failNext {
		return assert.AnError
	}
	p.enqueued[name] = append(p.enqueued[name], payloads...)
	return nil
}

func (p *fakeProducer) PendingCount(_ context.Context, name string) (int64, error) {
	return int64(len(p.enqueued[name])), nil
}

func (p *fakeProducer) DeadCount(context.Context, string) (int64, error) { return 0, nil }

type fakeScraper struct {
	name string
	data *scraper.SeriesData
	err  error
}

func (s *fakeScraper) Name() string { return s.name }

func (s *fakeScraper) ScrapeSeries(context.Context, string) (*scraper.SeriesData, error) {
	return s.data, s.err
}

// # Harness

func strPtr(v string) *string { return &v }

func testConfig() *source.Config {
	return &source.Config{
		ID:          "src-1",
		SeriesID:    "series-1",
		Name:        "kyoshiro",
		SourceIDExt: "archivist",
		SourceURL:   "https://allowed.org/series/archivist",
		IsActive:    true,
	}
}

func newHarness(t *testing.T, scrapers ...scraper.Scraper) (*poller.Service, *fakeSourceRepo, *fakeProducer, *gateway.Gateway) {
	t.Helper()

	registry := scraper.NewRegistry()
	for _, s := range scrapers {
		registry.Register(s)
	}

	gw := gateway.New(gateway.Options{
		FailureThreshold: 5,
		RateRPS:          1000,
		RateBurst:        1000,
		TokenWait:        time.Second,
		AllowedHosts:     []string{"allowed.org"},
	}, slog.New(slog.DiscardHandler))

	repo := newFakeSourceRepo(testConfig())
	producer := newFakeProducer()

	service := poller.NewService(repo, registry, gw, producer,
		poller.Options{Interval: time.Hour, DisableThreshold: 3},
		slog.New(slog.DiscardHandler))

	return service, repo, producer, gw
}

// # Tests

func TestPollSourceEnqueuesNormalizedChapters(t *testing.T) {
	data := &scraper.SeriesData{
		SourceID: "archivist",
		Title:    "Blade of the Archivist",
		Chapters: []scraper.RawChapter{
			{
				ChapterNumber:   strPtr("1105"),
				ChapterTitle:    strPtr("The Gate"),
				ChapterURL:      "https://allowed.org/chapter/a1",
				SourceChapterID: strPtr("sha512:aaa"),
				PublishedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				ChapterSlug: strPtr("extra-1"),
				ChapterURL:  "https://allowed.org/chapter/a3",
				// no SourceChapterID: must stay nil through the queue
			},
		},
	}

	service, repo, producer, _ := newHarness(t, &fakeScraper{name: "kyoshiro", data: data})

	err := service.PollSource(context.Background(), testConfig())
	require.NoError(t, err)

	jobs := producer.enqueued["ingest"]
	require.Len(t, jobs, 2)

	first, ok := jobs[0].(queue.IngestJob)
	require.True(t, ok)
	assert.Equal(t, "series-1", first.SeriesID)
	assert.Equal(t, "src-1", first.SeriesSourceID)
	require.NotNil(t, first.ChapterNumber)
	assert.Equal(t, "1105", *first.ChapterNumber)
	require.NotNil(t, first.SourceChapterID)
	assert.Equal(t, "sha512:aaa", *first.SourceChapterID)

	second, ok := jobs[1].(queue.IngestJob)
	require.True(t, ok)
	assert.Nil(t, second.ChapterNumber)
	require.NotNil(t, second.ChapterSlug)
	assert.Nil(t, second.SourceChapterID)

	assert.Equal(t, []string{"src-1"}, repo.successIDs, "persistent counter resets on success")
}

func TestPollSourceRejectsDisallowedHost(t *testing.T) {
	service, repo, producer, _ := newHarness(t, &fakeScraper{name: "kyoshiro"})

	config := testConfig()
	config.SourceURL = "https://fake-allowed.org/series/archivist"

	err := service.PollSource(context.Background(), config)
	require.Error(t, err)
	assert.Empty(t, producer.enqueued)
	assert.Zero(t, repo.fails["src-1"], "validation failures are not source outages")
}

func TestPollSourceUnknownCapability(t *testing.T) {
	service, _, producer, _ := newHarness(t) // nothing registered

	err := service.PollSource(context.Background(), testConfig())
	require.Error(t, err)
	assert.False(t, gateway.IsRetryable(err))
	assert.Empty(t, producer.enqueued)
}

func TestPollSourceFailureOpensBreakerAndDeactivates(t *testing.T) {
	failing := &fakeScraper{
		name: "kyoshiro",
		err:  gateway.NewScraperError("kyoshiro", "upstream returned 502", true),
	}
	service, repo, _, gw := newHarness(t, failing)

	config := testConfig()

	// DisableThreshold is 3 in the harness.
	for i := 0; i < 3; i++ {
		err := service.PollSource(context.Background(), config)
		require.Error(t, err)
	}

	assert.True(t, repo.deactivated["src-1"], "source deactivates at the threshold")
	assert.Equal(t, 3, repo.fails["src-1"])
	assert.False(t, gw.IsOpen("kyoshiro"), "3 failures stay under the breaker threshold of 5")
}

func TestPollSourceSkipsWhenBreakerOpen(t *testing.T) {
	failing := &fakeScraper{
		name: "kyoshiro",
		err:  gateway.NewScraperError("kyoshiro", "boom", true),
	}
	service, repo, _, gw := newHarness(t, failing)

	config := testConfig()
	for i := 0; i < 5; i++ {
		_ = service.PollSource(context.Background(), config)
	}
	require.True(t, gw.IsOpen("kyoshiro"))

	failsBefore := repo.fails["src-1"]
	err := service.PollSource(context.Background(), config)
	require.Error(t, err)
	assert.True(t, gateway.IsCircuitOpen(err))
	assert.Equal(t, failsBefore, repo.fails["src-1"],
		"a suppressed call makes no attempt and records no outcome")
}

func TestPollSourceRateLimitDoesNotCountAgainstBreaker(t *testing.T) {
	throttled := &fakeScraper{
		name: "kyoshiro",
		err:  gateway.NewRateLimitError("kyoshiro"),
	}
	service, _, _, gw := newHarness(t, throttled)

	config := testConfig()
	for i := 0; i < 10; i++ {
		err := service.PollSource(context.Background(), config)
		require.Error(t, err)
	}

	assert.False(t, gw.IsOpen("kyoshiro"))
}

func TestPollByIDRejectsUnknownAndDeactivated(t *testing.T) {
	service, repo, _, _ := newHarness(t, &fakeScraper{name: "kyoshiro"})

	err := service.PollByID(context.Background(), "no-such-source")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	assert.False(t, apperr.IsRetryable(err))

	dormant := testConfig()
	dormant.ID = "src-dormant"
	dormant.IsActive = false
	repo.configs = append(repo.configs, dormant)

	err = service.PollByID(context.Background(), "src-dormant")
	require.Error(t, err)
	assert.Equal(t, "UNPROCESSABLE", apperr.As(err).Code)
	assert.False(t, apperr.IsRetryable(err))
}

func TestPollAllContinuesPastFailingSource(t *testing.T) {
	registry := scraper.NewRegistry()
	registry.Register(&fakeScraper{
		name: "broken",
		err:  gateway.NewScraperError("broken", "down", true),
	})
	registry.Register(&fakeScraper{
		name: "kyoshiro",
		data: &scraper.SeriesData{
			SourceID: "archivist",
			Chapters: []scraper.RawChapter{{ChapterNumber: strPtr("1"), ChapterURL: "https://allowed.org/c/1"}},
		},
	})

	gw := gateway.New(gateway.Options{
		RateRPS: 1000, RateBurst: 1000, TokenWait: time.Second,
		AllowedHosts: []string{"allowed.org"},
	}, slog.New(slog.DiscardHandler))

	broken := &source.Config{
		ID: "src-broken", SeriesID: "series-1", Name: "broken",
		SourceIDExt: "x", SourceURL: "https://allowed.org/x", IsActive: true,
	}
	repo := newFakeSourceRepo(broken, testConfig())
	producer := newFakeProducer()

	service := poller.NewService(repo, registry, gw, producer,
		poller.Options{Interval: time.Hour}, slog.New(slog.DiscardHandler))

	service.PollAll(context.Background())

	require.Len(t, producer.enqueued["ingest"], 1, "healthy source still ingested")
	assert.Equal(t, 1, repo.fails["src-broken"])
}
