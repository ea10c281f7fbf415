// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/scraper"
)

const seriesPage = `<!doctype html>
<html><body>
<h1 class="series-title">Blade of the Archivist</h1>
<ul class="chapter-list">
  <li><a href="/chapter/a1" data-number="1105" data-chapter-id="sha512:aaa">
    <span class="title">The Gate</span>
    <time datetime="2026-08-01T12:00:00Z"></time>
  </a></li>
  <li><a href="/chapter/a2" data-number="1105.5" data-chapter-id="sha512:bbb">
    <span class="title">The Gate, Part Two</span>
    <time datetime="2026-08-08T12:00:00Z"></time>
  </a></li>
  <li><a href="/chapter/a3" data-slug="extra-1">
    <span class="title">Extra</span>
  </a></li>
</ul>
</body></html>`

func TestKyoshiroScrapeSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/archivist" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(seriesPage))
	}))
	defer server.Close()

	source := scraper.NewKyoshiro(server.URL)
	assert.Equal(t, "kyoshiro", source.Name())

	data, err := source.ScrapeSeries(context.Background(), "archivist")
	require.NoError(t, err)
	assert.Equal(t, "archivist", data.SourceID)
	assert.Equal(t, "Blade of the Archivist", data.Title)
	require.Len(t, data.Chapters, 3)

	first := data.Chapters[0]
	require.NotNil(t, first.ChapterNumber)
	assert.Equal(t, "1105", *first.ChapterNumber)
	require.NotNil(t, first.SourceChapterID)
	assert.Equal(t, "sha512:aaa", *first.SourceChapterID)
	require.NotNil(t, first.ChapterTitle)
	assert.Equal(t, "The Gate", *first.ChapterTitle)
	assert.Equal(t, server.URL+"/chapter/a1", first.ChapterURL)
	assert.Equal(t, "2026-08-01T12:00:00Z", first.PublishedAt.Format("2006-01-02T15:04:05Z07:00"))

	second := data.Chapters[1]
	require.NotNil(t, second.ChapterNumber)
	assert.Equal(t, "1105.5", *second.ChapterNumber)

	special := data.Chapters[2]
	assert.Nil(t, special.ChapterNumber)
	require.NotNil(t, special.ChapterSlug)
	assert.Equal(t, "extra-1", *special.ChapterSlug)
	assert.Nil(t, special.SourceChapterID, "missing data-chapter-id must stay nil")
	assert.True(t, special.PublishedAt.IsZero())
}

func TestKyoshiroErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		retryable bool
	}{
		{name: "not found is final", status: http.StatusNotFound, code: gateway.CodeNotFound, retryable: false},
		{name: "throttling is retryable", status: http.StatusTooManyRequests, code: gateway.CodeRateLimit, retryable: true},
		{name: "server error is retryable", status: http.StatusBadGateway, code: gateway.CodeScraper, retryable: true},
		{name: "redirect loop is final", status: http.StatusForbidden, code: gateway.CodeScraper, retryable: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := scraper.NewKyoshiro(server.URL).ScrapeSeries(context.Background(), "archivist")
			require.Error(t, err)

			var sourceErr gateway.SourceError
			require.ErrorAs(t, err, &sourceErr)
			assert.Equal(t, "kyoshiro", sourceErr.SourceName())
			assert.Equal(t, tc.code, sourceErr.ErrorCode())
			assert.Equal(t, tc.retryable, sourceErr.IsRetryable())
		})
	}
}

func TestKyoshiroNetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := scraper.NewKyoshiro(server.URL).ScrapeSeries(context.Background(), "archivist")
	require.Error(t, err)
	assert.True(t, gateway.IsRetryable(err))
	assert.False(t, gateway.IsRateLimit(err))
}

func TestRegistryResolve(t *testing.T) {
	registry := scraper.NewRegistry()
	registry.Register(scraper.NewKyoshiro("http://example.invalid"))

	resolved, err := registry.Resolve("kyoshiro")
	require.NoError(t, err)
	assert.Equal(t, "kyoshiro", resolved.Name())

	_, err = registry.Resolve("nope")
	require.Error(t, err)
	assert.False(t, gateway.IsRetryable(err), "unknown capability must not be retried")

	assert.Equal(t, []string{"kyoshiro"}, registry.Names())
}
