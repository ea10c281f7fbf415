// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/constants"
)

// kyoshiroName is the capability identifier for the Kyoshiro aggregator.
const kyoshiroName = "kyoshiro"

// Kyoshiro scrapes the Kyoshiro chapter listing pages.
//
// # Page Structure
//
// A series page carries its title in 'h1.series-title' and one
// 'ul.chapter-list > li > a' anchor per chapter:
//
//	<a href="/chapter/abc"
//	   data-number="1105.5"            (absent for specials)
//	   data-slug="extra-1"             (specials only)
//	   data-chapter-id="sha512:...">   (absent on older mirrors)
//	  <span class="title">The Calm</span>
//	  <time datetime="2026-08-01T12:00:00Z"></time>
//	</a>
type Kyoshiro struct {
	baseURL string
	client  *http.Client
}

// NewKyoshiro constructs the Kyoshiro capability rooted at baseURL.
func NewKyoshiro(baseURL string) *Kyoshiro {
	return &Kyoshiro{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: constants.ScrapeRequestTimeout},
	}
}

// Name implements [Scraper].
func (k *Kyoshiro) Name() string { return kyoshiroName }

/*
ScrapeSeries fetches and parses the chapter list for one series.

Description: HTTP failures are classified into the gateway taxonomy — 404 is
a definitive non-retryable answer, 429 is a rate limit that must not count
against the breaker, 5xx and transport errors are retryable.

Parameters:
  - ctx: context.Context bounding the upstream call.
  - sourceID: string (Kyoshiro's own series identifier)

Returns:
  - *SeriesData: Parsed title and raw chapters.
  - error: A gateway taxonomy error on failure.
*/
func (k *Kyoshiro) ScrapeSeries(ctx context.Context, sourceID string) (*SeriesData, error) {

	// 1. Fetch the series page
	pageURL := fmt.Sprintf("%s/series/%s", k.baseURL, sourceID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, gateway.NewScraperError(kyoshiroName, "invalid series URL: "+err.Error(), false)
	}
	request.Header.Set("User-Agent", constants.AppName+"/"+constants.AppVersion)

	response, err := k.client.Do(request)
	if err != nil {
		// Transport-level failures are transient by assumption.
		scraperErr := gateway.NewScraperError(kyoshiroName, "request failed: "+err.Error(), true)
		scraperErr.Cause = err
		return nil, scraperErr
	}
	defer response.Body.Close()

	// 2. Classify non-success statuses
	switch {
	case response.StatusCode == http.StatusNotFound:
		return nil, gateway.NewNotFoundError(kyoshiroName, sourceID)
	case response.StatusCode == http.StatusTooManyRequests:
		return nil, gateway.NewRateLimitError(kyoshiroName)
	case response.StatusCode >= 500:
		return nil, gateway.NewScraperError(kyoshiroName,
			fmt.Sprintf("upstream returned %d", response.StatusCode), true)
	case response.StatusCode != http.StatusOK:
		return nil, gateway.NewScraperError(kyoshiroName,
			fmt.Sprintf("unexpected status %d", response.StatusCode), false)
	}

	// 3. Parse the listing
	document, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return nil, gateway.NewScraperError(kyoshiroName, "unparseable page: "+err.Error(), false)
	}

	data := &SeriesData{
		SourceID: sourceID,
		Title:    strings.TrimSpace(document.Find("h1.series-title").First().Text()),
	}

	document.Find("ul.chapter-list li a").Each(func(_ int, anchor *goquery.Selection) {
		raw := RawChapter{
			ChapterURL: k.absoluteURL(anchor.AttrOr("href", "")),
		}

		if number, exists := anchor.Attr("data-number"); exists && strings.TrimSpace(number) != "" {
			trimmed := strings.TrimSpace(number)
			raw.ChapterNumber = &trimmed
		}
		if chapterSlug, exists := anchor.Attr("data-slug"); exists && strings.TrimSpace(chapterSlug) != "" {
			trimmed := strings.TrimSpace(chapterSlug)
			raw.ChapterSlug = &trimmed
		}

		// Older mirrors omit data-chapter-id; that must stay a nil, never "".
		if chapterID, exists := anchor.Attr("data-chapter-id"); exists && chapterID != "" {
			raw.SourceChapterID = &chapterID
		}

		if title := strings.TrimSpace(anchor.Find("span.title").Text()); title != "" {
			raw.ChapterTitle = &title
		}

		if datetime, exists := anchor.Find("time").Attr("datetime"); exists {
			if parsed, err := time.Parse(time.RFC3339, datetime); err == nil {
				raw.PublishedAt = parsed
			}
		}

		data.Chapters = append(data.Chapters, raw)
	})

	return data, nil
}

// absoluteURL resolves listing hrefs against the capability's base URL.
func (k *Kyoshiro) absoluteURL(href string) string {
	if href == "" || strings.Contains(href, "://") {
		return href
	}
	return k.baseURL + "/" + strings.TrimLeft(href, "/")
}
