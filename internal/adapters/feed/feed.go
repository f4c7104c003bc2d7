// Package feed adapts RSS/Atom syndication sources into RawRecords, using
// gofeed for parsing the same way the teacher's rss.Service does.
package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/geraldfingburke/trendwatch/internal/adapters"
	"github.com/geraldfingburke/trendwatch/internal/models"
)

// maxEntriesPerFeed caps how many items a single feed contributes per
// FetchBatch call, mirroring the teacher's per-feed article allocation.
const maxEntriesPerFeed = 50

// betweenFeeds is the minimum pacing between two feed fetches, so a long
// URL list doesn't hammer many hosts back-to-back in the same instant.
const betweenFeeds = time.Second

// Adapter fetches entries from a fixed list of RSS/Atom feed URLs.
type Adapter struct {
	parser   *gofeed.Parser
	feedURLs []string
	limiter  *rate.Limiter
}

// New builds a feed Adapter over the given feed URLs.
func New(feedURLs []string) *Adapter {
	return &Adapter{
		parser:   gofeed.NewParser(),
		feedURLs: feedURLs,
		limiter:  rate.NewLimiter(rate.Every(betweenFeeds), 1),
	}
}

func (a *Adapter) Name() string { return "feed" }

// FetchBatch ignores cursor (feeds are re-polled in full each cycle, and
// Normalizer's idempotent upsert handles re-seen items) and returns every
// entry across all configured feeds, capped at maxEntriesPerFeed each and,
// when limit > 0, truncated to the first limit entries overall. Individual feed failures are logged and skipped, matching the teacher's
// continue-on-feed-error behavior; FetchBatch only errors if every feed
// failed.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]models.RawRecord, string, error) {
	if len(a.feedURLs) == 0 {
		return nil, "", adapters.ErrDisabled
	}

	var records []models.RawRecord
	var failures int

	for _, feedURL := range a.feedURLs {
		if err := a.limiter.Wait(ctx); err != nil {
			return records, "", &adapters.SourceError{Adapter: a.Name(), Err: err}
		}

		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("feed adapter: error fetching %s: %v", feedURL, err)
			failures++
			continue
		}

		for i, item := range feed.Items {
			if i >= maxEntriesPerFeed {
				break
			}
			records = append(records, itemToRecord(feedURL, item))
		}
	}

	if failures == len(a.feedURLs) {
		return nil, "", &adapters.SourceError{Adapter: a.Name(), Err: fmt.Errorf("all %d feeds failed", failures)}
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, "", nil
}

func itemToRecord(feedURL string, item *gofeed.Item) models.RawRecord {
	body := item.Content
	if body == "" {
		body = item.Description
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	var publishedAt *time.Time
	if item.PublishedParsed != nil {
		publishedAt = item.PublishedParsed
	}

	localID := item.GUID
	if localID == "" {
		localID = item.Link
	}

	return models.RawRecord{
		SourceKind:  models.SourceFeed,
		LocalID:     localID,
		Title:       item.Title,
		Body:        body,
		Author:      author,
		URL:         item.Link,
		PublishedAt: publishedAt,
	}
}
