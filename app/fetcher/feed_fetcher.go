package fetcher

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/source"
)

var _ Fetcher = (*FeedFetcher)(nil)

// FeedFetcher retrieves items from RSS/Atom sources: podcast feeds
// (audio-feed) and blog/news feeds (article-feed). Video channels are
// fetched by an external collaborator and are not supported here.
type FeedFetcher struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

func NewFeedFetcher(httpClient *http.Client, userAgent string) *FeedFetcher {
	return &FeedFetcher{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

func (f *FeedFetcher) Fetch(ctx context.Context, src database.Source, settings source.Settings) ([]curation.ItemRecord, error) {
	switch src.Kind {
	case curation.KindAudioFeed, curation.KindArticleFeed:
	default:
		return nil, fmt.Errorf("source kind %q: %w", src.Kind, ErrUnsupportedKind)
	}

	data, err := f.fetchFeed(ctx, src.Address, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := f.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	limit := settings.MaxItems
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	records := make([]curation.ItemRecord, 0, limit)
	for _, item := range feed.Items[:limit] {
		if item == nil || item.Link == "" {
			continue
		}
		records = append(records, f.normalizeItem(item))
	}

	return records, nil
}

func (f *FeedFetcher) fetchFeed(ctx context.Context, url string, settings source.Settings) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, settings.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *FeedFetcher) normalizeItem(item *gofeed.Item) curation.ItemRecord {
	record := curation.ItemRecord{
		Title:       item.Title,
		Address:     item.Link,
		Description: cmp.Or(item.Description, item.Content),
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		record.PublishedDate = &published
	}

	if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
		record.DurationMinutes = parseDurationMinutes(item.ITunesExt.Duration)
	}

	return record
}

// parseDurationMinutes handles the two itunes:duration forms: plain seconds
// ("3600") and colon-separated clock time ("1:02:30" or "62:30").
func parseDurationMinutes(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	seconds := 0
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		seconds = seconds*60 + n
	}

	return seconds / 60
}
