package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/source"
)

// ExtractTranscriptsTask backfills article items that were ingested without
// a transcript by fetching the article page and extracting its readable
// text. Transcripts are volatile metadata: the backfill never touches
// rating or publication columns.
type ExtractTranscriptsTask struct {
	Task
	Source       database.Source
	SourceConfig *source.Config
	httpClient   *http.Client
	extractor    *curation.TranscriptExtractor
	itemRepo     database.ItemRepository
	userAgent    string
}

func NewExtractTranscriptsTask(src database.Source, sourceConfig *source.Config, httpClient *http.Client,
	extractor *curation.TranscriptExtractor, itemRepo database.ItemRepository, userAgent string) *ExtractTranscriptsTask {
	return &ExtractTranscriptsTask{
		Task:         NewTask(TaskTypeExtractTranscripts, sourceConfig.Name),
		Source:       src,
		SourceConfig: sourceConfig,
		httpClient:   httpClient,
		extractor:    extractor,
		itemRepo:     itemRepo,
		userAgent:    userAgent,
	}
}

func (t *ExtractTranscriptsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.ExtractTranscripts {
		slog.Debug("Transcript extraction disabled for source", "source", t.SourceName)
		return nil
	}

	items, err := t.itemRepo.GetItemsForExtraction(t.Source.ID, t.SourceConfig.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get items for transcript extraction: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No items need transcript extraction", "source", t.SourceName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		extractCtx, cancel := context.WithTimeout(ctx, t.SourceConfig.Settings.GetTimeout())
		err := t.extractForItem(extractCtx, item)
		cancel()

		if err != nil {
			slog.Error("Failed to extract transcript", "item_id", item.ID, "url", item.Address, "error", err)
			errorCount++

			if markErr := t.itemRepo.MarkExtractionFailed(item.ID); markErr != nil {
				slog.Error("Failed to mark extraction failed", "item_id", item.ID, "error", markErr)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractTranscriptsTask) extractForItem(ctx context.Context, item database.Item) error {
	if item.Address == "" {
		return fmt.Errorf("item has no address")
	}

	data, err := t.fetchArticle(ctx, item.Address)
	if err != nil {
		return fmt.Errorf("failed to fetch article: %w", err)
	}

	transcript, err := t.extractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract transcript: %w", err)
	}

	if err := t.itemRepo.UpdateTranscript(item.ID, transcript); err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	slog.Debug("Transcript extracted", "item_id", item.ID, "url", item.Address, "length", len(transcript))
	return nil
}

func (t *ExtractTranscriptsTask) fetchArticle(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
