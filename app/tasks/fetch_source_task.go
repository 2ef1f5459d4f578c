package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/fetcher"
	"github.com/curatehq/curator/app/source"
)

// FetchSourceTask runs one audited fetch pass for a source: open a fetch
// log entry, retrieve records, ingest them through the deduplicating
// ledger, advance the source checkpoint, and record the outcome. A fetch
// failure produces a failed log entry and zero ingestions; it never leaks
// into the ingestion path.
type FetchSourceTask struct {
	Task
	Source       database.Source
	SourceConfig *source.Config
	fetch        fetcher.Fetcher
	sourceRepo   database.SourceRepository
	itemRepo     database.ItemRepository
	fetchLogRepo database.FetchLogRepository
}

func NewFetchSourceTask(src database.Source, sourceConfig *source.Config, fetch fetcher.Fetcher,
	sourceRepo database.SourceRepository, itemRepo database.ItemRepository,
	fetchLogRepo database.FetchLogRepository) *FetchSourceTask {
	return &FetchSourceTask{
		Task:         NewTask(TaskTypeFetchSource, sourceConfig.Name),
		Source:       src,
		SourceConfig: sourceConfig,
		fetch:        fetch,
		sourceRepo:   sourceRepo,
		itemRepo:     itemRepo,
		fetchLogRepo: fetchLogRepo,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	handle, err := t.fetchLogRepo.Begin(t.Source.ID)
	if err != nil {
		return fmt.Errorf("failed to begin fetch log entry: %w", err)
	}

	records, err := t.fetch.Fetch(ctx, t.Source, t.SourceConfig.Settings)
	if err != nil {
		if logErr := t.fetchLogRepo.Complete(handle, 0, err); logErr != nil {
			slog.Error("Failed to record fetch failure", "source", t.SourceName, "error", logErr)
		}
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	newCount := 0
	duplicateCount := 0

	for _, record := range records {
		_, created, err := t.itemRepo.Ingest(t.Source.ID, record)
		if err != nil {
			if logErr := t.fetchLogRepo.Complete(handle, newCount, err); logErr != nil {
				slog.Error("Failed to record fetch failure", "source", t.SourceName, "error", logErr)
			}
			return fmt.Errorf("failed to ingest item: %w", err)
		}

		if created {
			newCount++
		} else {
			duplicateCount++
		}
	}

	if err := t.sourceRepo.RecordFetchCheckpoint(t.Source.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record fetch checkpoint: %w", err)
	}

	if err := t.fetchLogRepo.Complete(handle, newCount, nil); err != nil {
		return fmt.Errorf("failed to complete fetch log entry: %w", err)
	}

	slog.Info("Task completed",
		"type", "FetchSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(records),
		"duplicates", duplicateCount,
		"new", newCount)

	return nil
}
