package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/rating"
)

// RateItemsTask passes a batch of unrated items through the rating oracle
// and applies each verdict. The orchestration guarantees at most one rating
// pass at a time, and ApplyRating is idempotent for duplicate verdicts, so
// a retried batch is harmless.
type RateItemsTask struct {
	Task
	oracle    rating.Oracle
	itemRepo  database.ItemRepository
	batchSize int
}

func NewRateItemsTask(oracle rating.Oracle, itemRepo database.ItemRepository, batchSize int) *RateItemsTask {
	return &RateItemsTask{
		Task:      NewTask(TaskTypeRateItems, ""),
		oracle:    oracle,
		itemRepo:  itemRepo,
		batchSize: batchSize,
	}
}

func (t *RateItemsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	items, err := t.itemRepo.GetUnratedItems(t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get unrated items: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No unrated items to process")
		return nil
	}

	ratedCount := 0
	errorCount := 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := t.oracle.Rate(ctx, item)
		if err != nil {
			slog.Error("Failed to rate item", "item_id", item.ID, "title", item.Title, "error", err)
			errorCount++
			continue
		}

		if err := t.itemRepo.ApplyRating(item.ID, result.Tier, result.Reasoning); err != nil {
			slog.Error("Failed to apply rating", "item_id", item.ID, "tier", result.Tier, "error", err)
			errorCount++
			continue
		}

		ratedCount++
	}

	slog.Info("Task completed",
		"type", "RateItems",
		"duration", t.GetDuration(),
		"rated", ratedCount,
		"errors", errorCount)

	return nil
}
