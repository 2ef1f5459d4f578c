package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/source"
)

// SyncSourceConfigTask reconciles one seed configuration with the source
// registry: registers the source on first sight and keeps the enabled flag
// in line with the config. A source whose address is already registered is
// the steady state, not a failure.
type SyncSourceConfigTask struct {
	Task
	SourceConfig *source.Config
	sourceRepo   database.SourceRepository
}

func NewSyncSourceConfigTask(sourceName string, sourceConfig *source.Config, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceName),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	kind, err := curation.ParseSourceKind(t.SourceConfig.Source.Kind)
	if err != nil {
		return fmt.Errorf("failed to sync source config: %w", err)
	}

	id, err := t.sourceRepo.Register(t.SourceConfig.Source.Name, kind, t.SourceConfig.Source.Address)
	if err != nil {
		if !errors.Is(err, database.ErrDuplicateAddress) {
			slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.SourceName, "error", err)
			return fmt.Errorf("failed to register source: %w", err)
		}

		existing, err := t.sourceRepo.GetSourceByAddress(t.SourceConfig.Source.Address)
		if err != nil {
			return fmt.Errorf("failed to resolve registered source: %w", err)
		}
		id = existing.ID
	}

	if err := t.sourceRepo.SetEnabled(id, t.SourceConfig.Settings.Enabled); err != nil {
		return fmt.Errorf("failed to sync enabled flag: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"source_id", id,
		"enabled", t.SourceConfig.Settings.Enabled,
		"duration", t.GetDuration())

	return nil
}
