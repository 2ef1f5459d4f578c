package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/curatehq/curator/app/cfg"
	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/digest"
	"github.com/curatehq/curator/app/fetcher"
	"github.com/curatehq/curator/app/rating"
	"github.com/curatehq/curator/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache    *source.ConfigCache
	sourceRepo     database.SourceRepository
	itemRepo       database.ItemRepository
	fetchLogRepo   database.FetchLogRepository
	digestRepo     database.DigestRepository
	httpClient     *http.Client
	fetch          fetcher.Fetcher
	oracle         rating.Oracle
	extractor      *curation.TranscriptExtractor
	compiler       *digest.Compiler
	userAgent      string
	interval       time.Duration
	workerCount    int
	ratingBatch    int
	digestInterval time.Duration
	digestWindow   int
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

func NewScheduler(configCache *source.ConfigCache, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, fetchLogRepo database.FetchLogRepository,
	digestRepo database.DigestRepository, httpClient *http.Client, fetch fetcher.Fetcher,
	oracle rating.Oracle, extractor *curation.TranscriptExtractor,
	compiler *digest.Compiler) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:    configCache,
		sourceRepo:     sourceRepo,
		itemRepo:       itemRepo,
		fetchLogRepo:   fetchLogRepo,
		digestRepo:     digestRepo,
		httpClient:     httpClient,
		fetch:          fetch,
		oracle:         oracle,
		extractor:      extractor,
		compiler:       compiler,
		userAgent:      cfg.UserAgent,
		interval:       time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:    cfg.WorkerCount,
		ratingBatch:    cfg.RatingBatchSize,
		digestInterval: time.Duration(cfg.DigestInterval) * time.Hour,
		digestWindow:   cfg.DigestWindowDays,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceConfigTask(sourceConfig.Name, sourceConfig, s.sourceRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	now := time.Now().UTC()

	for _, sourceConfig := range s.configCache.GetConfigs() {
		if !sourceConfig.Settings.Enabled {
			continue
		}

		src, err := s.sourceRepo.GetSourceByAddress(sourceConfig.Source.Address)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}
		if src == nil {
			slog.Warn("Source not registered yet, skipping", "source", sourceConfig.Name)
			continue
		}

		if sourceDue(src, sourceConfig, now) {
			fetchTask := NewFetchSourceTask(*src, sourceConfig, s.fetch, s.sourceRepo, s.itemRepo, s.fetchLogRepo)
			if err := s.EnqueueTask(fetchTask); err != nil {
				slog.Warn("Failed to enqueue FetchSourceTask", "source", sourceConfig.Name, "error", err)
			}
		} else {
			slog.Debug("Source not due for fetch yet", "source", sourceConfig.Name, "last_fetch_at", src.LastFetchAt)
		}

		if sourceConfig.Settings.ExtractTranscripts {
			extractTask := NewExtractTranscriptsTask(*src, sourceConfig, s.httpClient, s.extractor, s.itemRepo, s.userAgent)
			if err := s.EnqueueTask(extractTask); err != nil {
				slog.Warn("Failed to enqueue ExtractTranscriptsTask", "source", sourceConfig.Name, "error", err)
			}
		}
	}

	rateTask := NewRateItemsTask(s.oracle, s.itemRepo, s.ratingBatch)
	if err := s.EnqueueTask(rateTask); err != nil {
		slog.Warn("Failed to enqueue RateItemsTask", "error", err)
	}

	if s.digestDue(now) {
		compileTask := NewCompileDigestTask(s.compiler, s.digestWindow)
		if err := s.EnqueueTask(compileTask); err != nil {
			slog.Warn("Failed to enqueue CompileDigestTask", "error", err)
		}
	}
}

func sourceDue(src *database.Source, sourceConfig *source.Config, now time.Time) bool {
	if src.LastFetchAt == nil {
		return true
	}
	return src.LastFetchAt.Add(sourceConfig.Settings.GetFetchInterval()).Before(now)
}

func (s *Scheduler) digestDue(now time.Time) bool {
	if s.digestInterval <= 0 {
		return false
	}

	latest, err := s.digestRepo.GetLatestDigest()
	if err != nil {
		slog.Warn("Failed to get latest digest", "error", err)
		return false
	}
	if latest == nil {
		return true
	}
	return latest.CreatedAt.Add(s.digestInterval).Before(now)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
