package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curatehq/curator/app/api"
	"github.com/curatehq/curator/app/cfg"
	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/digest"
	"github.com/curatehq/curator/app/fetcher"
	"github.com/curatehq/curator/app/rating"
	"github.com/curatehq/curator/app/source"
	"github.com/curatehq/curator/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting Curator server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	fetchLogRepo := database.NewFetchLogRepository(db)
	digestRepo := database.NewDigestRepository(db)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	feedFetcher := fetcher.NewFeedFetcher(httpClient, appCfg.UserAgent)
	oracle := rating.NewCLIOracle(appCfg.RatingCommand, appCfg.RatingPattern, appCfg.RatingModel)
	extractor := curation.NewTranscriptExtractor()
	compiler := digest.NewCompiler(digestRepo, digest.NewGenerator(), digest.NewWriter(appCfg.DigestDir))

	slog.Info("Starting background scheduler",
		"workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(configCache, sourceRepo, itemRepo, fetchLogRepo,
		digestRepo, httpClient, feedFetcher, oracle, extractor, compiler)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(configCache, sourceRepo, itemRepo, fetchLogRepo, digestRepo, compiler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if appCfg.APIAccessKey == "" {
			slog.Warn("API endpoints disabled, API_ACCESS_KEY not set")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
