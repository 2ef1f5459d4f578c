package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./curator.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Rating oracle configuration
	RatingCommand   string `long:"rating-command" env:"RATING_COMMAND" default:"fabric" description:"External rating oracle command"`
	RatingPattern   string `long:"rating-pattern" env:"RATING_PATTERN" default:"rate_content" description:"Rating oracle pattern name"`
	RatingModel     string `long:"rating-model" env:"RATING_MODEL" description:"Rating oracle model override (optional)"`
	RatingBatchSize int    `long:"rating-batch-size" env:"RATING_BATCH_SIZE" default:"10" description:"Number of unrated items to rate per pass"`

	// Digest configuration
	DigestDir        string `long:"digest-dir" env:"DIGEST_DIR" default:"./digests" description:"Directory where compiled digests are written"`
	DigestWindowDays int    `long:"digest-window-days" env:"DIGEST_WINDOW_DAYS" default:"7" description:"Length of the digest selection window in days"`
	DigestInterval   int    `long:"digest-interval" env:"DIGEST_INTERVAL" default:"0" description:"Hours between automatic digest compilations (0 disables automatic compilation)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Curator/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		RatingCommand:     raw.RatingCommand,
		RatingPattern:     raw.RatingPattern,
		RatingModel:       raw.RatingModel,
		RatingBatchSize:   raw.RatingBatchSize,
		DigestDir:         raw.DigestDir,
		DigestWindowDays:  raw.DigestWindowDays,
		DigestInterval:    raw.DigestInterval,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set installs a configuration directly, bypassing flag parsing. Used by
// tests.
func Set(cfg *Cfg) {
	globalCfg = cfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
