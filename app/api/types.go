package api

import (
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/digest"
	"github.com/curatehq/curator/app/source"
)

type Handler struct {
	configCache  *source.ConfigCache
	sourceRepo   database.SourceRepository
	itemRepo     database.ItemRepository
	fetchLogRepo database.FetchLogRepository
	digestRepo   database.DigestRepository
	compiler     *digest.Compiler
}

type registerSourceRequest struct {
	Name    string `json:"name" binding:"required"`
	Kind    string `json:"kind" binding:"required"`
	Address string `json:"address" binding:"required"`
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type applyRatingRequest struct {
	Tier      string `json:"tier" binding:"required"`
	Reasoning string `json:"reasoning"`
}

type compileDigestRequest struct {
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}
