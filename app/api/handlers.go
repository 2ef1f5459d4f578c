package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curatehq/curator/app/cfg"
	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/digest"
	"github.com/curatehq/curator/app/source"
)

func NewHandler(configCache *source.ConfigCache, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, fetchLogRepo database.FetchLogRepository,
	digestRepo database.DigestRepository, compiler *digest.Compiler) *Handler {
	return &Handler{
		configCache:  configCache,
		sourceRepo:   sourceRepo,
		itemRepo:     itemRepo,
		fetchLogRepo: fetchLogRepo,
		digestRepo:   digestRepo,
		compiler:     compiler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.itemRepo.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_items":          stats.TotalItems,
		"rated_items":          stats.RatedItems,
		"by_rating":            stats.ByRating,
		"unpublished_top_tier": stats.UnpublishedTopTier,
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sourceRepo.ListAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	list := make([]gin.H, 0, len(sources))
	for _, src := range sources {
		info := gin.H{
			"id":      src.ID,
			"name":    src.Name,
			"kind":    src.Kind,
			"address": src.Address,
			"enabled": src.Enabled,
		}
		if src.LastFetchAt != nil {
			info["last_fetch_at"] = src.LastFetchAt.Format(time.RFC3339)
		}
		list = append(list, info)
	}

	c.JSON(http.StatusOK, gin.H{"sources": list})
}

func (h *Handler) APIRegisterSource(c *gin.Context) {
	var req registerSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := curation.ParseSourceKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.sourceRepo.Register(req.Name, kind, req.Address)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateAddress) {
			c.JSON(http.StatusConflict, gin.H{"error": "address already registered"})
			return
		}
		slog.Error("Database error", "operation", "register_source", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) APISetSourceEnabled(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sourceRepo.SetEnabled(id, req.Enabled); err != nil {
		if errors.Is(err, database.ErrUnknownSource) {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
			return
		}
		slog.Error("Database error", "operation", "set_source_enabled", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": req.Enabled})
}

func (h *Handler) APIGetFetchHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.fetchLogRepo.History(id, limit)
	if err != nil {
		slog.Error("Database error", "operation", "fetch_history", "source_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	list := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		info := gin.H{
			"id":            entry.ID,
			"items_fetched": entry.ItemsFetched,
			"started_at":    entry.StartedAt.Format(time.RFC3339),
		}
		if entry.Success != nil {
			info["success"] = *entry.Success
		}
		if entry.ErrorMessage != "" {
			info["error_message"] = entry.ErrorMessage
		}
		if entry.CompletedAt != nil {
			info["completed_at"] = entry.CompletedAt.Format(time.RFC3339)
		}
		list = append(list, info)
	}

	c.JSON(http.StatusOK, gin.H{"fetches": list})
}

func (h *Handler) APIListUnratedItems(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.itemRepo.GetUnratedItems(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_unrated", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	list := make([]gin.H, 0, len(items))
	for _, item := range items {
		list = append(list, itemInfo(item))
	}

	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *Handler) APIGetItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	item, err := h.itemRepo.GetItem(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_item", "item_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	c.JSON(http.StatusOK, itemInfo(*item))
}

// APIApplyRating is the ingress used by the external rating oracle worker.
func (h *Handler) APIApplyRating(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req applyRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.itemRepo.ApplyRating(id, curation.Tier(req.Tier), req.Reasoning)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrInvalidTier):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		case errors.Is(err, database.ErrUnknownItem):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		default:
			slog.Error("Database error", "operation", "apply_rating", "item_id", id, "error", err)
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "tier": req.Tier})
}

// APICompileDigest triggers a digest compilation. The default window is the
// trailing configured number of days.
func (h *Handler) APICompileDigest(c *gin.Context) {
	var req compileDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	windowEnd := time.Now().UTC()
	windowStart := windowEnd.AddDate(0, 0, -cfg.Get().DigestWindowDays)

	if req.WindowStart != "" {
		parsed, err := time.Parse(time.RFC3339, req.WindowStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window_start"})
			return
		}
		windowStart = parsed
	}
	if req.WindowEnd != "" {
		parsed, err := time.Parse(time.RFC3339, req.WindowEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window_end"})
			return
		}
		windowEnd = parsed
	}

	result, err := h.compiler.Run(c.Request.Context(), windowStart, windowEnd)
	if err != nil {
		slog.Error("Digest compilation failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{"created": false})
		return
	}

	itemIDs := make([]int64, 0, len(result.Items))
	for _, item := range result.Items {
		itemIDs = append(itemIDs, item.ID)
	}

	c.JSON(http.StatusCreated, gin.H{
		"created":  true,
		"digest":   digestInfo(result.Digest),
		"item_ids": itemIDs,
	})
}

func (h *Handler) APIGetDigest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	d, err := h.digestRepo.GetDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
		return
	}

	items, err := h.itemRepo.GetItemsByDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest_items", "digest_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"digest":   digestInfo(*d),
		"item_ids": itemIDs,
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func itemInfo(item database.Item) gin.H {
	info := gin.H{
		"id":               item.ID,
		"source_id":        item.SourceID,
		"address":          item.Address,
		"title":            item.Title,
		"duration_minutes": item.DurationMinutes,
		"published":        item.Published,
		"fetched_at":       item.FetchedAt.Format(time.RFC3339),
	}
	if item.PublishedDate != nil {
		info["published_date"] = item.PublishedDate.Format(time.RFC3339)
	}
	if item.Rated() {
		info["rating"] = item.Rating
		info["rating_reasoning"] = item.RatingReasoning
	}
	if item.DigestID != nil {
		info["digest_id"] = *item.DigestID
	}
	return info
}

func digestInfo(d database.Digest) gin.H {
	return gin.H{
		"id":              d.ID,
		"window_start":    d.WindowStart.Format(time.RFC3339),
		"window_end":      d.WindowEnd.Format(time.RFC3339),
		"item_count":      d.ItemCount,
		"tier_counts":     d.TierCounts,
		"output_location": d.OutputLocation,
		"created_at":      d.CreatedAt.Format(time.RFC3339),
	}
}
