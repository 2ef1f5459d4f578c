package database

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/curatehq/curator/app/curation"
)

func TestItemRepositoryIngest(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	published := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
	id, created, err := repo.Ingest(sourceID, curation.ItemRecord{
		Title:           "Go Profiling Deep Dive",
		Address:         "https://example.com/articles/profiling",
		Description:     "A walkthrough of pprof",
		PublishedDate:   &published,
		DurationMinutes: 25,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !created {
		t.Error("Expected item to be newly created")
	}

	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item == nil {
		t.Fatal("Expected item to be returned, got nil")
	}
	if item.Title != "Go Profiling Deep Dive" {
		t.Errorf("Expected title 'Go Profiling Deep Dive', got '%s'", item.Title)
	}
	if item.Rated() {
		t.Error("Expected new item to be unrated")
	}
	if item.Published {
		t.Error("Expected new item to be unpublished")
	}
	if item.PublishedDate == nil || !item.PublishedDate.Equal(published) {
		t.Errorf("Expected published date %v, got %v", published, item.PublishedDate)
	}
}

func TestItemRepositoryIngestCanonicalizesAddress(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	id, _, err := repo.Ingest(sourceID, curation.ItemRecord{
		Address: "HTTPS://www.Example.com/watch?v=abc&utm_source=share",
	})
	if err != nil {
		t.Fatal(err)
	}

	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Address != "https://example.com/watch?v=abc" {
		t.Errorf("Expected canonical address, got '%s'", item.Address)
	}

	// Lookup by any variant of the address resolves to the same row.
	byAddress, err := repo.GetItemByAddress("https://www.example.com/watch/?v=abc#t=10")
	if err != nil {
		t.Fatal(err)
	}
	if byAddress == nil || byAddress.ID != id {
		t.Error("Expected address variant to resolve to same item")
	}
}

func TestItemRepositoryIngestDuplicateIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	id, created, err := repo.Ingest(sourceID, curation.ItemRecord{
		Title:   "Original Title",
		Address: "https://example.com/article",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("Expected first ingest to create the item")
	}

	if err := repo.ApplyRating(id, curation.TierA, "solid coverage"); err != nil {
		t.Fatal(err)
	}

	// Re-ingesting the same address must not create a row or touch rating
	// state, even with a different title.
	dupID, dupCreated, err := repo.Ingest(sourceID, curation.ItemRecord{
		Title:   "Retitled",
		Address: "https://www.example.com/article?utm_source=feed",
	})
	if err != nil {
		t.Fatalf("Expected duplicate ingest to succeed, got: %v", err)
	}
	if dupCreated {
		t.Error("Expected duplicate ingest to report created=false")
	}
	if dupID != id {
		t.Errorf("Expected existing item id %d, got %d", id, dupID)
	}

	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "Original Title" {
		t.Errorf("Expected title to be untouched, got '%s'", item.Title)
	}
	if item.Rating != curation.TierA {
		t.Errorf("Expected rating to be untouched, got '%s'", item.Rating)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM content_items").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 item row, got %d", count)
	}
}

func TestItemRepositoryIngestBackfillsVolatileFields(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	id, _, err := repo.Ingest(sourceID, curation.ItemRecord{
		Address: "https://example.com/article",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = repo.Ingest(sourceID, curation.ItemRecord{
		Address:     "https://example.com/article",
		Description: "now with a description",
		Transcript:  "full transcript text",
	})
	if err != nil {
		t.Fatal(err)
	}

	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Description != "now with a description" {
		t.Errorf("Expected description backfill, got '%s'", item.Description)
	}
	if item.Transcript != "full transcript text" {
		t.Errorf("Expected transcript backfill, got '%s'", item.Transcript)
	}

	// An empty fresh value never clobbers an existing one.
	_, _, err = repo.Ingest(sourceID, curation.ItemRecord{
		Address: "https://example.com/article",
	})
	if err != nil {
		t.Fatal(err)
	}

	item, err = repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Description != "now with a description" {
		t.Errorf("Expected description to survive empty re-ingest, got '%s'", item.Description)
	}
}

func TestItemRepositoryIngestUnknownSource(t *testing.T) {
	db := setupTestDB(t)
	repo := NewItemRepository(db)

	_, _, err := repo.Ingest(999, curation.ItemRecord{
		Address: "https://example.com/article",
	})
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got: %v", err)
	}
}

func TestItemRepositoryIngestConcurrent(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.Ingest(sourceID, curation.ItemRecord{
				Title:   "Same Item",
				Address: "https://example.com/contested",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Expected concurrent ingest to succeed, got: %v", err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM content_items").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected concurrent ingests to converge on 1 row, got %d", count)
	}
}

func TestItemRepositoryApplyRating(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)
	id := ingestTestItem(t, db, sourceID, "https://example.com/article", nil)

	if err := repo.ApplyRating(id, curation.TierS, "exceptional depth"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Rating != curation.TierS {
		t.Errorf("Expected rating S, got '%s'", item.Rating)
	}
	if item.RatingReasoning != "exceptional depth" {
		t.Errorf("Expected reasoning to be stored, got '%s'", item.RatingReasoning)
	}
	if item.RatedAt == nil {
		t.Error("Expected rated_at to be set")
	}

	// Re-rating overwrites; a repeat with identical arguments is a no-op in
	// effect.
	if err := repo.ApplyRating(id, curation.TierB, "on reflection, average"); err != nil {
		t.Fatal(err)
	}
	item, err = repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Rating != curation.TierB {
		t.Errorf("Expected rating B after re-rate, got '%s'", item.Rating)
	}
}

func TestItemRepositoryApplyRatingInvalidTier(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)
	id := ingestTestItem(t, db, sourceID, "https://example.com/article", nil)

	err := repo.ApplyRating(id, curation.Tier("Z"), "")
	if !errors.Is(err, ErrInvalidTier) {
		t.Errorf("Expected ErrInvalidTier, got: %v", err)
	}

	// The invalid call must not have touched the item.
	item, err := repo.GetItem(id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Rated() {
		t.Error("Expected item to remain unrated after invalid tier")
	}
}

func TestItemRepositoryApplyRatingUnknownItem(t *testing.T) {
	db := setupTestDB(t)
	repo := NewItemRepository(db)

	err := repo.ApplyRating(999, curation.TierC, "")
	if !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem, got: %v", err)
	}
}

func TestItemRepositoryGetUnratedItems(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)

	first := ingestTestItem(t, db, sourceID, "https://example.com/one", nil)
	second := ingestTestItem(t, db, sourceID, "https://example.com/two", nil)

	if err := repo.ApplyRating(first, curation.TierA, ""); err != nil {
		t.Fatal(err)
	}

	unrated, err := repo.GetUnratedItems(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unrated) != 1 {
		t.Fatalf("Expected 1 unrated item, got %d", len(unrated))
	}
	if unrated[0].ID != second {
		t.Errorf("Expected item %d, got %d", second, unrated[0].ID)
	}
}

func TestItemRepositoryTranscriptLifecycle(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	repo := NewItemRepository(db)
	id := ingestTestItem(t, db, sourceID, "https://example.com/article", nil)

	pending, err := repo.GetItemsForExtraction(sourceID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 item pending extraction, got %d", len(pending))
	}

	if err := repo.UpdateTranscript(id, "extracted text"); err != nil {
		t.Fatal(err)
	}

	pending, err = repo.GetItemsForExtraction(sourceID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no items pending after transcript update, got %d", len(pending))
	}

	// Failed extractions drop out of the pending set too.
	failedID := ingestTestItem(t, db, sourceID, "https://example.com/broken", nil)
	if err := repo.MarkExtractionFailed(failedID); err != nil {
		t.Fatal(err)
	}
	pending, err = repo.GetItemsForExtraction(sourceID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected failed item to be excluded, got %d pending", len(pending))
	}
}

func TestItemRepositoryGetStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewItemRepository(db)

	// Empty store reports zeroes, not an error.
	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("Expected no error on empty store, got: %v", err)
	}
	if stats.TotalItems != 0 || stats.RatedItems != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}

	sourceID := registerTestSource(t, db, "https://example.com/feed")
	a := ingestTestItem(t, db, sourceID, "https://example.com/a", nil)
	b := ingestTestItem(t, db, sourceID, "https://example.com/b", nil)
	ingestTestItem(t, db, sourceID, "https://example.com/c", nil)

	if err := repo.ApplyRating(a, curation.TierS, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.ApplyRating(b, curation.TierC, ""); err != nil {
		t.Fatal(err)
	}

	stats, err = repo.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 {
		t.Errorf("Expected 3 total items, got %d", stats.TotalItems)
	}
	if stats.RatedItems != 2 {
		t.Errorf("Expected 2 rated items, got %d", stats.RatedItems)
	}
	if stats.UnpublishedTopTier != 1 {
		t.Errorf("Expected 1 unpublished top-tier item, got %d", stats.UnpublishedTopTier)
	}
	if stats.ByRating[curation.TierS] != 1 || stats.ByRating[curation.TierC] != 1 {
		t.Errorf("Expected rating breakdown {S:1 C:1}, got %v", stats.ByRating)
	}
}
