package database

import (
	"testing"
	"time"

	"github.com/curatehq/curator/app/curation"
)

func TestDigestCompileWindow(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	itemRepo := NewItemRepository(db)
	repo := NewDigestRepository(db)

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

	// A B-tier item published earlier and an S-tier item published later:
	// tier rank dominates the ordering, so S comes first.
	bItem := ingestTestItem(t, db, sourceID, "https://example.com/b-item",
		timePtr(time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)))
	sItem := ingestTestItem(t, db, sourceID, "https://example.com/s-item",
		timePtr(time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)))
	unrated := ingestTestItem(t, db, sourceID, "https://example.com/unrated",
		timePtr(time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)))
	_ = unrated

	if err := itemRepo.ApplyRating(bItem, curation.TierB, ""); err != nil {
		t.Fatal(err)
	}
	if err := itemRepo.ApplyRating(sItem, curation.TierS, ""); err != nil {
		t.Fatal(err)
	}

	digest, items, err := repo.CompileWindow(windowStart, windowEnd, "digests/test.md")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if digest == nil {
		t.Fatal("Expected a digest to be created")
	}
	if digest.ItemCount != 2 {
		t.Errorf("Expected item count 2, got %d", digest.ItemCount)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 selected items, got %d", len(items))
	}
	if items[0].ID != sItem || items[1].ID != bItem {
		t.Errorf("Expected selection order [%d %d], got [%d %d]",
			sItem, bItem, items[0].ID, items[1].ID)
	}
	if digest.OutputLocation != "digests/test.md" {
		t.Errorf("Expected output location to be stored, got '%s'", digest.OutputLocation)
	}
	if digest.TierCounts.Total() != digest.ItemCount {
		t.Errorf("Expected tier counts to sum to item count, got %d vs %d",
			digest.TierCounts.Total(), digest.ItemCount)
	}
	if digest.TierCounts[curation.TierS] != 1 || digest.TierCounts[curation.TierB] != 1 {
		t.Errorf("Expected tier counts {S:1 B:1}, got %v", digest.TierCounts)
	}

	// Selected items carry their publication marks in the returned slice and
	// in the store.
	for _, item := range items {
		if !item.Published {
			t.Errorf("Expected item %d to be marked published", item.ID)
		}
		if item.DigestID == nil || *item.DigestID != digest.ID {
			t.Errorf("Expected item %d to reference digest %d", item.ID, digest.ID)
		}
	}
	stored, err := itemRepo.GetItem(sItem)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Published {
		t.Error("Expected publication mark to be persisted")
	}
}

func TestDigestCompileWindowEmptyWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDigestRepository(db)

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

	digest, items, err := repo.CompileWindow(windowStart, windowEnd, "digests/empty.md")
	if err != nil {
		t.Fatalf("Expected no error for empty window, got: %v", err)
	}
	if digest != nil || items != nil {
		t.Error("Expected no digest for an empty window")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM digests").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected no digest rows, got %d", count)
	}
}

func TestDigestCompileWindowInvalidWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDigestRepository(db)

	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, 7)

	_, _, err := repo.CompileWindow(start, end, "digests/bad.md")
	if err == nil {
		t.Error("Expected error for inverted window, got none")
	}
}

func TestDigestCompileWindowNoReselection(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	itemRepo := NewItemRepository(db)
	repo := NewDigestRepository(db)

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

	id := ingestTestItem(t, db, sourceID, "https://example.com/item",
		timePtr(time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)))
	if err := itemRepo.ApplyRating(id, curation.TierA, ""); err != nil {
		t.Fatal(err)
	}

	first, _, err := repo.CompileWindow(windowStart, windowEnd, "digests/first.md")
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("Expected first compilation to create a digest")
	}

	// An overlapping second compilation finds nothing; published items are
	// never re-selected.
	second, _, err := repo.CompileWindow(windowStart, windowEnd, "digests/second.md")
	if err != nil {
		t.Fatalf("Expected overlapping compilation to succeed, got: %v", err)
	}
	if second != nil {
		t.Error("Expected no second digest for already-published items")
	}
}

func TestDigestCompileWindowFetchedAtFallback(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	itemRepo := NewItemRepository(db)
	repo := NewDigestRepository(db)

	// No published date: the fetch time stands in as the effective date, so
	// a window around now selects the item.
	id := ingestTestItem(t, db, sourceID, "https://example.com/undated", nil)
	if err := itemRepo.ApplyRating(id, curation.TierC, ""); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	digest, items, err := repo.CompileWindow(now.Add(-time.Hour), now.Add(time.Hour), "digests/fallback.md")
	if err != nil {
		t.Fatal(err)
	}
	if digest == nil || len(items) != 1 {
		t.Fatal("Expected undated item to be selected via fetch time")
	}

	// And a window entirely in the past excludes it.
	old, _, err := repo.CompileWindow(now.AddDate(0, 0, -14), now.AddDate(0, 0, -7), "digests/old.md")
	if err != nil {
		t.Fatal(err)
	}
	if old != nil {
		t.Error("Expected no digest outside the item's effective date")
	}
}

func TestDigestGetDigest(t *testing.T) {
	db := setupTestDB(t)
	sourceID := registerTestSource(t, db, "https://example.com/feed")
	itemRepo := NewItemRepository(db)
	repo := NewDigestRepository(db)

	if latest, err := repo.GetLatestDigest(); err != nil || latest != nil {
		t.Errorf("Expected no latest digest on empty store, got %v, %v", latest, err)
	}

	id := ingestTestItem(t, db, sourceID, "https://example.com/item",
		timePtr(time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)))
	if err := itemRepo.ApplyRating(id, curation.TierS, ""); err != nil {
		t.Fatal(err)
	}

	created, _, err := repo.CompileWindow(
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC),
		"digests/one.md")
	if err != nil {
		t.Fatal(err)
	}

	fetched, err := repo.GetDigest(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched == nil {
		t.Fatal("Expected digest to be returned, got nil")
	}
	if fetched.ItemCount != 1 {
		t.Errorf("Expected item count 1, got %d", fetched.ItemCount)
	}
	if fetched.TierCounts[curation.TierS] != 1 {
		t.Errorf("Expected tier counts to decode from storage, got %v", fetched.TierCounts)
	}

	latest, err := repo.GetLatestDigest()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != created.ID {
		t.Error("Expected latest digest to match the created one")
	}

	missing, err := repo.GetDigest(999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown digest id")
	}

	members, err := itemRepo.GetItemsByDigest(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].ID != id {
		t.Error("Expected digest membership query to return the selected item")
	}
}
