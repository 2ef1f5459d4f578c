package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/curatehq/curator/app/curation"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	raw, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	raw.SetMaxOpenConns(1)

	db := &DB{DB: raw}
	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func registerTestSource(t *testing.T, db *DB, address string) int64 {
	t.Helper()

	id, err := NewSourceRepository(db).Register("Test Source", curation.KindArticleFeed, address)
	if err != nil {
		t.Fatalf("register source: %v", err)
	}
	return id
}

func ingestTestItem(t *testing.T, db *DB, sourceID int64, address string, publishedDate *time.Time) int64 {
	t.Helper()

	id, created, err := NewItemRepository(db).Ingest(sourceID, curation.ItemRecord{
		Title:         "Test Item",
		Address:       address,
		PublishedDate: publishedDate,
	})
	if err != nil {
		t.Fatalf("ingest item: %v", err)
	}
	if !created {
		t.Fatalf("Expected item %s to be newly created", address)
	}
	return id
}

func timePtr(t time.Time) *time.Time {
	return &t
}
