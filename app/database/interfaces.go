package database

import (
	"time"

	"github.com/curatehq/curator/app/curation"
)

// SourceRepository tracks monitored sources and their fetch checkpoints.
type SourceRepository interface {
	Register(name string, kind curation.SourceKind, address string) (int64, error)
	SetEnabled(id int64, enabled bool) error
	RecordFetchCheckpoint(id int64, at time.Time) error
	ListEnabled() ([]Source, error)
	ListAll() ([]Source, error)
	GetSource(id int64) (*Source, error)
	GetSourceByAddress(address string) (*Source, error)
	GetSourceCount() (int, error)
}

// ItemRepository is the deduplicating content ledger plus the rating
// lifecycle writer.
type ItemRepository interface {
	Ingest(sourceID int64, record curation.ItemRecord) (int64, bool, error)
	ApplyRating(itemID int64, tier curation.Tier, reasoning string) error

	GetItem(id int64) (*Item, error)
	GetItemByAddress(address string) (*Item, error)
	GetUnratedItems(limit int) ([]Item, error)
	GetItemsByDigest(digestID int64) ([]Item, error)

	GetItemsForExtraction(sourceID int64, limit int) ([]Item, error)
	UpdateTranscript(itemID int64, transcript string) error
	MarkExtractionFailed(itemID int64) error

	GetStats() (*Stats, error)
}

// FetchLogRepository is the append-only fetch audit trail.
type FetchLogRepository interface {
	Begin(sourceID int64) (int64, error)
	Complete(handle int64, itemsFetched int, fetchErr error) error
	History(sourceID int64, limit int) ([]FetchLogEntry, error)
	OpenEntries(olderThan time.Time) ([]FetchLogEntry, error)
}

// DigestRepository compiles digests. CompileWindow runs the whole
// selection-then-mark sequence in a single transaction.
type DigestRepository interface {
	CompileWindow(windowStart, windowEnd time.Time, outputLocation string) (*Digest, []Item, error)
	GetDigest(id int64) (*Digest, error)
	GetLatestDigest() (*Digest, error)
}

// Stats is the aggregate view served by the stats endpoint.
type Stats struct {
	TotalItems         int
	RatedItems         int
	ByRating           curation.TierCounts
	UnpublishedTopTier int
}
