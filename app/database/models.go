package database

import (
	"time"

	"github.com/curatehq/curator/app/curation"
)

// Source is a monitored content origin. Sources are soft-disabled, never
// deleted, so items and fetch log entries keep a valid back-reference.
type Source struct {
	ID          int64
	Name        string
	Kind        curation.SourceKind
	Address     string
	Enabled     bool
	LastFetchAt *time.Time
	CreatedAt   time.Time
}

// Item is one discovered unit of content. Address holds the canonical form
// and is the sole deduplication key. Rating is empty until the oracle rates
// the item; DigestID is set exactly once, together with Published.
type Item struct {
	ID              int64
	SourceID        int64
	Address         string
	Title           string
	Description     string
	Transcript      string
	PublishedDate   *time.Time
	DurationMinutes int
	Rating          curation.Tier
	RatingReasoning string
	RatedAt         *time.Time
	Published       bool
	DigestID        *int64
	FetchedAt       time.Time
}

// Rated reports whether the rating oracle has processed this item.
func (i Item) Rated() bool {
	return i.Rating != ""
}

// Digest is a compiled output batch. Immutable once created.
type Digest struct {
	ID             int64
	WindowStart    time.Time
	WindowEnd      time.Time
	ItemCount      int
	TierCounts     curation.TierCounts
	OutputLocation string
	CreatedAt      time.Time
}

// FetchLogEntry is one audited fetch attempt. Success and CompletedAt stay
// nil while the attempt is still open.
type FetchLogEntry struct {
	ID           int64
	SourceID     int64
	ItemsFetched int
	Success      *bool
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Completed reports whether the attempt has had its outcome recorded.
func (e FetchLogEntry) Completed() bool {
	return e.CompletedAt != nil
}
