package curation

import (
	"fmt"
	"time"
)

// SourceKind identifies the platform class of a monitored source.
type SourceKind string

const (
	KindVideoChannel SourceKind = "video-channel"
	KindAudioFeed    SourceKind = "audio-feed"
	KindArticleFeed  SourceKind = "article-feed"
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindVideoChannel, KindAudioFeed, KindArticleFeed:
		return true
	}
	return false
}

// ParseSourceKind validates a raw source kind value.
func ParseSourceKind(value string) (SourceKind, error) {
	kind := SourceKind(value)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid source kind %q", value)
	}
	return kind, nil
}

// ItemRecord is one discovered unit of content as produced by a fetcher,
// before it is ingested into the ledger. Address is canonicalized during
// ingestion, not here.
type ItemRecord struct {
	Title           string
	Address         string
	Description     string
	Transcript      string
	PublishedDate   *time.Time
	DurationMinutes int
}
