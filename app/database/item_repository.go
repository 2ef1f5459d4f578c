package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/curatehq/curator/app/curation"
)

var _ ItemRepository = (*itemRepository)(nil)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `
	id, source_id, address, title, description, transcript,
	published_date, duration_minutes, rating, rating_reasoning, rated_at,
	published_flag, digest_id, fetched_at
`

// Ingest inserts a record keyed by its canonical address. When a row with
// that address already exists the call is a no-op success: rating and
// publication columns are never touched, only empty volatile fields
// (description, transcript) are backfilled from the fresh record. Returns
// the row id and whether the row was newly created. Concurrent calls with
// the same address converge on one row via the UNIQUE(address) constraint.
func (r *itemRepository) Ingest(sourceID int64, record curation.ItemRecord) (int64, bool, error) {
	address, err := curation.CanonicalizeAddress(record.Address)
	if err != nil {
		return 0, false, fmt.Errorf("failed to canonicalize address: %w", err)
	}

	var publishedDate interface{}
	if record.PublishedDate != nil {
		publishedDate = record.PublishedDate.UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO content_items (
			source_id, address, title, description, transcript,
			published_date, duration_minutes, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, sourceID, address, record.Title, record.Description, record.Transcript,
		publishedDate, record.DurationMinutes, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, false, fmt.Errorf("source %d: %w", sourceID, ErrUnknownSource)
		}
		return 0, false, fmt.Errorf("failed to ingest item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected > 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("failed to get item id: %w", err)
		}
		return id, true, nil
	}

	// Duplicate address: backfill volatile fields only, then report the
	// existing row. Fresh non-empty values win.
	_, err = r.db.Exec(`
		UPDATE content_items
		SET description = COALESCE(NULLIF(?, ''), description),
		    transcript = COALESCE(NULLIF(?, ''), transcript)
		WHERE address = ?
	`, record.Description, record.Transcript, address)
	if err != nil {
		return 0, false, fmt.Errorf("failed to backfill item: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM content_items WHERE address = ?`, address).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve existing item: %w", err)
	}

	return id, false, nil
}

// ApplyRating moves an item from Unrated to Rated. It is the only writer of
// rating columns; re-invoking it re-rates the item and a duplicate call with
// identical arguments leaves the same end state.
func (r *itemRepository) ApplyRating(itemID int64, tier curation.Tier, reasoning string) error {
	if !tier.Valid() {
		return fmt.Errorf("tier %q: %w", tier, ErrInvalidTier)
	}

	result, err := r.db.Exec(`
		UPDATE content_items
		SET rating = ?, rating_reasoning = ?, rated_at = ?
		WHERE id = ?
	`, string(tier), reasoning, time.Now().UTC(), itemID)
	if err != nil {
		return fmt.Errorf("failed to apply rating: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}

	return nil
}

func (r *itemRepository) GetItem(id int64) (*Item, error) {
	item, err := scanItem(r.db.QueryRow(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE id = ?
	`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetItemByAddress(address string) (*Item, error) {
	canonical, err := curation.CanonicalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize address: %w", err)
	}

	item, err := scanItem(r.db.QueryRow(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE address = ?
	`, canonical).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by address: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetUnratedItems(limit int) ([]Item, error) {
	return r.query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE rating IS NULL
		ORDER BY fetched_at DESC
		LIMIT ?
	`, limit)
}

func (r *itemRepository) GetItemsByDigest(digestID int64) ([]Item, error) {
	return r.query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE digest_id = ?
		ORDER BY
			CASE rating WHEN 'S' THEN 0 WHEN 'A' THEN 1 WHEN 'B' THEN 2 WHEN 'C' THEN 3 ELSE 4 END,
			COALESCE(published_date, fetched_at) DESC,
			id ASC
	`, digestID)
}

// GetItemsForExtraction returns items still waiting for a transcript
// backfill: no transcript yet and extraction not already failed.
func (r *itemRepository) GetItemsForExtraction(sourceID int64, limit int) ([]Item, error) {
	return r.query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE source_id = ?
		  AND transcript = ''
		  AND transcript_status = 'pending'
		ORDER BY fetched_at DESC
		LIMIT ?
	`, sourceID, limit)
}

func (r *itemRepository) UpdateTranscript(itemID int64, transcript string) error {
	result, err := r.db.Exec(`
		UPDATE content_items
		SET transcript = ?, transcript_status = 'success'
		WHERE id = ?
	`, transcript, itemID)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}

	return nil
}

func (r *itemRepository) MarkExtractionFailed(itemID int64) error {
	_, err := r.db.Exec(`
		UPDATE content_items
		SET transcript_status = 'failed'
		WHERE id = ?
	`, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark extraction failed: %w", err)
	}
	return nil
}

func (r *itemRepository) GetStats() (*Stats, error) {
	stats := &Stats{ByRating: curation.TierCounts{}}

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN rating IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN rating IN ('S', 'A') AND published_flag = 0 THEN 1 ELSE 0 END), 0)
		FROM content_items
	`).Scan(&stats.TotalItems, &stats.RatedItems, &stats.UnpublishedTopTier)
	if err != nil {
		return nil, fmt.Errorf("failed to get item stats: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT rating, COUNT(*)
		FROM content_items
		WHERE rating IS NOT NULL
		GROUP BY rating
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		stats.ByRating[curation.Tier(tier)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating rows: %w", err)
	}

	return stats, nil
}

func (r *itemRepository) query(query string, args ...interface{}) ([]Item, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func scanItem(scan func(dest ...interface{}) error) (*Item, error) {
	var item Item
	var publishedDate, ratedAt sql.NullTime
	var rating sql.NullString
	var digestID sql.NullInt64

	err := scan(&item.ID, &item.SourceID, &item.Address, &item.Title,
		&item.Description, &item.Transcript, &publishedDate,
		&item.DurationMinutes, &rating, &item.RatingReasoning, &ratedAt,
		&item.Published, &digestID, &item.FetchedAt)
	if err != nil {
		return nil, err
	}

	if publishedDate.Valid {
		t := publishedDate.Time
		item.PublishedDate = &t
	}
	if rating.Valid {
		item.Rating = curation.Tier(rating.String)
	}
	if ratedAt.Valid {
		t := ratedAt.Time
		item.RatedAt = &t
	}
	if digestID.Valid {
		id := digestID.Int64
		item.DigestID = &id
	}

	return &item, nil
}
