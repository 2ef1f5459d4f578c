package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/curatehq/curator/app/curation"
)

var _ DigestRepository = (*digestRepository)(nil)

type digestRepository struct {
	db *DB
}

func NewDigestRepository(db *DB) DigestRepository {
	return &digestRepository{db: db}
}

// CompileWindow selects every rated, unpublished item whose effective date
// (published date, or fetched time when the source never reported one)
// falls inside the window, creates the digest row, and marks the selected
// items as published under it — all inside one transaction, so two
// concurrent compilers can never claim the same item.
//
// Selection order is a contract: tier rank best-first, effective date
// descending, item id ascending. Zero eligible items means no digest is
// created and (nil, nil, nil) is returned.
func (r *digestRepository) CompileWindow(windowStart, windowEnd time.Time, outputLocation string) (*Digest, []Item, error) {
	if windowEnd.Before(windowStart) {
		return nil, nil, fmt.Errorf("window end %s before window start %s",
			windowEnd.Format(time.RFC3339), windowStart.Format(time.RFC3339))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT `+itemColumns+`
		FROM content_items
		WHERE rating IS NOT NULL
		  AND published_flag = 0
		  AND COALESCE(published_date, fetched_at) >= ?
		  AND COALESCE(published_date, fetched_at) <= ?
		ORDER BY
			CASE rating WHEN 'S' THEN 0 WHEN 'A' THEN 1 WHEN 'B' THEN 2 WHEN 'C' THEN 3 ELSE 4 END,
			COALESCE(published_date, fetched_at) DESC,
			id ASC
	`, windowStart.UTC(), windowEnd.UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select eligible items: %w", err)
	}

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	rows.Close()

	if len(items) == 0 {
		return nil, nil, nil
	}

	tierCounts := curation.TierCounts{}
	for _, tier := range curation.Tiers {
		tierCounts[tier] = 0
	}
	for _, item := range items {
		tierCounts[item.Rating]++
	}

	countsJSON, err := json.Marshal(tierCounts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tier counts: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.Exec(`
		INSERT INTO digests (window_start, window_end, item_count, tier_counts, output_location, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, windowStart.UTC(), windowEnd.UTC(), len(items), string(countsJSON), outputLocation, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create digest: %w", err)
	}

	digestID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get digest id: %w", err)
	}

	ids := make([]interface{}, 0, len(items)+1)
	ids = append(ids, digestID)
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		placeholders = append(placeholders, "?")
	}

	markResult, err := tx.Exec(`
		UPDATE content_items
		SET published_flag = 1, digest_id = ?
		WHERE id IN (`+strings.Join(placeholders, ",")+`) AND published_flag = 0
	`, ids...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark items published: %w", err)
	}

	marked, err := markResult.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if marked != int64(len(items)) {
		return nil, nil, fmt.Errorf("publication race: marked %d of %d selected items", marked, len(items))
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit digest: %w", err)
	}

	digest := &Digest{
		ID:             digestID,
		WindowStart:    windowStart.UTC(),
		WindowEnd:      windowEnd.UTC(),
		ItemCount:      len(items),
		TierCounts:     tierCounts,
		OutputLocation: outputLocation,
		CreatedAt:      now,
	}

	for i := range items {
		items[i].Published = true
		id := digestID
		items[i].DigestID = &id
	}

	return digest, items, nil
}

func (r *digestRepository) GetDigest(id int64) (*Digest, error) {
	digest, err := scanDigest(r.db.QueryRow(`
		SELECT id, window_start, window_end, item_count, tier_counts, output_location, created_at
		FROM digests
		WHERE id = ?
	`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	return digest, nil
}

func (r *digestRepository) GetLatestDigest() (*Digest, error) {
	digest, err := scanDigest(r.db.QueryRow(`
		SELECT id, window_start, window_end, item_count, tier_counts, output_location, created_at
		FROM digests
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest digest: %w", err)
	}
	return digest, nil
}

func scanDigest(scan func(dest ...interface{}) error) (*Digest, error) {
	var digest Digest
	var countsJSON string

	err := scan(&digest.ID, &digest.WindowStart, &digest.WindowEnd,
		&digest.ItemCount, &countsJSON, &digest.OutputLocation, &digest.CreatedAt)
	if err != nil {
		return nil, err
	}

	digest.TierCounts = curation.TierCounts{}
	if err := json.Unmarshal([]byte(countsJSON), &digest.TierCounts); err != nil {
		return nil, fmt.Errorf("failed to decode tier counts: %w", err)
	}

	return &digest, nil
}
