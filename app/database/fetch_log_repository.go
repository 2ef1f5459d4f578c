package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ FetchLogRepository = (*fetchLogRepository)(nil)

type fetchLogRepository struct {
	db *DB
}

func NewFetchLogRepository(db *DB) FetchLogRepository {
	return &fetchLogRepository{db: db}
}

// Begin opens a fetch attempt entry and returns its handle. Complete must be
// called exactly once per handle; entries left open past a timeout are the
// orchestrator's signal of a crashed fetcher (see OpenEntries).
func (r *fetchLogRepository) Begin(sourceID int64) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO fetch_logs (source_id, started_at)
		VALUES (?, ?)
	`, sourceID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("source %d: %w", sourceID, ErrUnknownSource)
		}
		return 0, fmt.Errorf("failed to begin fetch log entry: %w", err)
	}

	handle, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get fetch log handle: %w", err)
	}

	return handle, nil
}

// Complete records the attempt outcome. Success is the absence of an error.
// A completed entry is never mutated again; completing a handle twice is
// rejected.
func (r *fetchLogRepository) Complete(handle int64, itemsFetched int, fetchErr error) error {
	success := fetchErr == nil
	var errorMessage interface{}
	if fetchErr != nil {
		errorMessage = fetchErr.Error()
	}

	result, err := r.db.Exec(`
		UPDATE fetch_logs
		SET items_fetched = ?, success = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND completed_at IS NULL
	`, itemsFetched, success, errorMessage, time.Now().UTC(), handle)
	if err != nil {
		return fmt.Errorf("failed to complete fetch log entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fetch log entry %d not found or already completed", handle)
	}

	return nil
}

// History returns the most recent attempts for a source, newest first.
func (r *fetchLogRepository) History(sourceID int64, limit int) ([]FetchLogEntry, error) {
	return r.query(`
		SELECT id, source_id, items_fetched, success, error_message, started_at, completed_at
		FROM fetch_logs
		WHERE source_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, sourceID, limit)
}

// OpenEntries returns attempts begun before the cutoff that were never
// completed. The timeout policy itself belongs to the orchestrator.
func (r *fetchLogRepository) OpenEntries(olderThan time.Time) ([]FetchLogEntry, error) {
	return r.query(`
		SELECT id, source_id, items_fetched, success, error_message, started_at, completed_at
		FROM fetch_logs
		WHERE completed_at IS NULL AND started_at < ?
		ORDER BY started_at ASC
	`, olderThan.UTC())
}

func (r *fetchLogRepository) query(query string, args ...interface{}) ([]FetchLogEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	var entries []FetchLogEntry
	for rows.Next() {
		entry, err := scanFetchLogEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch log row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch log rows: %w", err)
	}

	return entries, nil
}

func scanFetchLogEntry(scan func(dest ...interface{}) error) (*FetchLogEntry, error) {
	var entry FetchLogEntry
	var success sql.NullBool
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := scan(&entry.ID, &entry.SourceID, &entry.ItemsFetched,
		&success, &errorMessage, &entry.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if success.Valid {
		v := success.Bool
		entry.Success = &v
	}
	entry.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		entry.CompletedAt = &t
	}

	return &entry, nil
}
