package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/curatehq/curator/app/curation"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

// Register creates a new monitored source. The address is globally unique;
// registering one that already exists is a real conflict, unlike ingestion.
func (r *sourceRepository) Register(name string, kind curation.SourceKind, address string) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid source kind %q", kind)
	}

	result, err := r.db.Exec(`
		INSERT INTO sources (name, kind, address, enabled, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, name, string(kind), address, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("source %q: %w", address, ErrDuplicateAddress)
		}
		return 0, fmt.Errorf("failed to register source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get source id: %w", err)
	}

	return id, nil
}

func (r *sourceRepository) SetEnabled(id int64, enabled bool) error {
	result, err := r.db.Exec(`
		UPDATE sources SET enabled = ? WHERE id = ?
	`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set source enabled status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrUnknownSource)
	}

	return nil
}

// RecordFetchCheckpoint advances the polling checkpoint after a fetch pass.
func (r *sourceRepository) RecordFetchCheckpoint(id int64, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE sources SET last_fetch_at = ? WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record fetch checkpoint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrUnknownSource)
	}

	return nil
}

func (r *sourceRepository) ListEnabled() ([]Source, error) {
	return r.list(`
		SELECT id, name, kind, address, enabled, last_fetch_at, created_at
		FROM sources
		WHERE enabled = 1
	`)
}

func (r *sourceRepository) ListAll() ([]Source, error) {
	return r.list(`
		SELECT id, name, kind, address, enabled, last_fetch_at, created_at
		FROM sources
	`)
}

func (r *sourceRepository) list(query string) ([]Source, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) GetSource(id int64) (*Source, error) {
	return r.get(`
		SELECT id, name, kind, address, enabled, last_fetch_at, created_at
		FROM sources
		WHERE id = ?
	`, id)
}

func (r *sourceRepository) GetSourceByAddress(address string) (*Source, error) {
	return r.get(`
		SELECT id, name, kind, address, enabled, last_fetch_at, created_at
		FROM sources
		WHERE address = ?
	`, address)
}

func (r *sourceRepository) get(query string, arg interface{}) (*Source, error) {
	source, err := scanSource(r.db.QueryRow(query, arg).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *sourceRepository) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func scanSource(scan func(dest ...interface{}) error) (*Source, error) {
	var source Source
	var kind string
	var lastFetchAt sql.NullTime

	err := scan(&source.ID, &source.Name, &kind, &source.Address,
		&source.Enabled, &lastFetchAt, &source.CreatedAt)
	if err != nil {
		return nil, err
	}

	source.Kind = curation.SourceKind(kind)
	if lastFetchAt.Valid {
		t := lastFetchAt.Time
		source.LastFetchAt = &t
	}

	return &source, nil
}
