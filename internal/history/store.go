// Package history persists submitted queries across sessions. Every
// submission is recorded, successful or not; the in-memory session history
// is seeded from the most recent entries at startup.
package history

import (
	"database/sql"
	_ "embed"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is a single submitted query.
type Entry struct {
	ID           int
	DatabaseName string
	Query        string
	SubmittedAt  time.Time
	Duration     time.Duration
}

// Store manages query history persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the history database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Add records a submitted query.
func (s *Store) Add(entry Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO query_history (database_name, query, duration_ms)
		VALUES (?, ?, ?)`,
		entry.DatabaseName,
		entry.Query,
		entry.Duration.Milliseconds(),
	)
	return err
}

// GetRecent returns the most recent entries, newest first.
func (s *Store) GetRecent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, database_name, query, submitted_at, duration_ms
		FROM query_history
		ORDER BY submitted_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		var submittedAt string

		if err := rows.Scan(&e.ID, &e.DatabaseName, &e.Query, &submittedAt, &durationMs); err != nil {
			return nil, err
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.SubmittedAt, _ = time.Parse("2006-01-02 15:04:05", submittedAt)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
