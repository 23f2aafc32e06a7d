package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGo-free sqlite driver
)

// Transcription is one completed dictation kept in history.
type Transcription struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	DurationMS int64     `json:"durationMs"`
	Model      string    `json:"model"`
	Text       string    `json:"text"`
}

// HistoryService persists finished transcriptions in a local SQLite file.
type HistoryService struct {
	db *sql.DB
}

// NewHistoryService opens (creating if needed) the history database at the
// standard path.
func NewHistoryService() (*HistoryService, error) {
	return newHistoryServiceAt(filepath.Join(appDir(), "history.db"))
}

// newHistoryServiceAt opens a history database at path (tests use a temp dir).
func newHistoryServiceAt(path string) (*HistoryService, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// sqlite tolerates one writer; serialize all access through one conn.
	db.SetMaxOpenConns(1)

	s := &HistoryService{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryService) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS transcriptions (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	model       TEXT NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at
	ON transcriptions(created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Insert stores one finished transcription and returns its id.
func (s *HistoryService) Insert(text, model string, duration time.Duration) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO transcriptions (id, created_at, duration_ms, model, text)
		 VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), duration.Milliseconds(), model, text,
	)
	if err != nil {
		return "", fmt.Errorf("history: insert: %w", err)
	}
	return id, nil
}

// Recent returns up to limit transcriptions, newest first.
func (s *HistoryService) Recent(limit int) ([]Transcription, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, duration_ms, model, text
		 FROM transcriptions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Transcription
	for rows.Next() {
		var t Transcription
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.DurationMS, &t.Model, &t.Text); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes one entry by id. Unknown ids are a no-op.
func (s *HistoryService) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM transcriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("history: delete: %w", err)
	}
	return nil
}

// Clear removes all history entries.
func (s *HistoryService) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM transcriptions`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *HistoryService) Close() error {
	return s.db.Close()
}
