// Package history keeps a SQLite audit log of revision attempts: what was
// asked, whether it succeeded, and which field names each turn added or
// removed. The log exists so silent field drops can be reviewed after the
// fact; the current form itself is never persisted.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded revision attempt.
type Entry struct {
	ID          int64
	SessionID   string
	Instruction string
	// Status is "ok" or "<stage>_error".
	Status    string
	Message   string
	Added     []string
	Removed   []string
	CreatedAt time.Time
}

// Store is a SQLite-backed revision audit log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (creating if needed) the audit database at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS revisions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT NOT NULL,
			instruction  TEXT NOT NULL,
			status       TEXT NOT NULL,
			message      TEXT,
			added        TEXT,
			removed      TEXT,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_revisions_session ON revisions(session_id);
		CREATE INDEX IF NOT EXISTS idx_revisions_created ON revisions(created_at);
	`)
	return err
}

// Record appends one entry to the log.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO revisions (session_id, instruction, status, message, added, removed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.Instruction, e.Status, e.Message,
		toJSON(e.Added), toJSON(e.Removed), time.Now().Format(time.RFC3339))
	return err
}

// Recent returns up to limit entries for a session, newest first.
func (s *Store) Recent(sessionID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, instruction, status, message, added, removed, created_at
		FROM revisions
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns how
// many were removed.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM revisions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var added, removed, createdAt string
	if err := row.Scan(&e.ID, &e.SessionID, &e.Instruction, &e.Status,
		&e.Message, &added, &removed, &createdAt); err != nil {
		return Entry{}, err
	}
	fromJSON(added, &e.Added)
	fromJSON(removed, &e.Removed)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}

func toJSON(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func fromJSON(data string, v *[]string) {
	if data == "" || data == "[]" || data == "null" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
