package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"agentgate/internal/logging"
)

// SQLiteStore persists trackers in a user-local SQLite database, one row
// per session. Deployments running many concurrent sessions prefer this
// over a directory of JSON files; the observable semantics are identical
// (load-mutate-save, last-writer-wins per session).
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewSQLiteStore creates or opens the tracker database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategorySession, "NewSQLiteStore")
	defer timer.Stop()

	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.SessionDebug("SQLite tracker store ready at %s", dbPath)
	return store, nil
}

// initialize creates the required table.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_trackers (
		session_id TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load implements Store. A missing row is a new session, not an error.
func (s *SQLiteStore) Load(sessionID string) (*Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := sanitizeID(sessionID)
	var doc string
	err := s.db.QueryRow(
		"SELECT document FROM session_trackers WHERE session_id = ?", id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		logging.SessionDebug("No tracker row for %s, starting fresh", id)
		return NewTracker(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker: %w", err)
	}

	var t Tracker
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		logging.Get(logging.CategorySession).Warn("Corrupt tracker row for %s: %v (resetting)", id, err)
		return NewTracker(sessionID), nil
	}
	if t.SessionID == "" {
		t.SessionID = sessionID
	}
	normalize(&t)
	return &t, nil
}

// Save implements Store with an upsert.
func (s *SQLiteStore) Save(sessionID string, t *Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tracker: %w", err)
	}

	id := sanitizeID(sessionID)
	_, err = s.db.Exec(
		`INSERT INTO session_trackers (session_id, document, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		id, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tracker: %w", err)
	}

	logging.SessionDebug("Saved tracker row %s (%d bytes)", id, len(data))
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
