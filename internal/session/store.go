package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentgate/internal/logging"
)

// DefaultSessionID is used when the caller supplies no session id; it maps
// to the single shared tracker document.
const DefaultSessionID = "session-agents"

// Store abstracts tracker persistence so the scorer and evaluator never
// touch the filesystem directly. Load must never fail on a missing
// document: a fresh default-initialized tracker is the correct result for
// the first call of a new session.
type Store interface {
	Load(sessionID string) (*Tracker, error)
	Save(sessionID string, t *Tracker) error
}

// FileStore is the default backend: one JSON document per session under
// <workspace>/.agentgate/memory/. Writes go through a temp file and rename
// so a crashed writer never leaves a torn document; concurrent writers
// still race with last-writer-wins semantics, which callers accept.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at the workspace.
func NewFileStore(workspace string) *FileStore {
	return &FileStore{dir: filepath.Join(workspace, ".agentgate", "memory")}
}

// Load implements Store.
func (fs *FileStore) Load(sessionID string) (*Tracker, error) {
	path := fs.path(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		// Missing state is "first call of a new session", not an error.
		logging.SessionDebug("No tracker at %s, starting fresh", path)
		return NewTracker(sessionID), nil
	}

	var t Tracker
	if err := json.Unmarshal(data, &t); err != nil {
		// A corrupt document is treated like a missing one; keeping the
		// session usable matters more than preserving broken state.
		logging.Get(logging.CategorySession).Warn("Corrupt tracker at %s: %v (resetting)", path, err)
		return NewTracker(sessionID), nil
	}

	if t.SessionID == "" {
		t.SessionID = sessionID
	}
	normalize(&t)
	return &t, nil
}

// Save implements Store.
func (fs *FileStore) Save(sessionID string, t *Tracker) error {
	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracker: %w", err)
	}

	path := fs.path(sessionID)
	tmp, err := os.CreateTemp(fs.dir, ".tracker-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp tracker: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write tracker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close tracker: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace tracker: %w", err)
	}

	logging.SessionDebug("Saved tracker %s (%d bytes)", path, len(data))
	return nil
}

func (fs *FileStore) path(sessionID string) string {
	return filepath.Join(fs.dir, sanitizeID(sessionID)+".json")
}

// sanitizeID keeps session ids filesystem-safe.
func sanitizeID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	var b strings.Builder
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return DefaultSessionID
	}
	return b.String()
}

// normalize repairs nil collections after unmarshaling partial documents.
func normalize(t *Tracker) {
	if t.InvokedAgents == nil {
		t.InvokedAgents = []Invocation{}
	}
	if t.Enforcement.RulesTriggered == nil {
		t.Enforcement.RulesTriggered = []string{}
	}
	if t.Enforcement.AgentsRequired == nil {
		t.Enforcement.AgentsRequired = []string{}
	}
	if t.Enforcement.AgentsSatisfied == nil {
		t.Enforcement.AgentsSatisfied = []string{}
	}
	if t.Enforcement.PendingRequirements == nil {
		t.Enforcement.PendingRequirements = []PendingRequirement{}
	}
}
