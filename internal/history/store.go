package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// Store persists conversation histories as flat JSON files under a root
// directory, one file per session id: a mutex-guarded directory of JSON
// files written atomically via a temp file + rename.
type Store struct {
	mu   sync.Mutex
	root string
}

// NewStore returns a Store rooted at dir. dir is created on first Save if
// it does not already exist.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// sessionPath validates id and returns its resolved path under s.root. id
// must contain no path separator, carry no filename suffix, and resolve to
// a path under s.root.
func (s *Store) sessionPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || filepath.Ext(id) != "" {
		return "", ErrInvalidSessionID
	}
	path := filepath.Join(s.root, id+".json")
	resolvedRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("history: resolving storage root: %w", err)
	}
	resolvedPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("history: resolving session path: %w", err)
	}
	if resolvedPath != resolvedRoot && !strings.HasPrefix(resolvedPath, resolvedRoot+string(filepath.Separator)) {
		return "", ErrInvalidSessionID
	}
	return resolvedPath, nil
}

// SessionID builds the "<connection_id>_<YYYYmmdd_HHMMSS>" id from connID
// and a UTC timestamp.
func SessionID(connID string, at time.Time) string {
	return fmt.Sprintf("%s_%s", connID, at.UTC().Format("20060102_150405"))
}

// Save serializes messages and metadata to storage under sessionID,
// writing atomically (temp file + rename, 0600 permissions).
func (s *Store) Save(sessionID string, saved models.SavedSession) error {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("history: creating storage root: %w", err)
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshaling session: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("history: writing session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("history: finalizing session write: %w", err)
	}
	return nil
}

// Load reads sessionID back from storage.
func (s *Store) Load(sessionID string) (*models.SavedSession, error) {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("history: reading session: %w", err)
	}

	var saved models.SavedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("history: decoding session: %w", err)
	}
	return &saved, nil
}

// Delete removes sessionID's file. Deleting a nonexistent session is a
// no-op success.
func (s *Store) Delete(sessionID string) error {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: deleting session: %w", err)
	}
	return nil
}

// List enumerates stored sessions, most-recently-updated first.
func (s *Store) List() ([]models.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: listing storage root: %w", err)
	}

	summaries := make([]models.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		var saved models.SavedSession
		if err := json.Unmarshal(data, &saved); err != nil {
			continue
		}
		summaries = append(summaries, models.SessionSummary{
			SessionID:    saved.SessionID,
			PlayerName:   saved.PlayerName,
			Provider:     saved.Provider,
			Model:        saved.Model,
			MessageCount: saved.MessageCount,
			CreatedAt:    saved.CreatedAt,
			UpdatedAt:    saved.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
