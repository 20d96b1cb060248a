package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/port"
)

// HistoryStore keeps terminal job outcomes in history.json, oldest first.
type HistoryStore struct {
	mu      sync.RWMutex
	path    string
	limit   int
	nextID  int64
	entries []domain.HistoryEntry
}

// NewHistoryStore loads dataDir/history.json if present. When limit is
// positive only the newest limit entries are retained.
func NewHistoryStore(dataDir string, limit int) (*HistoryStore, error) {
	store := &HistoryStore{
		path:  filepath.Join(dataDir, "history.json"),
		limit: limit,
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *HistoryStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	s.entries = entries
	for _, e := range entries {
		s.nextID = max(s.nextID, e.ID)
	}

	return nil
}

func (s *HistoryStore) save() error {
	tmpPath := s.path + ".tmp"

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

func (s *HistoryStore) Record(_ context.Context, entry *domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, *entry)

	if s.limit > 0 && len(s.entries) > s.limit {
		s.entries = append([]domain.HistoryEntry(nil), s.entries[len(s.entries)-s.limit:]...)
	}

	return s.save()
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (s *HistoryStore) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]domain.HistoryEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}

	return out, nil
}

func (s *HistoryStore) Close() error {
	return nil
}

var _ port.HistoryStore = (*HistoryStore)(nil)
