package service

import (
	"sync"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/logger"
)

// SettingsStore holds the global compression settings. The driver reads a
// snapshot when a job starts, so changes only affect jobs started afterwards.
type SettingsStore struct {
	mu       sync.RWMutex
	settings domain.Settings
}

func NewSettingsStore(initial domain.Settings) (*SettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &SettingsStore{settings: initial}, nil
}

func (s *SettingsStore) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to a copy of the current settings and keeps the result
// only if it validates.
func (s *SettingsStore) Update(fn func(*domain.Settings)) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.settings, err
	}
	s.settings = next
	logger.Info.Printf("settings changed: %s", next)
	return next, nil
}
