// Package memory provides an in-memory config.Store implementation.
// Intended for testing; configuration is not persisted across restarts.
package memory

import (
	"context"
	"sync"

	"nasstore/internal/config"
)

// Store is an in-memory config.Store implementation.
type Store struct {
	mu  sync.RWMutex
	cfg *config.Config
}

var _ config.Store = (*Store)(nil)

// NewStore creates a new in-memory config.Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the currently stored configuration, or nil if none was saved.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := *s.cfg
	return &cp, nil
}

// Save replaces the stored configuration with a copy of cfg.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.cfg = &cp
	return nil
}
