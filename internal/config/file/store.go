// Package file provides a file-based config.Store implementation.
//
// Configuration is persisted as a versioned JSON envelope:
//
//	{"version": 1, "config": { ... }}
//
// Writes are atomic via temp file + rename, the same pattern the chunk
// store uses for chunk bodies.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nasstore/internal/config"
)

const currentVersion = 1

// envelope is the versioned on-disk format.
type envelope struct {
	Version int            `json:"version"`
	Config  *config.Config `json:"config"`
}

// Store is a file-based config.Store implementation.
type Store struct {
	path string
}

var _ config.Store = (*Store)(nil)

// NewStore creates a file-based config.Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the configuration from disk. Returns nil, nil if the file does
// not exist.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}
	if env.Version > currentVersion {
		return nil, fmt.Errorf("config: file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	return env.Config, nil
}

// Save writes cfg to disk atomically (temp file, fsync, rename).
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	env := envelope{Version: currentVersion, Config: cfg}
	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("config: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: rename temp file: %w", err)
	}
	return nil
}
