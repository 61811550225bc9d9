// Package home manages the storage engine's home directory layout.
//
// The home directory owns all persistent state for one engine instance:
// config file, chunk index and version store databases, chunk bodies, and
// the write-ahead log.
//
// Layout:
//
//	<root>/
//	  config.json          (engine configuration)
//	  meta/chunks.db        (chunk index: bbolt metadata map; the Bloom filter is rebuilt in memory on open)
//	  meta/files.db         (version store: version chain + current pointers)
//	  wal/                  (segmented write-ahead log)
//	  chunks/hot, chunks/cold  (chunk bodies, for the local_fs backend)
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a storage engine home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/nasstore
//   - macOS:   ~/Library/Application Support/nasstore
//   - Windows: %APPDATA%/nasstore
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "nasstore")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the engine config file.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "config.json")
}

// ChunkIndexPath returns the path to the chunk index database.
func (d Dir) ChunkIndexPath() string {
	return filepath.Join(d.root, "meta", "chunks.db")
}

// VersionStorePath returns the path to the version store database.
func (d Dir) VersionStorePath() string {
	return filepath.Join(d.root, "meta", "files.db")
}

// WALDir returns the directory for write-ahead log segments.
func (d Dir) WALDir() string {
	return filepath.Join(d.root, "wal")
}

// ChunkDir returns the base directory for the local_fs chunk store backend.
func (d Dir) ChunkDir() string {
	return filepath.Join(d.root, "chunks")
}

// EnsureExists creates the home directory and its meta subdirectory (and
// parents) if they don't exist. It does not create wal/ or chunks/, since
// those are created by their respective owners on first use.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	if err := os.MkdirAll(filepath.Join(d.root, "meta"), 0o750); err != nil {
		return fmt.Errorf("create meta directory: %w", err)
	}
	return nil
}
