package version

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	ErrNotFound = errors.New("version: not found")

	versionsRoot = []byte("versions") // nested: filePath -> versionID -> Version
	filesBucket  = []byte("files")    // filePath -> FileIndexEntry
)

// Store persists the version chain and current-version pointers in a single
// bbolt database file ("files.db" in the store's metadata directory).
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a version store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("version: open: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(versionsRoot); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(filesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func versionKey(id ID) []byte {
	b := id
	return b[:]
}

// SaveVersion persists v. It does not touch the current-version pointer;
// callers call SetCurrent separately (the delta engine does both atomically
// from its caller's perspective by calling them back to back under its own
// per-file lock).
func (s *Store) SaveVersion(ctx context.Context, v Version) error {
	data, err := msgpack.Marshal(&v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(versionsRoot)
		fb, err := root.CreateBucketIfNotExists([]byte(v.FilePath))
		if err != nil {
			return err
		}
		return fb.Put(versionKey(v.ID), data)
	})
}

// GetVersion loads a single version by file path and ID.
func (s *Store) GetVersion(ctx context.Context, filePath string, id ID) (Version, error) {
	var v Version
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(versionsRoot)
		fb := root.Bucket([]byte(filePath))
		if fb == nil {
			return ErrNotFound
		}
		data := fb.Get(versionKey(id))
		if data == nil {
			return ErrNotFound
		}
		return msgpack.Unmarshal(data, &v)
	})
	return v, err
}

// ListVersions returns every version of filePath, oldest first.
func (s *Store) ListVersions(ctx context.Context, filePath string) ([]Version, error) {
	var versions []Version
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(versionsRoot)
		fb := root.Bucket([]byte(filePath))
		if fb == nil {
			return nil
		}
		return fb.ForEach(func(_, v []byte) error {
			var ver Version
			if err := msgpack.Unmarshal(v, &ver); err != nil {
				return err
			}
			versions = append(versions, ver)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.Before(versions[j].CreatedAt)
	})
	return versions, nil
}

// SetCurrent updates the current-version pointer for filePath.
func (s *Store) SetCurrent(ctx context.Context, filePath string, id ID, at time.Time) error {
	entry := FileIndexEntry{FilePath: filePath, CurrentVersionID: id, UpdatedAt: at}
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(filesBucket).Put([]byte(filePath), data)
	})
}

// CurrentVersion returns the version currently pointed to for filePath.
func (s *Store) CurrentVersion(ctx context.Context, filePath string) (Version, bool, error) {
	var entry FileIndexEntry
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(filesBucket).Get([]byte(filePath))
		if data == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(data, &entry)
	})
	if err != nil || !found {
		return Version{}, false, err
	}
	v, err := s.GetVersion(ctx, filePath, entry.CurrentVersionID)
	if err != nil {
		return Version{}, false, err
	}
	return v, true, nil
}

// DeleteVersion removes a single version record. It does not check whether
// id is the file's current version or the parent of a surviving version,
// and delta.Engine.DeleteVersion checks neither: deleting the current
// version leaves the file's current pointer naming a missing version.
func (s *Store) DeleteVersion(ctx context.Context, filePath string, id ID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(versionsRoot)
		fb := root.Bucket([]byte(filePath))
		if fb == nil {
			return nil
		}
		return fb.Delete(versionKey(id))
	})
}

// ListFiles returns every file path known to the store.
func (s *Store) ListFiles(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(filesBucket).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}
