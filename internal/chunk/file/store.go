// Package file implements a local-filesystem-backed chunk.Store. Chunk
// bodies are laid out in a two-level fan-out directory tree under hot/ and
// cold/ root directories, each file framed with the shared format.Header
// convention and written atomically (temp file, fsync, rename) so a crash
// mid-write never leaves a partially written chunk visible under its final
// name. A single flock on the store directory enforces one writer at a time,
// mirroring the teacher's directory-locking discipline.
package file

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"nasstore/internal/chunk"
	"nasstore/internal/compress"
	"nasstore/internal/format"
)

const (
	fileVersion  = 1
	headerExtra  = 16 // plaintext size (u64) + stored size (u64)
	metaFileName = ".lock"
)

// Store is a local-disk chunk.Store.
type Store struct {
	baseDir string
	lockFD  *os.File

	mu       sync.RWMutex
	tiers    map[chunk.ChunkID]chunk.Tier
	codecs   map[chunk.ChunkID]chunk.Codec
	sizes    map[chunk.ChunkID]int64
	storedSz map[chunk.ChunkID]int64
	created  map[chunk.ChunkID]time.Time
	accessed map[chunk.ChunkID]time.Time

	now func() time.Time
}

// Open opens (creating if necessary) a file-backed store rooted at baseDir.
// baseDir is exclusively locked via flock for the lifetime of the Store.
func Open(baseDir string) (*Store, error) {
	for _, sub := range []string{"hot", "cold"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("file: create %s dir: %w", sub, err)
		}
	}
	lockPath := filepath.Join(baseDir, metaFileName)
	fd, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open lock file: %w", err)
	}
	if err := syscall.Flock(int(fd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		fd.Close()
		return nil, fmt.Errorf("file: store directory %s already locked: %w", baseDir, err)
	}

	s := &Store{
		baseDir:  baseDir,
		lockFD:   fd,
		tiers:    make(map[chunk.ChunkID]chunk.Tier),
		codecs:   make(map[chunk.ChunkID]chunk.Codec),
		sizes:    make(map[chunk.ChunkID]int64),
		storedSz: make(map[chunk.ChunkID]int64),
		created:  make(map[chunk.ChunkID]time.Time),
		accessed: make(map[chunk.ChunkID]time.Time),
		now:      time.Now,
	}
	if err := s.reconcile(); err != nil {
		fd.Close()
		return nil, err
	}
	return s, nil
}

// reconcile walks the hot and cold trees on startup and rebuilds the
// in-memory metadata cache from each chunk file's own header, the same
// recovery strategy the teacher's manager uses when reopening a store dir.
func (s *Store) reconcile() error {
	for _, tier := range []chunk.Tier{chunk.TierHot, chunk.TierCold} {
		root := filepath.Join(s.baseDir, tier.String())
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			idHex := filepath.Base(path)
			id, perr := chunk.ParseChunkID(idHex)
			if perr != nil {
				return nil // skip non-chunk files (e.g. leftover temp files)
			}
			hdr, plainSz, storedSz, rerr := readHeader(path)
			if rerr != nil {
				return nil
			}
			info, _ := os.Stat(path)
			s.tiers[id] = tier
			s.codecs[id] = chunk.Codec(hdr.Flags)
			s.sizes[id] = plainSz
			s.storedSz[id] = storedSz
			if info != nil {
				s.created[id] = info.ModTime()
				s.accessed[id] = info.ModTime()
			}
			return nil
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *Store) pathFor(id chunk.ChunkID, tier chunk.Tier) string {
	return filepath.Join(s.baseDir, tier.String(), id.RelPath())
}

func writeHeader(w io.Writer, codec chunk.Codec, plainSize, storedSize int64) error {
	h := format.Header{Type: format.TypeChunkBody, Version: fileVersion, Flags: byte(codec)}
	buf := h.Encode()
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	var extra [headerExtra]byte
	binary.LittleEndian.PutUint64(extra[0:8], uint64(plainSize))
	binary.LittleEndian.PutUint64(extra[8:16], uint64(storedSize))
	_, err := w.Write(extra[:])
	return err
}

func readHeader(path string) (format.Header, int64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return format.Header{}, 0, 0, err
	}
	defer f.Close()
	buf := make([]byte, format.HeaderSize+headerExtra)
	if _, err := io.ReadFull(f, buf); err != nil {
		return format.Header{}, 0, 0, err
	}
	hdr, err := format.DecodeAndValidate(buf[:format.HeaderSize], format.TypeChunkBody, fileVersion)
	if err != nil {
		return format.Header{}, 0, 0, err
	}
	plainSize := int64(binary.LittleEndian.Uint64(buf[format.HeaderSize : format.HeaderSize+8]))
	storedSize := int64(binary.LittleEndian.Uint64(buf[format.HeaderSize+8 : format.HeaderSize+16]))
	return hdr, plainSize, storedSize, nil
}

// Put implements chunk.Store.
func (s *Store) Put(ctx context.Context, data []byte) (chunk.PutResult, error) {
	id := chunk.SumChunkID(data)

	s.mu.RLock()
	_, exists := s.tiers[id]
	s.mu.RUnlock()
	if exists {
		return chunk.PutResult{ID: id, Created: false}, nil
	}

	codec, err := compress.ByID(chunk.CodecZstd)
	if err != nil {
		return chunk.PutResult{}, err
	}
	stored, err := codec.Encode(data)
	if err != nil {
		return chunk.PutResult{}, err
	}

	finalPath := s.pathFor(id, chunk.TierHot)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return chunk.PutResult{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".tmp-*")
	if err != nil {
		return chunk.PutResult{}, err
	}
	tmpPath := tmp.Name()
	if err := writeHeader(tmp, chunk.CodecZstd, int64(len(data)), int64(len(stored))); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return chunk.PutResult{}, err
	}
	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return chunk.PutResult{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return chunk.PutResult{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return chunk.PutResult{}, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return chunk.PutResult{}, err
	}

	now := s.now()
	s.mu.Lock()
	s.tiers[id] = chunk.TierHot
	s.codecs[id] = chunk.CodecZstd
	s.sizes[id] = int64(len(data))
	s.storedSz[id] = int64(len(stored))
	s.created[id] = now
	s.accessed[id] = now
	s.mu.Unlock()

	return chunk.PutResult{ID: id, Created: true}, nil
}

// Get implements chunk.Store.
func (s *Store) Get(ctx context.Context, id chunk.ChunkID) ([]byte, error) {
	s.mu.Lock()
	tier, ok := s.tiers[id]
	if ok {
		s.accessed[id] = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return nil, chunk.ErrNotFound
	}

	path := s.pathFor(id, tier)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chunk.ErrNotFound
		}
		return nil, err
	}
	if len(raw) < format.HeaderSize+headerExtra {
		return nil, chunk.ErrCorrupt
	}
	hdr, err := format.DecodeAndValidate(raw[:format.HeaderSize], format.TypeChunkBody, fileVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrCorrupt, err)
	}
	body := raw[format.HeaderSize+headerExtra:]
	codec, err := compress.ByID(chunk.Codec(hdr.Flags))
	if err != nil {
		return nil, err
	}
	plain, err := codec.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrCorrupt, err)
	}
	return plain, nil
}

// OpenRange implements chunk.Store.
func (s *Store) OpenRange(ctx context.Context, id chunk.ChunkID, offset, length int64) (io.ReadCloser, error) {
	data, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > int64(len(data)) {
		offset = int64(len(data))
	}
	end := offset + length
	if length <= 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[offset:end])), nil
}

// Has implements chunk.Store.
func (s *Store) Has(ctx context.Context, id chunk.ChunkID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tiers[id]
	return ok, nil
}

// Stat implements chunk.Store.
func (s *Store) Stat(ctx context.Context, id chunk.ChunkID) (chunk.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tier, ok := s.tiers[id]
	if !ok {
		return chunk.Meta{}, chunk.ErrNotFound
	}
	return chunk.Meta{
		ID:           id,
		Size:         s.sizes[id],
		StoredSize:   s.storedSz[id],
		Codec:        s.codecs[id],
		Tier:         tier,
		CreatedAt:    s.created[id],
		LastAccessAt: s.accessed[id],
	}, nil
}

// Delete implements chunk.Store.
func (s *Store) Delete(ctx context.Context, id chunk.ChunkID) error {
	s.mu.Lock()
	tier, ok := s.tiers[id]
	if ok {
		delete(s.tiers, id)
		delete(s.codecs, id)
		delete(s.sizes, id)
		delete(s.storedSz, id)
		delete(s.created, id)
		delete(s.accessed, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	err := os.Remove(s.pathFor(id, tier))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Recompress implements chunk.Store.
func (s *Store) Recompress(ctx context.Context, id chunk.ChunkID, codecID chunk.Codec) error {
	plain, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	codec, err := compress.ByID(codecID)
	if err != nil {
		return err
	}
	stored, err := codec.Encode(plain)
	if err != nil {
		return err
	}

	s.mu.RLock()
	tier := s.tiers[id]
	s.mu.RUnlock()

	finalPath := s.pathFor(id, tier)
	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".compress-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := writeHeader(tmp, codecID, int64(len(plain)), int64(len(stored))); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.mu.Lock()
	s.codecs[id] = codecID
	s.storedSz[id] = int64(len(stored))
	s.mu.Unlock()
	return nil
}

// Move implements chunk.Store.
func (s *Store) Move(ctx context.Context, id chunk.ChunkID, target chunk.Tier) error {
	s.mu.RLock()
	current, ok := s.tiers[id]
	s.mu.RUnlock()
	if !ok {
		return chunk.ErrNotFound
	}
	if current == target {
		return nil
	}
	srcPath := s.pathFor(id, current)
	dstPath := s.pathFor(id, target)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return err
	}
	s.mu.Lock()
	s.tiers[id] = target
	s.accessed[id] = s.now()
	s.mu.Unlock()
	return nil
}

// List implements chunk.Store.
func (s *Store) List(ctx context.Context) ([]chunk.ChunkID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]chunk.ChunkID, 0, len(s.tiers))
	for id := range s.tiers {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close implements chunk.Store.
func (s *Store) Close() error {
	if s.lockFD == nil {
		return nil
	}
	syscall.Flock(int(s.lockFD.Fd()), syscall.LOCK_UN)
	return s.lockFD.Close()
}

var _ chunk.Store = (*Store)(nil)
