// Package memory implements an in-memory chunk.Store, used by tests and by
// the delta engine's own unit tests so they don't depend on a filesystem.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"nasstore/internal/chunk"
)

type entry struct {
	data       []byte
	codec      chunk.Codec
	tier       chunk.Tier
	createdAt  time.Time
	accessedAt time.Time
}

// Store is a goroutine-safe, in-memory chunk.Store.
type Store struct {
	mu      sync.RWMutex
	chunks  map[chunk.ChunkID]entry
	now     func() time.Time
	closed  bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{chunks: make(map[chunk.ChunkID]entry), now: time.Now}
}

// NewFactory returns a chunk.Factory that ignores params and always returns
// a fresh in-memory store. Useful for tests and for the "memory" backend
// variant in configs that don't want durability.
func NewFactory() chunk.Factory {
	return func(map[string]string) (chunk.Store, error) {
		return New(), nil
	}
}

func (s *Store) Put(ctx context.Context, data []byte) (chunk.PutResult, error) {
	id := chunk.SumChunkID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chunk.PutResult{}, chunk.ErrClosed
	}
	if _, ok := s.chunks[id]; ok {
		return chunk.PutResult{ID: id, Created: false}, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	now := s.now()
	s.chunks[id] = entry{data: cp, codec: chunk.CodecNone, tier: chunk.TierHot, createdAt: now, accessedAt: now}
	return chunk.PutResult{ID: id, Created: true}, nil
}

func (s *Store) Get(ctx context.Context, id chunk.ChunkID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chunks[id]
	if !ok {
		return nil, chunk.ErrNotFound
	}
	e.accessedAt = s.now()
	s.chunks[id] = e
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

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

func (s *Store) Has(ctx context.Context, id chunk.ChunkID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[id]
	return ok, nil
}

func (s *Store) Stat(ctx context.Context, id chunk.ChunkID) (chunk.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.chunks[id]
	if !ok {
		return chunk.Meta{}, chunk.ErrNotFound
	}
	return chunk.Meta{
		ID:           id,
		Size:         int64(len(e.data)),
		StoredSize:   int64(len(e.data)),
		Codec:        e.codec,
		Tier:         e.tier,
		CreatedAt:    e.createdAt,
		LastAccessAt: e.accessedAt,
	}, nil
}

func (s *Store) Delete(ctx context.Context, id chunk.ChunkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, id)
	return nil
}

func (s *Store) Recompress(ctx context.Context, id chunk.ChunkID, codec chunk.Codec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chunks[id]
	if !ok {
		return chunk.ErrNotFound
	}
	e.codec = codec
	s.chunks[id] = e
	return nil
}

func (s *Store) Move(ctx context.Context, id chunk.ChunkID, tier chunk.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chunks[id]
	if !ok {
		return chunk.ErrNotFound
	}
	e.tier = tier
	s.chunks[id] = e
	return nil
}

func (s *Store) List(ctx context.Context) ([]chunk.ChunkID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]chunk.ChunkID, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ chunk.Store = (*Store)(nil)
