// Package chunkindex implements the two-level chunk index: a Bloom filter
// negative oracle backed by an authoritative, ordered bbolt map of
// ChunkID -> chunk.Meta, including each chunk's live refcount. The delta
// engine consults Lookup before writing a chunk to decide whether it's
// already present (dedup hit) or needs to go to the chunk store (miss); the
// garbage collector and tier mover consult Snapshot/MarkGCPending/
// SweepCandidates to manage the durability state machine.
package chunkindex

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"nasstore/internal/chunk"
)

var chunksBucket = []byte("chunks")

// Index is a bbolt-backed authoritative chunk map fronted by a Bloom filter.
type Index struct {
	db     *bbolt.DB
	bloom  *Filter
	bloomN int // elements the current bloom filter was sized for
}

// Open opens (creating if necessary) a chunk index at path.
func Open(path string, expectedChunks int) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("chunkindex: open: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunksBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	idx := &Index{db: db}
	if err := idx.rebuildBloom(expectedChunks); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) rebuildBloom(expectedChunks int) error {
	if expectedChunks <= 0 {
		expectedChunks = 1024
	}
	bloom := NewFilter(expectedChunks, 0.01)
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		return b.ForEach(func(k, _ []byte) error {
			var id chunk.ChunkID
			copy(id[:], k)
			bloom.Add(id)
			return nil
		})
	})
	if err != nil {
		return err
	}
	idx.bloom = bloom
	idx.bloomN = expectedChunks
	return nil
}

func encodeMeta(m chunk.Meta) ([]byte, error) {
	return msgpack.Marshal(&m)
}

func decodeMeta(data []byte) (chunk.Meta, error) {
	var m chunk.Meta
	err := msgpack.Unmarshal(data, &m)
	return m, err
}

// Lookup consults the Bloom filter first; on a negative, it returns
// (Meta{}, false, nil) without touching bbolt. On a positive, it confirms
// against the authoritative map (which may still turn out to be a Bloom
// false positive, in which case this also returns found=false).
func (idx *Index) Lookup(ctx context.Context, id chunk.ChunkID) (chunk.Meta, bool, error) {
	if !idx.bloom.MayContain(id) {
		return chunk.Meta{}, false, nil
	}
	var meta chunk.Meta
	found := false
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		v := b.Get(id[:])
		if v == nil {
			return nil
		}
		m, err := decodeMeta(v)
		if err != nil {
			return err
		}
		meta = m
		found = true
		return nil
	})
	return meta, found, err
}

// Put inserts or overwrites a chunk's metadata and adds it to the Bloom
// filter. Used when a chunk is first written (the delta engine records it
// as StateCommitted).
func (idx *Index) Put(ctx context.Context, meta chunk.Meta) error {
	data, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	if err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		return b.Put(meta.ID[:], data)
	}); err != nil {
		return err
	}
	idx.bloom.Add(meta.ID)
	return nil
}

// IncRef increments a chunk's refcount by delta (which may be negative) and
// returns the resulting value. If delta brings the refcount to zero, the
// chunk's State is set to StateGCPending and LastAccessAt is stamped with
// at, so GC age policies can measure time-since-orphaned.
func (idx *Index) IncRef(ctx context.Context, id chunk.ChunkID, delta int64, at time.Time) (int64, error) {
	var result int64
	err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		v := b.Get(id[:])
		if v == nil {
			return chunk.ErrNotFound
		}
		meta, err := decodeMeta(v)
		if err != nil {
			return err
		}
		meta.RefCount += delta
		if meta.RefCount <= 0 {
			meta.RefCount = 0
			meta.State = chunk.StateGCPending
			meta.LastAccessAt = at
		} else if meta.State == chunk.StateGCPending {
			meta.State = chunk.StateCommitted
		}
		data, err := encodeMeta(meta)
		if err != nil {
			return err
		}
		result = meta.RefCount
		return b.Put(id[:], data)
	})
	return result, err
}

// Snapshot returns metadata for every chunk currently in the index, used by
// gc.Collector and tier.Mover as the immutable state their pure policies
// decide over.
func (idx *Index) Snapshot(ctx context.Context) ([]chunk.Meta, error) {
	var metas []chunk.Meta
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		return b.ForEach(func(_, v []byte) error {
			m, err := decodeMeta(v)
			if err != nil {
				return err
			}
			metas = append(metas, m)
			return nil
		})
	})
	return metas, err
}

// MarkGCPending transitions the given chunks to StateGCPending, stamping
// LastAccessAt with at so the grace period is measured from the mark, not
// from whenever refcount actually hit zero.
func (idx *Index) MarkGCPending(ctx context.Context, ids []chunk.ChunkID, at time.Time) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		for _, id := range ids {
			v := b.Get(id[:])
			if v == nil {
				continue
			}
			meta, err := decodeMeta(v)
			if err != nil {
				return err
			}
			meta.State = chunk.StateGCPending
			meta.LastAccessAt = at
			data, err := encodeMeta(meta)
			if err != nil {
				return err
			}
			if err := b.Put(id[:], data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SweepCandidates returns chunks that are still StateGCPending and were
// marked at or before olderThan, i.e. have sat in the grace period long
// enough to be safely deleted.
func (idx *Index) SweepCandidates(ctx context.Context, olderThan time.Time) ([]chunk.ChunkID, error) {
	var ids []chunk.ChunkID
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		return b.ForEach(func(k, v []byte) error {
			m, err := decodeMeta(v)
			if err != nil {
				return err
			}
			if m.State == chunk.StateGCPending && !m.LastAccessAt.After(olderThan) {
				var id chunk.ChunkID
				copy(id[:], k)
				ids = append(ids, id)
			}
			return nil
		})
	})
	return ids, err
}

// ForgetChunk removes a chunk's metadata entirely. The caller (gc.Collector)
// is responsible for having already deleted the chunk's bytes from the
// chunk store; ForgetChunk only removes the index entry. The Bloom filter
// is not updated (that would require a full rescan), so a forgotten ID keeps
// passing MayContain until the filter is rebuilt, which happens on Open or
// through an explicit RebuildBloom call; nothing in this repository makes one.
func (idx *Index) ForgetChunk(ctx context.Context, id chunk.ChunkID) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chunksBucket).Delete(id[:])
	})
}

// RebuildBloom recomputes the Bloom filter from the current contents of the
// authoritative map, sized for expectedChunks elements. Call periodically
// after heavy GC sweeps to keep the false-positive rate low.
func (idx *Index) RebuildBloom(expectedChunks int) error {
	return idx.rebuildBloom(expectedChunks)
}

// Close closes the underlying bbolt database.
func (idx *Index) Close() error {
	return idx.db.Close()
}
