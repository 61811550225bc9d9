// Package gcsstore implements a chunk.Store backed by a Google Cloud
// Storage bucket, for tiering cold chunks out to object storage. Object
// names use the same two-level fan-out as the local backend
// (chunk.ChunkID.RelPath); codec/size/tier ride along as object metadata.
package gcsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"nasstore/internal/chunk"
	"nasstore/internal/compress"
)

const metaCodecKey = "nasstore-codec"
const metaSizeKey = "nasstore-size"
const metaTierKey = "nasstore-tier"

// BucketHandle is the subset of *storage.BucketHandle this store calls, so
// tests can fake it without a live GCS project.
type BucketHandle interface {
	Object(name string) *storage.ObjectHandle
	Objects(ctx context.Context, q *storage.Query) *storage.ObjectIterator
}

// Store is a GCS-backed chunk.Store.
type Store struct {
	bucket BucketHandle
	prefix string
	closer func() error
}

// New wraps an already-opened bucket handle. closer, if non-nil, is called
// by Close to release the underlying *storage.Client.
func New(bucket BucketHandle, prefix string, closer func() error) *Store {
	return &Store{bucket: bucket, prefix: prefix, closer: closer}
}

func (s *Store) objectName(id chunk.ChunkID) string {
	if s.prefix == "" {
		return id.RelPath()
	}
	return s.prefix + "/" + id.RelPath()
}

// Put implements chunk.Store.
func (s *Store) Put(ctx context.Context, data []byte) (chunk.PutResult, error) {
	id := chunk.SumChunkID(data)
	obj := s.bucket.Object(s.objectName(id))

	if _, err := obj.Attrs(ctx); err == nil {
		return chunk.PutResult{ID: id, Created: false}, nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return chunk.PutResult{}, fmt.Errorf("gcsstore: attrs: %w", err)
	}

	codec, err := compress.ByID(chunk.CodecZstd)
	if err != nil {
		return chunk.PutResult{}, err
	}
	stored, err := codec.Encode(data)
	if err != nil {
		return chunk.PutResult{}, err
	}

	w := obj.NewWriter(ctx)
	w.Metadata = map[string]string{
		metaCodecKey: strconv.Itoa(int(chunk.CodecZstd)),
		metaSizeKey:  strconv.FormatInt(int64(len(data)), 10),
		metaTierKey:  chunk.TierCold.String(),
	}
	if _, err := w.Write(stored); err != nil {
		w.Close()
		return chunk.PutResult{}, fmt.Errorf("gcsstore: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return chunk.PutResult{}, fmt.Errorf("gcsstore: close writer: %w", err)
	}
	return chunk.PutResult{ID: id, Created: true}, nil
}

// Get implements chunk.Store.
func (s *Store) Get(ctx context.Context, id chunk.ChunkID) ([]byte, error) {
	obj := s.bucket.Object(s.objectName(id))
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, chunk.ErrNotFound
		}
		return nil, fmt.Errorf("gcsstore: attrs: %w", err)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: reader: %w", err)
	}
	defer r.Close()
	stored, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	codec, err := compress.ByID(metaCodec(attrs.Metadata))
	if err != nil {
		return nil, err
	}
	plain, err := codec.Decode(stored)
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
	_, err := s.bucket.Object(s.objectName(id)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcsstore: attrs: %w", err)
}

// Stat implements chunk.Store.
func (s *Store) Stat(ctx context.Context, id chunk.ChunkID) (chunk.Meta, error) {
	attrs, err := s.bucket.Object(s.objectName(id)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return chunk.Meta{}, chunk.ErrNotFound
		}
		return chunk.Meta{}, fmt.Errorf("gcsstore: attrs: %w", err)
	}
	var plainSize int64
	if v, ok := attrs.Metadata[metaSizeKey]; ok {
		plainSize, _ = strconv.ParseInt(v, 10, 64)
	}
	return chunk.Meta{
		ID:           id,
		Size:         plainSize,
		StoredSize:   attrs.Size,
		Codec:        metaCodec(attrs.Metadata),
		Tier:         metaTier(attrs.Metadata),
		CreatedAt:    attrs.Created,
		LastAccessAt: attrs.Updated,
	}, nil
}

// Delete implements chunk.Store.
func (s *Store) Delete(ctx context.Context, id chunk.ChunkID) error {
	err := s.bucket.Object(s.objectName(id)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcsstore: delete: %w", err)
	}
	return nil
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
	w := s.bucket.Object(s.objectName(id)).NewWriter(ctx)
	w.Metadata = map[string]string{
		metaCodecKey: strconv.Itoa(int(codecID)),
		metaSizeKey:  strconv.FormatInt(int64(len(plain)), 10),
		metaTierKey:  chunk.TierCold.String(),
	}
	if _, err := w.Write(stored); err != nil {
		w.Close()
		return fmt.Errorf("gcsstore: recompress write: %w", err)
	}
	return w.Close()
}

// Move implements chunk.Store. GCS has no directory concept, so a tier
// change is recorded via an update-metadata call under the same object name.
func (s *Store) Move(ctx context.Context, id chunk.ChunkID, tier chunk.Tier) error {
	obj := s.bucket.Object(s.objectName(id))
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return chunk.ErrNotFound
		}
		return fmt.Errorf("gcsstore: attrs: %w", err)
	}
	meta := attrs.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	meta[metaTierKey] = tier.String()
	_, err = obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: meta})
	if err != nil {
		return fmt.Errorf("gcsstore: move update: %w", err)
	}
	return nil
}

// List implements chunk.Store.
func (s *Store) List(ctx context.Context) ([]chunk.ChunkID, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})
	var ids []chunk.ChunkID
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcsstore: list: %w", err)
		}
		name := attrs.Name
		if len(name) < 64 {
			continue
		}
		id, perr := chunk.ParseChunkID(name[len(name)-64:])
		if perr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close implements chunk.Store, releasing the underlying *storage.Client.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func metaCodec(md map[string]string) chunk.Codec {
	v, ok := md[metaCodecKey]
	if !ok {
		return chunk.CodecZstd
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return chunk.CodecZstd
	}
	return chunk.Codec(n)
}

func metaTier(md map[string]string) chunk.Tier {
	if md[metaTierKey] == "hot" {
		return chunk.TierHot
	}
	return chunk.TierCold
}

var _ chunk.Store = (*Store)(nil)
