// Package s3store implements a chunk.Store backed by an S3 bucket, for
// tiering cold chunks out to object storage. Object keys use the same
// two-level fan-out as the local backend (chunk.ChunkID.RelPath) so a bucket
// holding many chunks never concentrates listings under one prefix. Codec,
// size, and tier are carried as object user-metadata rather than the local
// backend's in-body header framing, since S3 already gives us a metadata
// side-channel and PUT is atomic.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"nasstore/internal/chunk"
	"nasstore/internal/compress"
)

const metaCodecKey = "nasstore-codec"
const metaSizeKey = "nasstore-size"
const metaTierKey = "nasstore-tier"

// Client is the subset of *s3.Client this store calls, so tests can fake it.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is an S3-backed chunk.Store.
type Store struct {
	client Client
	bucket string
	prefix string
}

// New wraps an already-configured S3 client. bucket is required; prefix is
// prepended to every object key (may be empty).
func New(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(id chunk.ChunkID) string {
	if s.prefix == "" {
		return id.RelPath()
	}
	return s.prefix + "/" + id.RelPath()
}

// Put implements chunk.Store.
func (s *Store) Put(ctx context.Context, data []byte) (chunk.PutResult, error) {
	id := chunk.SumChunkID(data)
	key := s.key(id)

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err == nil {
		return chunk.PutResult{ID: id, Created: false}, nil
	} else if !isNotFound(err) {
		return chunk.PutResult{}, fmt.Errorf("s3store: head: %w", err)
	}

	codec, err := compress.ByID(chunk.CodecZstd)
	if err != nil {
		return chunk.PutResult{}, err
	}
	stored, err := codec.Encode(data)
	if err != nil {
		return chunk.PutResult{}, err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(stored),
		Metadata: map[string]string{
			metaCodecKey: strconv.Itoa(int(chunk.CodecZstd)),
			metaSizeKey:  strconv.FormatInt(int64(len(data)), 10),
			metaTierKey:  chunk.TierCold.String(),
		},
	})
	if err != nil {
		return chunk.PutResult{}, fmt.Errorf("s3store: put: %w", err)
	}
	return chunk.PutResult{ID: id, Created: true}, nil
}

// Get implements chunk.Store.
func (s *Store) Get(ctx context.Context, id chunk.ChunkID) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(id))})
	if err != nil {
		if isNotFound(err) {
			return nil, chunk.ErrNotFound
		}
		return nil, fmt.Errorf("s3store: get: %w", err)
	}
	defer out.Body.Close()
	stored, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	codecID := metaCodec(out.Metadata)
	codec, err := compress.ByID(codecID)
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
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(id))})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3store: head: %w", err)
}

// Stat implements chunk.Store.
func (s *Store) Stat(ctx context.Context, id chunk.ChunkID) (chunk.Meta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(id))})
	if err != nil {
		if isNotFound(err) {
			return chunk.Meta{}, chunk.ErrNotFound
		}
		return chunk.Meta{}, fmt.Errorf("s3store: head: %w", err)
	}
	var plainSize int64
	if v, ok := out.Metadata[metaSizeKey]; ok {
		plainSize, _ = strconv.ParseInt(v, 10, 64)
	}
	var lastMod time.Time
	if out.LastModified != nil {
		lastMod = *out.LastModified
	}
	return chunk.Meta{
		ID:           id,
		Size:         plainSize,
		StoredSize:   aws.ToInt64(out.ContentLength),
		Codec:        metaCodec(out.Metadata),
		Tier:         metaTier(out.Metadata),
		CreatedAt:    lastMod,
		LastAccessAt: lastMod,
	}, nil
}

// Delete implements chunk.Store.
func (s *Store) Delete(ctx context.Context, id chunk.ChunkID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key(id))})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3store: delete: %w", err)
	}
	return nil
}

// Recompress implements chunk.Store. It rewrites the object under the same
// key with a different codec, relying on S3's atomic PUT semantics instead
// of a temp-then-rename dance.
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
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(stored),
		Metadata: map[string]string{
			metaCodecKey: strconv.Itoa(int(codecID)),
			metaSizeKey:  strconv.FormatInt(int64(len(plain)), 10),
			metaTierKey:  chunk.TierCold.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("s3store: recompress put: %w", err)
	}
	return nil
}

// Move implements chunk.Store. S3 has no concept of a hot/cold directory, so
// a tier change is recorded as object metadata via a self-copy rather than a
// key rename; this backend is typically used only as a cold tier anyway.
func (s *Store) Move(ctx context.Context, id chunk.ChunkID, tier chunk.Tier) error {
	key := s.key(id)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return chunk.ErrNotFound
		}
		return fmt.Errorf("s3store: head: %w", err)
	}
	meta := make(map[string]string, len(head.Metadata)+1)
	for k, v := range head.Metadata {
		meta[k] = v
	}
	meta[metaTierKey] = tier.String()
	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(s.bucket + "/" + key),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          meta,
	})
	if err != nil {
		return fmt.Errorf("s3store: move: %w", err)
	}
	return nil
}

// List implements chunk.Store.
func (s *Store) List(ctx context.Context) ([]chunk.ChunkID, error) {
	var ids []chunk.ChunkID
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3store: list: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			idHex := key[len(key)-64:]
			id, perr := chunk.ParseChunkID(idHex)
			if perr != nil {
				continue
			}
			ids = append(ids, id)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return ids, nil
}

// Close implements chunk.Store. The S3 client owns no local resources.
func (s *Store) Close() error {
	return nil
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

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ chunk.Store = (*Store)(nil)
