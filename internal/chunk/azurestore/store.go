// Package azurestore implements a chunk.Store backed by an Azure Blob
// Storage container, for tiering cold chunks out to object storage. Blob
// names use the same two-level fan-out as the local backend
// (chunk.ChunkID.RelPath); codec/size/tier ride along as blob metadata.
package azurestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"nasstore/internal/chunk"
	"nasstore/internal/compress"
)

const metaCodecKey = "nasstorecodec"
const metaSizeKey = "nasstoresize"
const metaTierKey = "nasstoretier"

// ContainerClient is the subset of *container.Client (or *azblob.Client
// scoped to one container) this store calls, so tests can fake it.
type ContainerClient interface {
	UploadBuffer(ctx context.Context, blobName string, buf []byte, opts *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DownloadStream(ctx context.Context, blobName string, opts *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, blobName string, opts *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
	NewListBlobsFlatPager(opts *container.ListBlobsFlatOptions) *runtime.Pager[container.ListBlobsFlatResponse]
}

// Store is an Azure-Blob-backed chunk.Store.
type Store struct {
	client ContainerClient
	prefix string
}

// New wraps an already-configured container client.
func New(client ContainerClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) blobName(id chunk.ChunkID) string {
	if s.prefix == "" {
		return id.RelPath()
	}
	return s.prefix + "/" + id.RelPath()
}

// Put implements chunk.Store.
func (s *Store) Put(ctx context.Context, data []byte) (chunk.PutResult, error) {
	id := chunk.SumChunkID(data)
	name := s.blobName(id)

	if _, err := s.client.DownloadStream(ctx, name, &azblob.DownloadStreamOptions{Range: blob.HTTPRange{Count: 0}}); err == nil {
		return chunk.PutResult{ID: id, Created: false}, nil
	} else if !isNotFound(err) {
		return chunk.PutResult{}, fmt.Errorf("azurestore: probe: %w", err)
	}

	codec, err := compress.ByID(chunk.CodecZstd)
	if err != nil {
		return chunk.PutResult{}, err
	}
	stored, err := codec.Encode(data)
	if err != nil {
		return chunk.PutResult{}, err
	}

	meta := map[string]*string{
		metaCodecKey: strPtr(strconv.Itoa(int(chunk.CodecZstd))),
		metaSizeKey:  strPtr(strconv.FormatInt(int64(len(data)), 10)),
		metaTierKey:  strPtr(chunk.TierCold.String()),
	}
	_, err = s.client.UploadBuffer(ctx, name, stored, &azblob.UploadBufferOptions{Metadata: meta})
	if err != nil {
		return chunk.PutResult{}, fmt.Errorf("azurestore: upload: %w", err)
	}
	return chunk.PutResult{ID: id, Created: true}, nil
}

// Get implements chunk.Store.
func (s *Store) Get(ctx context.Context, id chunk.ChunkID) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.blobName(id), nil)
	if err != nil {
		if isNotFound(err) {
			return nil, chunk.ErrNotFound
		}
		return nil, fmt.Errorf("azurestore: download: %w", err)
	}
	body := resp.Body
	defer body.Close()
	stored, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	codec, err := compress.ByID(metaCodec(resp.Metadata))
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
	_, err := s.Stat(ctx, id)
	if err != nil {
		if errors.Is(err, chunk.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat implements chunk.Store.
func (s *Store) Stat(ctx context.Context, id chunk.ChunkID) (chunk.Meta, error) {
	resp, err := s.client.DownloadStream(ctx, s.blobName(id), &azblob.DownloadStreamOptions{Range: blob.HTTPRange{Count: 0}})
	if err != nil {
		if isNotFound(err) {
			return chunk.Meta{}, chunk.ErrNotFound
		}
		return chunk.Meta{}, fmt.Errorf("azurestore: stat: %w", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	var plainSize int64
	if v := resp.Metadata[metaSizeKey]; v != nil {
		plainSize, _ = strconv.ParseInt(*v, 10, 64)
	}
	var lastMod time.Time
	if resp.LastModified != nil {
		lastMod = *resp.LastModified
	}
	var storedSize int64
	if resp.ContentLength != nil {
		storedSize = *resp.ContentLength
	}
	return chunk.Meta{
		ID:           id,
		Size:         plainSize,
		StoredSize:   storedSize,
		Codec:        metaCodec(resp.Metadata),
		Tier:         metaTier(resp.Metadata),
		CreatedAt:    lastMod,
		LastAccessAt: lastMod,
	}, nil
}

// Delete implements chunk.Store.
func (s *Store) Delete(ctx context.Context, id chunk.ChunkID) error {
	_, err := s.client.DeleteBlob(ctx, s.blobName(id), nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("azurestore: delete: %w", err)
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
	meta := map[string]*string{
		metaCodecKey: strPtr(strconv.Itoa(int(codecID))),
		metaSizeKey:  strPtr(strconv.FormatInt(int64(len(plain)), 10)),
		metaTierKey:  strPtr(chunk.TierCold.String()),
	}
	_, err = s.client.UploadBuffer(ctx, s.blobName(id), stored, &azblob.UploadBufferOptions{Metadata: meta})
	if err != nil {
		return fmt.Errorf("azurestore: recompress upload: %w", err)
	}
	return nil
}

// Move implements chunk.Store. Blob storage has no directory concept, so a
// tier change is recorded by re-uploading under the same name with updated
// metadata, same as Recompress without a codec change.
func (s *Store) Move(ctx context.Context, id chunk.ChunkID, tier chunk.Tier) error {
	plain, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	meta, err := s.Stat(ctx, id)
	if err != nil {
		return err
	}
	codec, err := compress.ByID(meta.Codec)
	if err != nil {
		return err
	}
	stored, err := codec.Encode(plain)
	if err != nil {
		return err
	}
	azMeta := map[string]*string{
		metaCodecKey: strPtr(strconv.Itoa(int(meta.Codec))),
		metaSizeKey:  strPtr(strconv.FormatInt(int64(len(plain)), 10)),
		metaTierKey:  strPtr(tier.String()),
	}
	_, err = s.client.UploadBuffer(ctx, s.blobName(id), stored, &azblob.UploadBufferOptions{Metadata: azMeta})
	if err != nil {
		return fmt.Errorf("azurestore: move upload: %w", err)
	}
	return nil
}

// List implements chunk.Store.
func (s *Store) List(ctx context.Context) ([]chunk.ChunkID, error) {
	pager := s.client.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{Prefix: strPtrOrNil(s.prefix)})
	var ids []chunk.ChunkID
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azurestore: list: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := *item.Name
			if len(name) < 64 {
				continue
			}
			id, perr := chunk.ParseChunkID(name[len(name)-64:])
			if perr != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close implements chunk.Store. The Azure SDK client owns no local resources.
func (s *Store) Close() error {
	return nil
}

func metaCodec(md map[string]*string) chunk.Codec {
	v := md[metaCodecKey]
	if v == nil {
		return chunk.CodecZstd
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return chunk.CodecZstd
	}
	return chunk.Codec(n)
}

func metaTier(md map[string]*string) chunk.Tier {
	v := md[metaTierKey]
	if v != nil && *v == "hot" {
		return chunk.TierHot
	}
	return chunk.TierCold
}

func isNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound)
}

func strPtr(s string) *string { return &s }

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ chunk.Store = (*Store)(nil)
