// Package chunk defines the core content-addressed storage abstraction.
// A Store holds immutable, deduplicated byte blobs keyed by ChunkID, each
// tracked with a reference count and a position in the durability state
// machine. Higher layers (the delta engine, the chunk index) are the only
// callers that mutate refcounts; Store itself only persists what it's told.
package chunk

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("chunk not found")
	ErrAlreadyExists = errors.New("chunk already exists")
	ErrCorrupt       = errors.New("chunk data failed integrity check")
	ErrClosed        = errors.New("chunk store closed")
)

// Factory creates a Store from backend-specific parameters. Factories
// validate required params, apply defaults, and return a fully constructed
// store or a descriptive error. Factories must not start goroutines beyond
// what's needed to open the backend connection.
type Factory func(params map[string]string) (Store, error)

// PutResult reports the outcome of a Put call.
type PutResult struct {
	ID      ChunkID
	Created bool // false if the chunk already existed (deduplicated)
}

// Store persists chunk bodies and their metadata. Implementations exist for
// local-filesystem, S3, Azure Blob, GCS and in-memory backends
// (internal/chunk/file, internal/chunk/s3store, internal/chunk/azurestore,
// internal/chunk/gcsstore and internal/chunk/memory; internal/chunk/registry
// selects one by backend name), all satisfying this
// single interface so the delta engine and GC never know which backend they
// are talking to.
type Store interface {
	// Put writes data under its content hash if not already present.
	// Put is idempotent: writing the same bytes twice returns Created=false
	// on the second call and does not change the stored bytes or size, but
	// it does NOT touch the refcount -- callers own refcounting via the
	// chunk index.
	Put(ctx context.Context, data []byte) (PutResult, error)

	// Get returns the plaintext bytes of a chunk, decompressing if needed.
	Get(ctx context.Context, id ChunkID) ([]byte, error)

	// OpenRange returns a reader over [offset, offset+length) of the
	// plaintext chunk body without materializing the whole chunk in memory.
	// Backends that cannot seek within a compressed chunk may decompress
	// fully and still honor the range logically.
	OpenRange(ctx context.Context, id ChunkID, offset, length int64) (io.ReadCloser, error)

	// Has reports whether a chunk with this ID is present, without reading
	// its body.
	Has(ctx context.Context, id ChunkID) (bool, error)

	// Stat returns stored metadata for a chunk (sizes, codec, tier). State
	// and RefCount are left zero; the chunk index tracks them.
	Stat(ctx context.Context, id ChunkID) (Meta, error)

	// Delete removes a chunk's bytes. Callers must only call Delete once
	// the chunk index has confirmed refcount == 0 and the GC grace period
	// has elapsed; Store does not itself enforce refcounting.
	Delete(ctx context.Context, id ChunkID) error

	// Recompress rewrites a chunk's stored bytes under a different codec
	// (used by the tier mover when demoting a chunk to cold storage).
	// Implementations must do this atomically (write-temp, rename) so a
	// crash mid-rewrite never leaves a partially written chunk body.
	Recompress(ctx context.Context, id ChunkID, codec Codec) error

	// Move relocates a chunk's bytes between tiers (e.g. hot directory to
	// cold directory, or local disk to a remote backend in mixed setups).
	Move(ctx context.Context, id ChunkID, tier Tier) error

	// List enumerates all chunk IDs known to the backend. Nothing outside
	// the tests calls it; no startup reconciliation against the chunk index
	// is performed.
	List(ctx context.Context) ([]ChunkID, error)

	// Close releases resources held by the store (file locks, connections).
	Close() error
}
