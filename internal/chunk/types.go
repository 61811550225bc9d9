package chunk

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

var ErrInvalidChunkID = errors.New("invalid chunk id")

// ChunkID is the content address of a chunk: a BLAKE2b-256 digest of its
// plaintext bytes. Two chunks with identical content always have the same
// ChunkID, which is the basis for deduplication.
type ChunkID [32]byte

// SumChunkID computes the ChunkID of data.
func SumChunkID(data []byte) ChunkID {
	return ChunkID(blake2b.Sum256(data))
}

// ParseChunkID parses a 64-character lowercase hex string into a ChunkID.
func ParseChunkID(value string) (ChunkID, error) {
	if len(value) != 64 {
		return ChunkID{}, fmt.Errorf("%w: length %d (want 64)", ErrInvalidChunkID, len(value))
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return ChunkID{}, fmt.Errorf("%w: %w", ErrInvalidChunkID, err)
	}
	var id ChunkID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 64-character lowercase hex representation.
func (id ChunkID) String() string {
	return hex.EncodeToString(id[:])
}

// RelPath returns the two-level fan-out path segments used to lay the chunk
// out on disk or under an object-store prefix: <first2>/<next2>/<id-hex>.
// The fan-out keeps any single directory (or S3 prefix partition) from
// holding an unbounded number of entries.
func (id ChunkID) RelPath() string {
	h := id.String()
	return h[0:2] + "/" + h[2:4] + "/" + h
}

// IsZero reports whether id is the zero value.
func (id ChunkID) IsZero() bool {
	return id == ChunkID{}
}

// Codec identifies the compression codec applied to a chunk's stored bytes.
type Codec byte

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", byte(c))
	}
}

// Tier identifies where a chunk's bytes currently live.
type Tier byte

const (
	TierHot Tier = iota
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierCold:
		return "cold"
	default:
		return fmt.Sprintf("tier(%d)", byte(t))
	}
}

// State is a chunk's position in the durability state machine:
//
//	Pending    -- bytes written to the WAL, not yet fsynced to the chunk store
//	Durable    -- fsynced to the chunk store, refcount not yet committed
//	Committed  -- refcount committed in the chunk index; safe to read
//	GCPending  -- refcount reached zero; marked, awaiting grace period sweep
type State byte

const (
	StatePending State = iota
	StateDurable
	StateCommitted
	StateGCPending
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDurable:
		return "durable"
	case StateCommitted:
		return "committed"
	case StateGCPending:
		return "gc_pending"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

// Meta is the metadata record tracked in the chunk index for every chunk.
type Meta struct {
	ID           ChunkID
	Size         int64 // plaintext size
	StoredSize   int64 // on-disk size after compression
	Codec        Codec
	Tier         Tier
	State        State
	RefCount     int64
	CreatedAt    time.Time
	LastAccessAt time.Time
}
