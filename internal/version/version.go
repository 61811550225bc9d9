// Package version implements the version chain: each file path has a
// current-version pointer and a linked history of Versions, each carrying a
// FileDelta (an ordered list of chunk references). The delta engine writes
// every delta as a full snapshot, so a version is reconstructed from its own
// chunk list alone; the ParentID chain records history only, and a new chain
// root is started once the chain grows past the engine's MaxChainDepth.
package version

import (
	"time"

	"github.com/google/uuid"

	"nasstore/internal/chunk"
)

// ID uniquely identifies a version. It is a UUIDv7 so IDs sort in creation
// order without needing a separate sequence counter.
type ID uuid.UUID

// NewID returns a fresh, time-ordered version ID.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()))
}

// ParseID parses a version ID from its string form.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value (used as "no parent").
func (id ID) IsZero() bool {
	return id == ID{}
}

// ChunkRef is one reference to a chunk within a file's byte stream, in
// stream order.
type ChunkRef struct {
	ChunkID chunk.ChunkID
	Offset  int64 // byte offset within the reconstructed file
	Length  int64 // plaintext length contributed by this chunk
}

// FileDelta is the ordered list of chunk references that, applied on top of
// the parent version's reconstructed bytes (or from empty, for a full
// snapshot), reconstructs this version's full content.
//
// A delta whose Full flag is true is a complete snapshot: reconstructing it
// requires no parent walk at all. Non-full deltas are diffs expressed
// purely in terms of which chunks the new version references; because
// chunk content addressing already deduplicates unchanged regions, a
// non-full delta in practice is just "the new ordered chunk list", and
// unchanged chunks are shared with the parent version rather than
// physically copied.
type FileDelta struct {
	Chunks []ChunkRef
	Size   int64
	Full   bool
}

// Version is one point in a file's history.
type Version struct {
	ID        ID
	FilePath  string
	ParentID  ID // zero if this is the first version or a consolidated root
	Delta     FileDelta
	Depth     int // number of ParentID links back to the chain root (0 for a root)
	CreatedAt time.Time
}

// FileIndexEntry tracks the current version for a file path. IsCurrent is
// intentionally not stored on Version itself -- it is derived at query time
// by comparing a version's ID against this entry's CurrentVersionID, so
// promoting a different version to current never requires rewriting the
// version it displaces.
type FileIndexEntry struct {
	FilePath         string
	CurrentVersionID ID
	UpdatedAt        time.Time
}
