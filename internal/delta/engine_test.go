package delta

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"nasstore/internal/chunk"
	"nasstore/internal/chunker"
	"nasstore/internal/chunkindex"
	"nasstore/internal/chunk/memory"
	"nasstore/internal/version"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	idx, err := chunkindex.Open(filepath.Join(t.TempDir(), "chunks.db"), 64)
	if err != nil {
		t.Fatalf("chunkindex.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	vs, err := version.Open(filepath.Join(t.TempDir(), "files.db"))
	if err != nil {
		t.Fatalf("version.Open: %v", err)
	}
	t.Cleanup(func() { vs.Close() })

	return New(Config{
		Store:    memory.New(),
		Index:    idx,
		Versions: vs,
		ChunkerConfig: chunker.Config{Min: 16, Avg: 32, Max: 64, Poly: chunker.DefaultPoly},
	})
}

func TestSaveAndReadVersionRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte("abcdefgh"), 50)

	v, err := e.SaveVersion(ctx, "/a/b.txt", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	got, err := e.ReadVersion(ctx, v)
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestSecondIdenticalSaveDeduplicates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte("xyz123"), 80)

	v1, err := e.SaveVersion(ctx, "/a/c.txt", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	v2, err := e.SaveVersion(ctx, "/a/c.txt", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if len(v1.Delta.Chunks) != len(v2.Delta.Chunks) {
		t.Fatalf("expected identical chunk counts, got %d vs %d", len(v1.Delta.Chunks), len(v2.Delta.Chunks))
	}
	for i := range v1.Delta.Chunks {
		if v1.Delta.Chunks[i].ChunkID != v2.Delta.Chunks[i].ChunkID {
			t.Fatalf("expected identical chunk IDs at %d", i)
		}
	}

	// The refcount counts every reference, and this input repeats some
	// chunks within a single save, so each chunk ends at twice its
	// per-save reference count.
	perSave := make(map[chunk.ChunkID]int64)
	for _, ref := range v1.Delta.Chunks {
		perSave[ref.ChunkID]++
	}
	metas, err := e.index.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, m := range metas {
		if want := 2 * perSave[m.ID]; m.RefCount != want {
			t.Fatalf("expected refcount %d after two identical saves, got %d for %v", want, m.RefCount, m.ID)
		}
	}
}

func TestReadCurrentReturnsLatest(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := "/a/d.txt"
	e.SaveVersion(ctx, path, bytes.NewReader([]byte("version one content here")))
	v2, err := e.SaveVersion(ctx, path, bytes.NewReader([]byte("version two content differs")))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	data, v, err := e.ReadCurrent(ctx, path)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if v.ID != v2.ID {
		t.Fatal("expected current version to be the latest save")
	}
	if string(data) != "version two content differs" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestDeleteVersionDecrementsRefcount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := "/a/e.txt"
	v1, err := e.SaveVersion(ctx, path, bytes.NewReader(bytes.Repeat([]byte("z"), 100)))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	if err := e.DeleteVersion(ctx, path, v1.ID); err != nil {
		t.Fatalf("DeleteVersion: %v", err)
	}
	metas, err := e.index.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, m := range metas {
		if m.State != chunk.StateGCPending {
			t.Fatalf("expected StateGCPending after delete, got %v", m.State)
		}
	}
}

func TestListVersionsOrdering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := "/a/f.txt"
	var saved []version.ID
	for i := 0; i < 3; i++ {
		v, err := e.SaveVersion(ctx, path, bytes.NewReader([]byte{byte(i), byte(i), byte(i)}))
		if err != nil {
			t.Fatalf("SaveVersion: %v", err)
		}
		saved = append(saved, v.ID)
	}
	versions, err := e.ListVersions(ctx, path)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if v.ID != saved[i] {
			t.Fatalf("expected versions oldest first: position %d holds %v, want %v", i, v.ID, saved[i])
		}
	}
}

func TestSaveVersionRejectsEmptyPath(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SaveVersion(context.Background(), "", bytes.NewReader(nil)); err != ErrEmptyPath {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestChainConsolidationBoundsDepth(t *testing.T) {
	e := newTestEngine(t)
	e.maxChainDepth = 2
	ctx := context.Background()
	path := "/a/g.txt"

	var last version.Version
	for i := 0; i < 6; i++ {
		v, err := e.SaveVersion(ctx, path, bytes.NewReader([]byte{byte(i), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
		if err != nil {
			t.Fatalf("SaveVersion: %v", err)
		}
		last = v
	}
	if last.Depth > e.maxChainDepth {
		t.Fatalf("expected depth to be bounded by consolidation, got %d", last.Depth)
	}
}
