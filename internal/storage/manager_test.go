package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"nasstore/internal/chunk"
	"nasstore/internal/chunk/memory"
	"nasstore/internal/chunker"
	"nasstore/internal/chunkindex"
	"nasstore/internal/gc"
	"nasstore/internal/version"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return newTestManagerAt(t, nil)
}

// newTestManagerAt is newTestManager with an injected clock (nil uses time.Now).
func newTestManagerAt(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	idx, err := chunkindex.Open(filepath.Join(t.TempDir(), "chunks.db"), 64)
	if err != nil {
		t.Fatalf("chunkindex.Open: %v", err)
	}
	vs, err := version.Open(filepath.Join(t.TempDir(), "files.db"))
	if err != nil {
		t.Fatalf("version.Open: %v", err)
	}
	m, err := New(Config{
		Store:         memory.New(),
		Index:         idx,
		Versions:      vs,
		ChunkerConfig: chunker.Config{Min: 16, Avg: 32, Max: 64, Poly: chunker.DefaultPoly},
		GCPolicy:      gc.ZeroRefPolicy{},
		Now:           now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerSaveReadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte("hello world "), 20)

	v, err := m.SaveVersion(ctx, "/docs/a.txt", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	got, err := m.ReadVersion(ctx, v)
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestManagerListFiles(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.SaveVersion(ctx, "/a.txt", bytes.NewReader([]byte("one two three four five")))
	m.SaveVersion(ctx, "/b.txt", bytes.NewReader([]byte("six seven eight nine ten")))

	files, err := m.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
}

func TestManagerDeleteThenGC(t *testing.T) {
	clock := time.Now()
	m := newTestManagerAt(t, func() time.Time { return clock })
	ctx := context.Background()
	v, err := m.SaveVersion(ctx, "/c.txt", bytes.NewReader([]byte("content worth chunking here")))
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if err := m.DeleteVersion(ctx, "/c.txt", v.ID); err != nil {
		t.Fatalf("DeleteVersion: %v", err)
	}
	// Orphaned chunks are swept only once the GC grace period (10 minutes
	// by default) has passed since they were orphaned.
	clock = clock.Add(11 * time.Minute)
	if err := m.RunGC(ctx); err != nil {
		t.Fatalf("RunGC: %v", err)
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != 0 {
		t.Fatalf("expected all chunks swept after delete+gc, got %d", stats.Chunks)
	}
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.SaveVersion(ctx, "/d.txt", bytes.NewReader([]byte("some bytes to split into chunks")))

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks == 0 {
		t.Fatal("expected at least one chunk")
	}
	if stats.HotChunks != stats.Chunks {
		t.Fatalf("expected all freshly written chunks to be hot, got %d/%d", stats.HotChunks, stats.Chunks)
	}
}

func TestManagerRunVerify(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.SaveVersion(ctx, "/e.txt", bytes.NewReader([]byte("verify this content please")))

	result, err := m.RunVerify(ctx)
	if err != nil {
		t.Fatalf("RunVerify: %v", err)
	}
	if result.Scanned == 0 {
		t.Fatal("expected at least one chunk scanned")
	}
	if result.Quarantined != 0 {
		t.Fatalf("expected no quarantined chunks, got %d", result.Quarantined)
	}
}

func TestManagerRequiresCoreDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error when Store/Index/Versions are missing")
	}
}

var _ chunk.Store = (*memory.Store)(nil)
