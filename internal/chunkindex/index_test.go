package chunkindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nasstore/internal/chunk"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.db")
	idx, err := Open(path, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestPutAndLookup(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	id := mkID(1)
	meta := chunk.Meta{ID: id, Size: 100, RefCount: 1, State: chunk.StateCommitted, CreatedAt: time.Now()}
	if err := idx.Put(ctx, meta); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := idx.Lookup(ctx, id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected chunk to be found")
	}
	if got.Size != 100 {
		t.Fatalf("unexpected size %d", got.Size)
	}
}

func TestLookupMiss(t *testing.T) {
	idx := openTestIndex(t)
	_, found, err := idx.Lookup(context.Background(), mkID(99))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown chunk")
	}
}

func TestIncRefToZeroMarksGCPending(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	id := mkID(2)
	if err := idx.Put(ctx, chunk.Meta{ID: id, RefCount: 1, State: chunk.StateCommitted}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	now := time.Now()
	result, err := idx.IncRef(ctx, id, -1, now)
	if err != nil {
		t.Fatalf("IncRef: %v", err)
	}
	if result != 0 {
		t.Fatalf("expected refcount 0, got %d", result)
	}
	meta, found, err := idx.Lookup(ctx, id)
	if err != nil || !found {
		t.Fatalf("Lookup after decref: found=%v err=%v", found, err)
	}
	if meta.State != chunk.StateGCPending {
		t.Fatalf("expected StateGCPending, got %v", meta.State)
	}
}

func TestIncRefBackAboveZeroUnmarksGCPending(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	id := mkID(3)
	idx.Put(ctx, chunk.Meta{ID: id, RefCount: 0, State: chunk.StateGCPending})
	if _, err := idx.IncRef(ctx, id, 1, time.Now()); err != nil {
		t.Fatalf("IncRef: %v", err)
	}
	meta, _, _ := idx.Lookup(ctx, id)
	if meta.State != chunk.StateCommitted {
		t.Fatalf("expected StateCommitted after re-ref, got %v", meta.State)
	}
}

func TestSweepCandidatesRespectsGracePeriod(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	old := mkID(4)
	idx.Put(ctx, chunk.Meta{ID: old})
	idx.MarkGCPending(ctx, []chunk.ChunkID{old}, now.Add(-time.Hour))

	recent := mkID(5)
	idx.Put(ctx, chunk.Meta{ID: recent})
	idx.MarkGCPending(ctx, []chunk.ChunkID{recent}, now)

	candidates, err := idx.SweepCandidates(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("SweepCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != old {
		t.Fatalf("expected only the old chunk, got %v", candidates)
	}
}

func TestForgetChunkRemovesEntry(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	id := mkID(6)
	idx.Put(ctx, chunk.Meta{ID: id})
	if err := idx.ForgetChunk(ctx, id); err != nil {
		t.Fatalf("ForgetChunk: %v", err)
	}
	_, found, err := idx.Lookup(ctx, id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected chunk to be forgotten")
	}
}

func TestSnapshotReturnsAllChunks(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	for i := byte(10); i < 15; i++ {
		idx.Put(ctx, chunk.Meta{ID: mkID(i)})
	}
	metas, err := idx.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(metas) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(metas))
	}
}
