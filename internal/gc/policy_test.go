package gc

import (
	"testing"
	"time"

	"nasstore/internal/chunk"
)

func id(b byte) chunk.ChunkID {
	var out chunk.ChunkID
	out[0] = b
	return out
}

func TestZeroRefPolicyMarksOnlyZeroRefs(t *testing.T) {
	now := time.Now()
	snap := Snapshot{
		Now: now,
		Chunks: []chunk.Meta{
			{ID: id(1), RefCount: 0, State: chunk.StateCommitted},
			{ID: id(2), RefCount: 3, State: chunk.StateCommitted},
			{ID: id(3), RefCount: 0, State: chunk.StateGCPending},
		},
	}
	got := ZeroRefPolicy{}.Mark(snap)
	if len(got) != 1 || got[0] != id(1) {
		t.Fatalf("expected only id(1) marked, got %v", got)
	}
}

func TestOrphanAgePolicy(t *testing.T) {
	now := time.Now()
	snap := Snapshot{
		Now: now,
		Chunks: []chunk.Meta{
			{ID: id(1), State: chunk.StateGCPending, LastAccessAt: now.Add(-20 * time.Minute)},
			{ID: id(2), State: chunk.StateGCPending, LastAccessAt: now.Add(-1 * time.Minute)},
			{ID: id(3), State: chunk.StateCommitted, LastAccessAt: now.Add(-20 * time.Minute)},
		},
	}
	policy := NewOrphanAgePolicy(10 * time.Minute)
	got := policy.Mark(snap)
	if len(got) != 1 || got[0] != id(1) {
		t.Fatalf("expected only id(1) marked, got %v", got)
	}
}

func TestOrphanAgePolicyDisabled(t *testing.T) {
	policy := NewOrphanAgePolicy(0)
	got := policy.Mark(Snapshot{Chunks: []chunk.Meta{{ID: id(1), State: chunk.StateGCPending}}})
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestCompositeMarkPolicyDedupes(t *testing.T) {
	now := time.Now()
	snap := Snapshot{Now: now, Chunks: []chunk.Meta{
		{ID: id(1), RefCount: 0, State: chunk.StateGCPending, LastAccessAt: now.Add(-time.Hour)},
	}}
	// Both orphan-age policies mark id(1); the composite must report it once.
	composite := NewCompositeMarkPolicy(ZeroRefPolicy{}, NewOrphanAgePolicy(time.Minute), NewOrphanAgePolicy(30*time.Minute))
	got := composite.Mark(snap)
	if len(got) != 1 {
		t.Fatalf("expected 1 deduped result, got %d: %v", len(got), got)
	}
}

func TestNeverMarkPolicy(t *testing.T) {
	if got := (NeverMarkPolicy{}).Mark(Snapshot{Chunks: []chunk.Meta{{ID: id(1), RefCount: 0}}}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
