// Package gc implements the two-phase mark-and-sweep garbage collector for
// chunks whose refcount has dropped to zero. Mark decides which chunks are
// eligible for deletion; sweep (in collector.go) waits out a grace period and
// then deletes them from the chunk store and index.
package gc

import (
	"time"

	"nasstore/internal/chunk"
)

// Snapshot is an immutable view of the chunk index at the moment a GC mark
// pass begins. It contains everything a MarkPolicy needs to decide which
// chunks are eligible for collection, with no IO or locking.
type Snapshot struct {
	// Chunks holds metadata for every chunk currently known to the index.
	Chunks []chunk.Meta

	// Now is the wall-clock time the snapshot was taken.
	Now time.Time
}

// MarkPolicy decides which chunks should transition to StateGCPending.
// Policies are pure functions: no IO, no locks, no mutation, no global state.
type MarkPolicy interface {
	Mark(snap Snapshot) []chunk.ChunkID
}

// MarkPolicyFunc adapts an ordinary function to MarkPolicy.
type MarkPolicyFunc func(snap Snapshot) []chunk.ChunkID

func (f MarkPolicyFunc) Mark(snap Snapshot) []chunk.ChunkID {
	return f(snap)
}

// CompositeMarkPolicy unions the results of multiple policies, deduplicated.
type CompositeMarkPolicy struct {
	policies []MarkPolicy
}

func NewCompositeMarkPolicy(policies ...MarkPolicy) *CompositeMarkPolicy {
	return &CompositeMarkPolicy{policies: policies}
}

func (c *CompositeMarkPolicy) Mark(snap Snapshot) []chunk.ChunkID {
	seen := make(map[chunk.ChunkID]struct{})
	var result []chunk.ChunkID
	for _, p := range c.policies {
		for _, id := range p.Mark(snap) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				result = append(result, id)
			}
		}
	}
	return result
}

// ZeroRefPolicy marks every chunk whose refcount has reached zero and is not
// already in StateGCPending. This is the baseline policy: every store runs it.
type ZeroRefPolicy struct{}

func (ZeroRefPolicy) Mark(snap Snapshot) []chunk.ChunkID {
	var result []chunk.ChunkID
	for _, m := range snap.Chunks {
		if m.RefCount <= 0 && m.State != chunk.StateGCPending {
			result = append(result, m.ID)
		}
	}
	return result
}

// OrphanAgePolicy marks chunks that have sat at refcount zero (State
// GCPending already) longer than maxAge without being swept, as a backstop
// against a sweeper that silently stopped running. Age is measured from
// LastAccessAt, which the index bumps to "now" the moment refcount hits zero.
type OrphanAgePolicy struct {
	maxAge time.Duration
}

func NewOrphanAgePolicy(maxAge time.Duration) *OrphanAgePolicy {
	return &OrphanAgePolicy{maxAge: maxAge}
}

func (p *OrphanAgePolicy) Mark(snap Snapshot) []chunk.ChunkID {
	if p.maxAge <= 0 {
		return nil
	}
	cutoff := snap.Now.Add(-p.maxAge)
	var result []chunk.ChunkID
	for _, m := range snap.Chunks {
		if m.State == chunk.StateGCPending && m.LastAccessAt.Before(cutoff) {
			result = append(result, m.ID)
		}
	}
	return result
}

// NeverMarkPolicy marks nothing. Useful for tests and for operators who want
// to disable GC entirely while keeping the rest of the pipeline running.
type NeverMarkPolicy struct{}

func (NeverMarkPolicy) Mark(Snapshot) []chunk.ChunkID {
	return nil
}
