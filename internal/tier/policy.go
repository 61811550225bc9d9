// Package tier decides when a chunk should move between the hot and cold
// storage tiers. Policies are pure functions over an immutable snapshot of a
// chunk's access history, mirroring the chunk-rotation policy pattern: no
// IO, no locks, no mutation, no global state.
package tier

import (
	"time"

	"nasstore/internal/chunk"
)

// ChunkState is an immutable snapshot of one chunk's tiering-relevant state.
type ChunkState struct {
	ID           chunk.ChunkID
	Tier         chunk.Tier
	Size         int64
	CreatedAt    time.Time
	LastAccessAt time.Time
}

// Policy decides whether a chunk should move, and to which tier.
type Policy interface {
	// Decide returns the tier the chunk should be in. Returning the same
	// tier the chunk is already in means "no move".
	Decide(state ChunkState, now time.Time) chunk.Tier
}

// PolicyFunc adapts an ordinary function to Policy.
type PolicyFunc func(state ChunkState, now time.Time) chunk.Tier

func (f PolicyFunc) Decide(state ChunkState, now time.Time) chunk.Tier {
	return f(state, now)
}

// IdlePolicy demotes a chunk to cold storage once it has gone untouched for
// coldAfter. Decide never recommends promotion: a chunk already in the cold
// tier stays there (Mover.PromoteOnRead is the separate way back to hot).
type IdlePolicy struct {
	coldAfter time.Duration
}

// NewIdlePolicy returns a Policy that demotes chunks idle longer than coldAfter.
// coldAfter <= 0 disables demotion (every chunk stays wherever it is).
func NewIdlePolicy(coldAfter time.Duration) *IdlePolicy {
	return &IdlePolicy{coldAfter: coldAfter}
}

func (p *IdlePolicy) Decide(state ChunkState, now time.Time) chunk.Tier {
	if p.coldAfter <= 0 {
		return state.Tier
	}
	if state.Tier == chunk.TierCold {
		return chunk.TierCold
	}
	idleSince := state.LastAccessAt
	if idleSince.IsZero() {
		idleSince = state.CreatedAt
	}
	if now.Sub(idleSince) >= p.coldAfter {
		return chunk.TierCold
	}
	return chunk.TierHot
}

// PromoteOnReadPolicy always recommends TierHot. Used to express the
// promote-on-read rule explicitly as a policy value rather than inline
// logic in the store, so it composes the same way IdlePolicy does.
type PromoteOnReadPolicy struct{}

func (PromoteOnReadPolicy) Decide(ChunkState, time.Time) chunk.Tier {
	return chunk.TierHot
}

// NeverMovePolicy leaves every chunk in whatever tier it is already in.
type NeverMovePolicy struct{}

func (NeverMovePolicy) Decide(state ChunkState, _ time.Time) chunk.Tier {
	return state.Tier
}
