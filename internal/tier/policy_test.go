package tier

import (
	"testing"
	"time"

	"nasstore/internal/chunk"
)

func TestIdlePolicyDemotesAfterThreshold(t *testing.T) {
	now := time.Now()
	policy := NewIdlePolicy(time.Hour)
	state := ChunkState{Tier: chunk.TierHot, LastAccessAt: now.Add(-2 * time.Hour)}
	if got := policy.Decide(state, now); got != chunk.TierCold {
		t.Fatalf("expected TierCold, got %v", got)
	}
}

func TestIdlePolicyKeepsHotWhenRecent(t *testing.T) {
	now := time.Now()
	policy := NewIdlePolicy(time.Hour)
	state := ChunkState{Tier: chunk.TierHot, LastAccessAt: now.Add(-time.Minute)}
	if got := policy.Decide(state, now); got != chunk.TierHot {
		t.Fatalf("expected TierHot, got %v", got)
	}
}

func TestIdlePolicyDisabled(t *testing.T) {
	now := time.Now()
	policy := NewIdlePolicy(0)
	state := ChunkState{Tier: chunk.TierHot, LastAccessAt: now.Add(-365 * 24 * time.Hour)}
	if got := policy.Decide(state, now); got != chunk.TierHot {
		t.Fatalf("expected no-op TierHot, got %v", got)
	}
}

func TestIdlePolicyFallsBackToCreatedAt(t *testing.T) {
	now := time.Now()
	policy := NewIdlePolicy(time.Hour)
	state := ChunkState{Tier: chunk.TierHot, CreatedAt: now.Add(-2 * time.Hour)}
	if got := policy.Decide(state, now); got != chunk.TierCold {
		t.Fatalf("expected TierCold via CreatedAt fallback, got %v", got)
	}
}

func TestIdlePolicyLeavesColdAlone(t *testing.T) {
	now := time.Now()
	policy := NewIdlePolicy(time.Hour)
	state := ChunkState{Tier: chunk.TierCold, LastAccessAt: now}
	if got := policy.Decide(state, now); got != chunk.TierCold {
		t.Fatalf("expected TierCold to remain, got %v", got)
	}
}

func TestNeverMovePolicy(t *testing.T) {
	state := ChunkState{Tier: chunk.TierCold}
	if got := (NeverMovePolicy{}).Decide(state, time.Now()); got != chunk.TierCold {
		t.Fatalf("expected unchanged tier, got %v", got)
	}
}
