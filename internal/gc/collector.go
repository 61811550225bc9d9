package gc

import (
	"context"
	"log/slog"
	"time"

	"nasstore/internal/chunk"
	"nasstore/internal/logging"
)

// Index is the subset of the chunk index's contract the collector depends
// on. Implemented by *chunkindex.Index.
type Index interface {
	Snapshot(ctx context.Context) ([]chunk.Meta, error)
	MarkGCPending(ctx context.Context, ids []chunk.ChunkID, at time.Time) error
	SweepCandidates(ctx context.Context, olderThan time.Time) ([]chunk.ChunkID, error)
	ForgetChunk(ctx context.Context, id chunk.ChunkID) error
}

// Collector runs the mark phase (via a MarkPolicy) and, after the grace
// period, the sweep phase (delete from both chunk store and index).
type Collector struct {
	index   Index
	store   chunk.Store
	policy  MarkPolicy
	grace   time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// Config configures a Collector.
type Config struct {
	Index  Index
	Store  chunk.Store
	Policy MarkPolicy // nil defaults to ZeroRefPolicy
	Grace  time.Duration // nil/zero defaults to 10 minutes
	Now    func() time.Time
	Logger *slog.Logger
}

const defaultGrace = 10 * time.Minute

// New constructs a Collector from cfg, applying defaults for zero fields.
func New(cfg Config) *Collector {
	policy := cfg.Policy
	if policy == nil {
		policy = ZeroRefPolicy{}
	}
	grace := cfg.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Collector{
		index:  cfg.Index,
		store:  cfg.Store,
		policy: policy,
		grace:  grace,
		now:    now,
		log:    logging.Default(cfg.Logger).With("component", "gc"),
	}
}

// Mark takes a snapshot of the chunk index, runs the mark policy over it,
// and transitions every matched chunk to StateGCPending. Returns the number
// of chunks marked.
func (c *Collector) Mark(ctx context.Context) (int, error) {
	metas, err := c.index.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	now := c.now()
	ids := c.policy.Mark(Snapshot{Chunks: metas, Now: now})
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.index.MarkGCPending(ctx, ids, now); err != nil {
		return 0, err
	}
	c.log.Info("marked chunks for collection", "count", len(ids))
	return len(ids), nil
}

// Sweep deletes every chunk that has been in StateGCPending for longer than
// the grace period, from both the chunk store and the index. A chunk whose
// refcount was bumped back above zero between mark and sweep must have been
// un-marked by the index already (SweepCandidates only returns chunks still
// at GCPending); Sweep never re-checks refcounts itself.
func (c *Collector) Sweep(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.grace)
	ids, err := c.index.SweepCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		if err := c.store.Delete(ctx, id); err != nil {
			c.log.Error("failed to delete chunk body during sweep", "chunk_id", id, "error", err)
			continue
		}
		if err := c.index.ForgetChunk(ctx, id); err != nil {
			c.log.Error("failed to forget chunk after sweep", "chunk_id", id, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		c.log.Info("swept collected chunks", "count", swept)
	}
	return swept, nil
}

// Run performs one full mark-then-sweep pass. Intended to be invoked on a
// schedule (see internal/storage's use of gocron).
func (c *Collector) Run(ctx context.Context) error {
	if _, err := c.Mark(ctx); err != nil {
		return err
	}
	_, err := c.Sweep(ctx)
	return err
}
