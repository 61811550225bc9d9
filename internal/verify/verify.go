// Package verify implements the background Verifier: a scrubber that
// periodically re-reads chunk bodies, recomputes their strong hash, and
// quarantines any chunk whose recomputed hash no longer matches its
// ChunkID (silent bit rot, a truncated write that somehow passed its CRC,
// or external tampering with the backing store).
package verify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"nasstore/internal/chunk"
	"nasstore/internal/logging"
)

// Index is the subset of the chunk index contract the verifier needs.
type Index interface {
	Snapshot(ctx context.Context) ([]chunk.Meta, error)
}

// Quarantine receives chunks that failed verification. Implementations
// typically mark the chunk unreadable in the index and alert an operator;
// they must not delete the chunk's bytes, since a false positive (a
// transient read error, not real corruption) must stay recoverable.
type Quarantine interface {
	Quarantine(ctx context.Context, id chunk.ChunkID, reason error) error
}

// Verifier scrubs chunk bodies against their content hash at a bounded rate
// so verification never saturates the disk the store is trying to serve
// live reads from.
type Verifier struct {
	index      Index
	store      chunk.Store
	quarantine Quarantine
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Config configures a Verifier.
type Config struct {
	Index      Index
	Store      chunk.Store
	Quarantine Quarantine
	// RatePerSecond bounds how many chunks are scrubbed per second.
	// Zero defaults to 50.
	RatePerSecond float64
	Logger        *slog.Logger
}

// New constructs a Verifier from cfg, applying defaults for zero fields.
func New(cfg Config) *Verifier {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 50
	}
	return &Verifier{
		index:      cfg.Index,
		store:      cfg.Store,
		quarantine: cfg.Quarantine,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		log:        logging.Default(cfg.Logger).With("component", "verifier"),
	}
}

// Result summarizes one scrub pass.
type Result struct {
	Scanned     int
	Quarantined int
}

// Scrub walks every chunk known to the index, rate-limited, recomputing its
// content hash and comparing it to the chunk's own ID. A mismatch is
// reported via Quarantine rather than returned as an error, so one bad
// chunk never aborts the scan of the rest.
func (v *Verifier) Scrub(ctx context.Context) (Result, error) {
	metas, err := v.index.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	var result Result
	for _, meta := range metas {
		if err := v.limiter.Wait(ctx); err != nil {
			return result, err
		}
		result.Scanned++
		if err := v.verifyOne(ctx, meta.ID); err != nil {
			v.log.Warn("chunk failed verification", "chunk_id", meta.ID, "error", err)
			if qerr := v.quarantine.Quarantine(ctx, meta.ID, err); qerr != nil {
				v.log.Error("failed to quarantine chunk", "chunk_id", meta.ID, "error", qerr)
				continue
			}
			result.Quarantined++
		}
	}
	if result.Quarantined > 0 {
		v.log.Warn("scrub pass found corrupt chunks", "scanned", result.Scanned, "quarantined", result.Quarantined)
	}
	return result, nil
}

func (v *Verifier) verifyOne(ctx context.Context, id chunk.ChunkID) error {
	data, err := v.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if chunk.SumChunkID(data) != id {
		return chunk.ErrCorrupt
	}
	return nil
}

// RunForever runs a scrub pass every interval until ctx is cancelled.
// storage.Manager.Start launches it in its own goroutine when a verify
// interval is configured.
func (v *Verifier) RunForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := v.Scrub(ctx); err != nil && ctx.Err() == nil {
				v.log.Error("scrub pass failed", "error", err)
			}
		}
	}
}
