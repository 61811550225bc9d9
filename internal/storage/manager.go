// Package storage is the composition root: it wires the chunk store, chunk
// index, version store, delta engine, WAL, garbage collector, tier mover,
// and verifier into a single Manager that the CLI and any future server
// front end drive through one narrow surface (save/read/list/delete version,
// plus lifecycle and background-job control).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"nasstore/internal/chunk"
	"nasstore/internal/chunker"
	"nasstore/internal/chunkindex"
	"nasstore/internal/delta"
	"nasstore/internal/gc"
	"nasstore/internal/logging"
	"nasstore/internal/tier"
	"nasstore/internal/verify"
	"nasstore/internal/version"
	"nasstore/internal/wal"
)

// ErrAlreadyRunning is returned by Start when called on a running Manager.
var ErrAlreadyRunning = errors.New("storage: manager already running")

// ErrNotRunning reports a Manager that has not been started. Manager has no
// Stop method, and none of its methods returns this error.
var ErrNotRunning = errors.New("storage: manager not running")

// Config configures a Manager. Store, Index, and Versions are required;
// everything else has an idiomatic default so a caller can construct a
// working Manager with only the three required fields set.
type Config struct {
	Store    chunk.Store
	Index    *chunkindex.Index
	Versions *version.Store

	WAL *wal.WAL // nil disables WAL-backed durability tracking

	ChunkerConfig chunker.Config
	MaxChainDepth int
	Workers       int

	GCPolicy  gc.MarkPolicy
	GCGrace   time.Duration
	GCCron    string // cron expression for scheduled GC runs; empty disables
	TierPolicy tier.Policy
	TierCron   string // cron expression for scheduled tier sweeps; empty disables

	VerifyRatePerSecond float64
	VerifyInterval      time.Duration // zero disables scheduled scrubbing

	Now    func() time.Time
	Logger *slog.Logger
}

// Manager is the storage engine's composition root.
type Manager struct {
	store    chunk.Store
	index    *chunkindex.Index
	versions *version.Store
	wal      *wal.WAL
	engine   *delta.Engine
	gc       *gc.Collector
	mover    *tier.Mover
	verifier *verify.Verifier
	sched    *scheduler
	now      func() time.Time
	log      *slog.Logger

	gcCron   string
	tierCron string
	verifyEvery time.Duration
	started  bool
}

// New constructs a Manager from cfg. Store, Index, and Versions must be set.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Index == nil || cfg.Versions == nil {
		return nil, errors.New("storage: Store, Index, and Versions are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := logging.Default(cfg.Logger).With("component", "storage")

	engine := delta.New(delta.Config{
		Store:         cfg.Store,
		Index:         cfg.Index,
		Versions:      cfg.Versions,
		ChunkerConfig: cfg.ChunkerConfig,
		MaxChainDepth: cfg.MaxChainDepth,
		Workers:       cfg.Workers,
		Now:           now,
		Logger:        cfg.Logger,
	})

	collector := gc.New(gc.Config{
		Index:  cfg.Index,
		Store:  cfg.Store,
		Policy: cfg.GCPolicy,
		Grace:  cfg.GCGrace,
		Now:    now,
		Logger: cfg.Logger,
	})

	mover := tier.New(tier.Config{
		Index:  cfg.Index,
		Store:  cfg.Store,
		Policy: cfg.TierPolicy,
		Now:    now,
		Logger: cfg.Logger,
	})

	verifier := verify.New(verify.Config{
		Index:         cfg.Index,
		Store:         cfg.Store,
		Quarantine:    quarantineIndex{cfg.Index},
		RatePerSecond: cfg.VerifyRatePerSecond,
		Logger:        cfg.Logger,
	})

	sched, err := newScheduler(log, 4, now)
	if err != nil {
		return nil, fmt.Errorf("storage: create scheduler: %w", err)
	}

	return &Manager{
		store:       cfg.Store,
		index:       cfg.Index,
		versions:    cfg.Versions,
		wal:         cfg.WAL,
		engine:      engine,
		gc:          collector,
		mover:       mover,
		verifier:    verifier,
		sched:       sched,
		now:         now,
		log:         log,
		gcCron:      cfg.GCCron,
		tierCron:    cfg.TierCron,
		verifyEvery: cfg.VerifyInterval,
	}, nil
}

// quarantineIndex adapts chunkindex.Index's MarkGCPending into the narrower
// verify.Quarantine contract: a chunk that fails its hash check is treated
// as already a GC candidate so the next sweep removes it once the grace
// period elapses, rather than deleting it immediately on a single bad read.
type quarantineIndex struct {
	index *chunkindex.Index
}

func (q quarantineIndex) Quarantine(ctx context.Context, id chunk.ChunkID, _ error) error {
	return q.index.MarkGCPending(ctx, []chunk.ChunkID{id}, time.Now())
}

// SaveVersion chunks r, deduplicates against the chunk store, and records a
// new current Version of filePath. If a WAL is configured, the raw byte
// stream is durably logged before chunking begins (append-before-apply).
func (m *Manager) SaveVersion(ctx context.Context, filePath string, r io.Reader) (version.Version, error) {
	if m.wal != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return version.Version{}, err
		}
		if _, err := m.wal.Append(data); err != nil {
			return version.Version{}, fmt.Errorf("storage: wal append: %w", err)
		}
		r = newByteReader(data)
	}
	return m.engine.SaveVersion(ctx, filePath, r)
}

// ReadVersion reconstructs the byte content of a specific version.
func (m *Manager) ReadVersion(ctx context.Context, v version.Version) ([]byte, error) {
	return m.engine.ReadVersion(ctx, v)
}

// ReadCurrent reconstructs the current version of filePath.
func (m *Manager) ReadCurrent(ctx context.Context, filePath string) ([]byte, version.Version, error) {
	return m.engine.ReadCurrent(ctx, filePath)
}

// ListVersions returns the version history of filePath, oldest first.
func (m *Manager) ListVersions(ctx context.Context, filePath string) ([]version.Version, error) {
	return m.engine.ListVersions(ctx, filePath)
}

// DeleteVersion removes a version and decrements the refcount of every
// chunk it referenced.
func (m *Manager) DeleteVersion(ctx context.Context, filePath string, id version.ID) error {
	return m.engine.DeleteVersion(ctx, filePath, id)
}

// ListFiles returns every file path with at least one version.
func (m *Manager) ListFiles(ctx context.Context) ([]string, error) {
	return m.versions.ListFiles(ctx)
}

// RunGC performs one mark-then-sweep garbage collection pass immediately.
func (m *Manager) RunGC(ctx context.Context) error {
	return m.gc.Run(ctx)
}

// RunTierSweep relocates chunks between hot and cold tiers immediately.
func (m *Manager) RunTierSweep(ctx context.Context) (int, error) {
	return m.mover.Sweep(ctx)
}

// RunVerify scrubs every known chunk immediately.
func (m *Manager) RunVerify(ctx context.Context) (verify.Result, error) {
	return m.verifier.Scrub(ctx)
}

// Stats reports a coarse view of engine state for CLI/operator inspection.
type Stats struct {
	Chunks      int
	GCPending   int
	HotChunks   int
	ColdChunks  int
}

// Stats returns a snapshot of chunk index state.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	metas, err := m.index.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	s.Chunks = len(metas)
	for _, meta := range metas {
		if meta.State == chunk.StateGCPending {
			s.GCPending++
		}
		switch meta.Tier {
		case chunk.TierHot:
			s.HotChunks++
		case chunk.TierCold:
			s.ColdChunks++
		}
	}
	return s, nil
}

// Start launches scheduled background jobs (GC, tiering, verification) per
// the cron expressions and interval configured at construction. Jobs left
// unconfigured (empty cron string, zero interval) are simply not scheduled.
func (m *Manager) Start(ctx context.Context) error {
	if m.started {
		return ErrAlreadyRunning
	}
	if m.gcCron != "" {
		if err := m.sched.AddJob("gc", m.gcCron, func() {
			if err := m.gc.Run(ctx); err != nil {
				m.log.Error("scheduled gc run failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}
	if m.tierCron != "" {
		if err := m.sched.AddJob("tier-sweep", m.tierCron, func() {
			if _, err := m.mover.Sweep(ctx); err != nil {
				m.log.Error("scheduled tier sweep failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}
	if m.verifyEvery > 0 {
		go m.verifier.RunForever(ctx, m.verifyEvery)
	}
	m.started = true
	m.log.Info("storage manager started", "gc_cron", m.gcCron, "tier_cron", m.tierCron)
	return nil
}

// Close shuts down the scheduler and every owned resource (chunk index,
// version store, WAL, chunk store), always attempting to close everything
// and returning every error encountered joined with errors.Join.
func (m *Manager) Close() error {
	var errs []error
	if err := m.sched.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := m.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.versions.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.wal != nil {
		if err := m.wal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
