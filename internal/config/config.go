// Package config provides configuration persistence for the storage engine.
//
// Store persists and reloads the desired engine configuration across
// restarts. This is control-plane state (chunking parameters, compression
// defaults, backend selection) -- not data-plane state, which lives in the
// chunk store, chunk index, and version store.
//
// Store does not hot-reload: config changes take effect on the next restart
// of the storage Manager.
package config

import "context"

// Store persists and loads engine configuration.
//
// Store is not accessed on the save/read hot path; persistence must not
// block chunk ingestion or version reads.
type Store interface {
	// Load reads the configuration. Returns nil config if none exists.
	Load(ctx context.Context) (*Config, error)

	// Save persists the configuration.
	Save(ctx context.Context, cfg *Config) error
}

// Config describes the desired shape of a storage engine instance.
// It is declarative: it defines what should exist, not how to create it.
type Config struct {
	Chunker     ChunkerConfig
	Compression CompressionConfig
	Dedup       DedupConfig
	Tier        TierConfig
	GC          GCConfig
	WAL         WALConfig
	ChunkStore  ChunkStoreConfig
}

// ChunkerConfig configures content-defined chunking.
type ChunkerConfig struct {
	// Mode names the chunking strategy ("cdc" in the default config). It is
	// stored but not read: the engine always chunks by content and has no
	// fixed-size mode. Min, Avg, Max and Poly configure that chunker.
	Mode string
	Min  int64
	Avg  int64
	Max  int64
	Poly uint64
}

// CompressionConfig holds chunk body compression settings. The engine does
// not read them; each chunk store applies its own codec.
type CompressionConfig struct {
	Enabled      bool
	DefaultCodec string // "none", "lz4", "zstd"
}

// DedupConfig holds the deduplication switch. The engine does not read it;
// chunks are always deduplicated by content hash.
type DedupConfig struct {
	Enabled bool
}

// TierConfig configures hot/cold chunk placement.
type TierConfig struct {
	ColdAfter string // duration string, e.g. "168h"; empty disables demotion
	Cron      string // cron expression for scheduled tier sweeps
}

// GCConfig configures the mark-and-sweep garbage collector.
type GCConfig struct {
	Grace string // duration string, e.g. "10m"
	Cron  string // cron expression for scheduled GC runs
}

// WALConfig configures the write-ahead log.
type WALConfig struct {
	Enabled     bool
	SegmentSize int64
}

// ChunkStoreConfig selects and parameterizes the chunk store backend.
type ChunkStoreConfig struct {
	// Backend identifies the implementation: "local_fs", "s3", "azure_blob",
	// or "gcs".
	Backend string
	// Params carries backend-specific settings (e.g. "dir" for local_fs;
	// "bucket", "region", "prefix" for s3; "container" for azure_blob).
	Params map[string]string
}
