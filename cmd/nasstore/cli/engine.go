package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"nasstore/internal/chunk/registry"
	"nasstore/internal/chunker"
	"nasstore/internal/chunkindex"
	"nasstore/internal/config"
	configfile "nasstore/internal/config/file"
	"nasstore/internal/gc"
	"nasstore/internal/home"
	"nasstore/internal/storage"
	"nasstore/internal/tier"
	"nasstore/internal/version"
	"nasstore/internal/wal"
)

// defaultConfig is used when no config file exists yet at the home
// directory; running "nasstore" against a fresh home directory just works
// with sane defaults rather than requiring an init step.
func defaultConfig() *config.Config {
	return &config.Config{
		Chunker:     config.ChunkerConfig{Mode: "cdc", Min: 4096, Avg: 8192, Max: 16384, Poly: 0x3b9aca07},
		Compression: config.CompressionConfig{Enabled: true, DefaultCodec: "zstd"},
		Dedup:       config.DedupConfig{Enabled: true},
		Tier:        config.TierConfig{ColdAfter: "168h", Cron: "0 3 * * *"},
		GC:          config.GCConfig{Grace: "10m", Cron: "*/15 * * * *"},
		WAL:         config.WALConfig{Enabled: true, SegmentSize: 64 << 20},
		ChunkStore:  config.ChunkStoreConfig{Backend: "local_fs"},
	}
}

// resolveHome returns a home.Dir from the --home flag, or the platform
// default if unset.
func resolveHome(cmd *cobra.Command) (home.Dir, error) {
	flagValue, _ := cmd.Flags().GetString("home")
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

// openManager constructs a fully wired storage.Manager for the home
// directory selected on cmd. The returned close function must be called
// once the caller is done, and itself closes the manager.
func openManager(cmd *cobra.Command, logger *slog.Logger) (*storage.Manager, func() error, error) {
	hd, err := resolveHome(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if err := hd.EnsureExists(); err != nil {
		return nil, nil, err
	}

	cfgStore := configfile.NewStore(hd.ConfigPath())
	cfg, err := cfgStore.Load(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		cfg = defaultConfig()
		if err := cfgStore.Save(cmd.Context(), cfg); err != nil {
			return nil, nil, fmt.Errorf("save default config: %w", err)
		}
	}

	params := cfg.ChunkStore.Params
	if cfg.ChunkStore.Backend == "local_fs" {
		if params == nil {
			params = map[string]string{}
		}
		if _, ok := params["dir"]; !ok {
			params["dir"] = hd.ChunkDir()
		}
	}
	store, err := registry.Open(cfg.ChunkStore.Backend, params)
	if err != nil {
		return nil, nil, fmt.Errorf("open chunk store: %w", err)
	}

	idx, err := chunkindex.Open(hd.ChunkIndexPath(), 1024)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open chunk index: %w", err)
	}

	vs, err := version.Open(hd.VersionStorePath())
	if err != nil {
		idx.Close()
		store.Close()
		return nil, nil, fmt.Errorf("open version store: %w", err)
	}

	var w *wal.WAL
	if cfg.WAL.Enabled {
		w, err = wal.Open(wal.Config{Dir: hd.WALDir(), SegmentSize: cfg.WAL.SegmentSize})
		if err != nil {
			vs.Close()
			idx.Close()
			store.Close()
			return nil, nil, fmt.Errorf("open wal: %w", err)
		}
	}

	grace, _ := time.ParseDuration(cfg.GC.Grace)
	var tierPolicy tier.Policy
	if coldAfter, err := time.ParseDuration(cfg.Tier.ColdAfter); err == nil && coldAfter > 0 {
		tierPolicy = tier.NewIdlePolicy(coldAfter)
	}

	mgr, err := storage.New(storage.Config{
		Store:      store,
		Index:      idx,
		Versions:   vs,
		WAL:        w,
		ChunkerConfig: chunker.Config{Min: cfg.Chunker.Min, Avg: cfg.Chunker.Avg, Max: cfg.Chunker.Max, Poly: cfg.Chunker.Poly},
		GCPolicy:   gc.ZeroRefPolicy{},
		GCGrace:    grace,
		GCCron:     cfg.GC.Cron,
		TierPolicy: tierPolicy,
		TierCron:   cfg.Tier.Cron,
		Logger:     logger,
	})
	if err != nil {
		if w != nil {
			w.Close()
		}
		vs.Close()
		idx.Close()
		store.Close()
		return nil, nil, fmt.Errorf("build storage manager: %w", err)
	}

	return mgr, mgr.Close, nil
}
