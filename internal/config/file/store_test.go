package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"nasstore/internal/config"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	ctx := context.Background()
	want := &config.Config{
		Chunker:     config.ChunkerConfig{Mode: "cdc", Min: 4096, Avg: 8192, Max: 16384, Poly: 0x3b9aca07},
		Compression: config.CompressionConfig{Enabled: true, DefaultCodec: "zstd"},
		Dedup:       config.DedupConfig{Enabled: true},
		ChunkStore:  config.ChunkStoreConfig{Backend: "local_fs", Params: map[string]string{"dir": "/data/chunks"}},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected config, got nil")
	}
	if got.Chunker != want.Chunker {
		t.Errorf("Chunker: expected %+v, got %+v", want.Chunker, got.Chunker)
	}
	if got.ChunkStore.Params["dir"] != "/data/chunks" {
		t.Errorf("expected dir param to round-trip, got %+v", got.ChunkStore.Params)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	ctx := context.Background()
	s.Save(ctx, &config.Config{Chunker: config.ChunkerConfig{Mode: "cdc"}})
	s.Save(ctx, &config.Config{Chunker: config.ChunkerConfig{Mode: "fixed"}})

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Chunker.Mode != "fixed" {
		t.Fatalf("expected overwritten mode %q, got %q", "fixed", got.Chunker.Mode)
	}
}

func TestRejectsFutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewStore(path)
	ctx := context.Background()
	if err := s.Save(ctx, &config.Config{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Simulate a config file written by a newer version of the engine.
	data := []byte(`{"version": 99, "config": {}}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := s.Load(ctx); err == nil {
		t.Fatal("expected error loading a config with a future version")
	}
}
